package transpile

import (
	"github.com/scriptshift/scriptshift/core/invariant"
	"github.com/scriptshift/scriptshift/core/script"
	"github.com/scriptshift/scriptshift/runtime/parser"
)

// Complexity scoring weights. Branches cost more than plain lines because
// they multiply test fixtures; bridge nodes cost the most because each one
// is a live dependency on the external interpreter.
const (
	weightLine   = 1
	weightBranch = 3
	weightBridge = 5
)

// Result is the conversion output for one unit. When Failure is set the unit
// did not parse: Code is empty and the failure aborts only this unit.
type Result struct {
	Unit     string
	UnitHash string
	Code     string

	Levels   []NodeLevel
	Warnings []Warning

	Complexity  int
	BranchCount int
	BridgeCount int

	Failure *parser.ParseError
}

// FullyConverted reports whether every construct reached FULL level, meaning
// the generated code has no runtime dependency on the external interpreter.
func (r *Result) FullyConverted() bool {
	if r.Failure != nil {
		return false
	}
	for _, nl := range r.Levels {
		if nl.Level != LevelFull {
			return false
		}
	}
	return true
}

// Convert transpiles one unit. It is a pure function of unit content:
// identical input always yields byte-identical generated code.
func Convert(unit *script.Unit) Result {
	invariant.NotNil(unit, "unit")
	invariant.Precondition(unit.Name != "", "unit must be named")

	hash, err := unit.Hash()
	invariant.ExpectNoError(err, "unit hashing")

	e := &emitter{cls: newClassifier(unit)}
	e.emitUnit(unit, hash)

	result := Result{
		Unit:     unit.Name,
		UnitHash: hash,
		Code:     e.b.String(),
		Levels:   e.levels,
		Warnings: e.warnings,
	}

	for _, nl := range result.Levels {
		if nl.Level != LevelFull {
			result.BridgeCount++
		}
		branching := nl.Kind == script.NodeConditional || nl.Kind == script.NodeLoop
		if branching && nl.Level != LevelBridge {
			result.BranchCount++
		}
	}

	result.Complexity = weightLine*unit.LineCount() +
		weightBranch*result.BranchCount +
		weightBridge*result.BridgeCount
	return result
}

// ConvertSource parses and converts in one step. A parse failure yields a
// Result tagged with the ParseError instead of generated code, so callers
// converting a corpus can continue with the remaining units.
func ConvertSource(name, source string) Result {
	unit, perr := parser.Parse(name, source)
	if perr != nil {
		return Result{Unit: name, Failure: perr}
	}
	return Convert(unit)
}
