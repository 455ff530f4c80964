package compat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scriptshift/scriptshift/core/invariant"
	"github.com/scriptshift/scriptshift/core/script"
	"github.com/scriptshift/scriptshift/core/value"
	"github.com/scriptshift/scriptshift/runtime/bridge"
	"github.com/scriptshift/scriptshift/runtime/lexer"
	"github.com/scriptshift/scriptshift/runtime/transpile"
)

// TestCase pairs a legacy-path invocation against a converted-path
// invocation for one fixture. The legacy side runs the unit's full source
// through the bridge; the converted side runs the generated code, which may
// itself delegate bridged nodes back to the interpreter.
type TestCase struct {
	Unit     string
	UnitHash string
	Fixture  string

	Bindings  map[string]value.Value
	Unordered []string

	LegacySource  string
	ConvertedCode string

	// Levels carries the per-construct conversion levels, used to annotate
	// failing diffs for triage.
	Levels []transpile.NodeLevel
}

// LegacyCommand builds the bridge command for the legacy side.
func (tc TestCase) LegacyCommand() bridge.Command {
	return bridge.Command{
		ID:     tc.Unit + "/" + tc.Fixture + "/legacy",
		Text:   tc.LegacySource,
		Params: tc.Bindings,
	}
}

// Generate builds one test case per fixture for a converted unit. With no
// developer-supplied fixtures, a single derived fixture binds every free
// variable of the unit to null, giving at least a smoke pairing.
func Generate(unit *script.Unit, result transpile.Result, fixtures []Fixture) ([]TestCase, error) {
	invariant.NotNil(unit, "unit")
	invariant.Precondition(unit.Name == result.Unit, "conversion result must belong to the unit")
	if result.Failure != nil {
		return nil, fmt.Errorf("unit %q has no converted form: %s", unit.Name, result.Failure.Msg)
	}

	if len(fixtures) == 0 {
		fixtures = []Fixture{derivedFixture(unit)}
	}

	cases := make([]TestCase, 0, len(fixtures))
	for _, f := range fixtures {
		bindings, err := f.BindingValues()
		if err != nil {
			return nil, err
		}
		cases = append(cases, TestCase{
			Unit:          unit.Name,
			UnitHash:      result.UnitHash,
			Fixture:       f.Name,
			Bindings:      bindings,
			Unordered:     f.Unordered,
			LegacySource:  unit.Source,
			ConvertedCode: result.Code,
			Levels:        result.Levels,
		})
	}
	return cases, nil
}

// derivedFixture binds each free variable of the unit to null. Free means
// read somewhere in the unit but never assigned, bound as a loop variable,
// or declared as a function parameter; session-scoped variables stay in the
// interpreter and are not bound.
func derivedFixture(unit *script.Unit) Fixture {
	bound := make(map[string]struct{})
	unit.AllNodes(func(n *script.Node) {
		switch n.Kind {
		case script.NodeAssignment:
			bound[n.Target] = struct{}{}
		case script.NodeLoop:
			if n.LoopVar != "" {
				bound[n.LoopVar] = struct{}{}
			}
		}
	})
	for _, fn := range unit.Functions {
		for _, p := range fn.Params {
			bound[p] = struct{}{}
		}
	}

	free := make([]string, 0)
	seen := make(map[string]struct{})
	for _, tok := range lexer.Scan(unit.Source) {
		if tok.Kind != lexer.VARIABLE {
			continue
		}
		if strings.HasPrefix(tok.Text, "$global:") {
			continue
		}
		if _, isBound := bound[tok.Text]; isBound {
			continue
		}
		if _, dup := seen[tok.Text]; dup {
			continue
		}
		seen[tok.Text] = struct{}{}
		free = append(free, strings.TrimPrefix(tok.Text, "$"))
	}
	sort.Strings(free)

	bindings := make(map[string]any, len(free))
	for _, name := range free {
		bindings[name] = nil
	}
	return Fixture{Name: "derived-defaults", Bindings: bindings}
}
