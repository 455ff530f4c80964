// Package transpile converts parsed ScriptUnits into C# source. Each
// construct is classified against a fixed table: direct constructs are
// rewritten structurally, bridge-required constructs keep their original
// fragment text wrapped in a bridge invocation, and ambiguous constructs get
// native surrounding control flow with the ambiguous sub-statement isolated
// into its own bridge call.
//
// Conversion is a pure function of unit content: identical input yields
// byte-identical output, and generated identifiers are derived by stable
// hashing rather than traversal-order counters.
package transpile

import "fmt"

// Level is the conversion level applied to one construct.
type Level uint8

const (
	// LevelFull is a complete structural rewrite into the target language.
	LevelFull Level = iota
	// LevelBridge preserves the original fragment verbatim and delegates
	// execution to the external interpreter.
	LevelBridge
	// LevelHybrid translates surrounding control flow natively while an
	// isolated sub-statement runs through the bridge.
	LevelHybrid
)

func (l Level) String() string {
	switch l {
	case LevelFull:
		return "FULL"
	case LevelBridge:
		return "BRIDGE"
	case LevelHybrid:
		return "HYBRID"
	default:
		return fmt.Sprintf("Level(%d)", uint8(l))
	}
}

// Disposition is the classification-table outcome for a syntactic category.
type Disposition uint8

const (
	DispositionDirect Disposition = iota
	DispositionBridge
	DispositionAmbiguous
)

func (d Disposition) String() string {
	switch d {
	case DispositionDirect:
		return "direct"
	case DispositionBridge:
		return "bridge-required"
	case DispositionAmbiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("Disposition(%d)", uint8(d))
	}
}
