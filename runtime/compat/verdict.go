package compat

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/scriptshift/scriptshift/runtime/bridge"
)

// Runner executes the two sides of a test case. The legacy side normally
// goes through the bridge; the converted side runs the generated code in an
// external harness.
type Runner interface {
	RunLegacy(ctx context.Context, tc TestCase) bridge.ExecutionResult
	RunConverted(ctx context.Context, tc TestCase) bridge.ExecutionResult
}

// BridgeRunner runs the legacy side via a bridge and delegates the converted
// side to a caller-supplied harness function.
type BridgeRunner struct {
	Bridge    *bridge.Bridge
	Converted func(ctx context.Context, tc TestCase) bridge.ExecutionResult
}

func (r BridgeRunner) RunLegacy(ctx context.Context, tc TestCase) bridge.ExecutionResult {
	return r.Bridge.Invoke(ctx, tc.LegacyCommand())
}

func (r BridgeRunner) RunConverted(ctx context.Context, tc TestCase) bridge.ExecutionResult {
	return r.Converted(ctx, tc)
}

// LevelNote annotates a failing diff with one construct's conversion level,
// pointing triage at the bridged or hybrid nodes first.
type LevelNote struct {
	Span  string `yaml:"span"`
	Kind  string `yaml:"kind"`
	Level string `yaml:"level"`
}

// Verdict is the outcome of one test case, serializable for an external
// test-runner or report layer.
type Verdict struct {
	Unit    string `yaml:"unit"`
	Fixture string `yaml:"fixture"`
	Pass    bool   `yaml:"pass"`

	// Diff is the canonicalized structural difference, set on mismatch.
	Diff string `yaml:"diff,omitempty"`
	// Diagnostic explains an execution failure on either side.
	Diagnostic string `yaml:"diagnostic,omitempty"`
	// Levels annotates a failing case with per-construct conversion levels.
	Levels []LevelNote `yaml:"levels,omitempty"`
}

// Evaluate runs every case on both paths and judges the outputs. Execution
// failures fail the case with the side's diagnostic; they are never masked
// with substitute data.
func Evaluate(ctx context.Context, runner Runner, cases []TestCase) []Verdict {
	verdicts := make([]Verdict, 0, len(cases))
	for _, tc := range cases {
		verdicts = append(verdicts, evaluateCase(ctx, runner, tc))
	}
	return verdicts
}

func evaluateCase(ctx context.Context, runner Runner, tc TestCase) Verdict {
	v := Verdict{Unit: tc.Unit, Fixture: tc.Fixture}

	legacy := runner.RunLegacy(ctx, tc)
	if !legacy.OK {
		v.Diagnostic = fmt.Sprintf("legacy path failed (%s): %s", legacy.Failure, legacy.Diagnostic)
		v.Levels = levelNotes(tc)
		return v
	}
	converted := runner.RunConverted(ctx, tc)
	if !converted.OK {
		v.Diagnostic = fmt.Sprintf("converted path failed (%s): %s", converted.Failure, converted.Diagnostic)
		v.Levels = levelNotes(tc)
		return v
	}

	equal, diff := Compare(legacy.Value, converted.Value, tc.Unordered)
	if !equal {
		v.Diff = diff
		v.Levels = levelNotes(tc)
		return v
	}
	v.Pass = true
	return v
}

func levelNotes(tc TestCase) []LevelNote {
	notes := make([]LevelNote, 0, len(tc.Levels))
	for _, nl := range tc.Levels {
		notes = append(notes, LevelNote{
			Span:  nl.Span.String(),
			Kind:  nl.Kind.String(),
			Level: nl.Level.String(),
		})
	}
	return notes
}

// MarshalVerdicts renders verdicts as YAML for the external report layer.
func MarshalVerdicts(verdicts []Verdict) ([]byte, error) {
	return yaml.Marshal(verdicts)
}
