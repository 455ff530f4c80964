package compat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptshift/scriptshift/core/script"
	"github.com/scriptshift/scriptshift/core/value"
	"github.com/scriptshift/scriptshift/runtime/bridge"
	"github.com/scriptshift/scriptshift/runtime/parser"
	"github.com/scriptshift/scriptshift/runtime/transpile"
)

const fixtureDoc = `
fixtures:
  - name: basic
    bindings:
      items: [1, 2, 3]
      label: "run"
  - name: tagged
    bindings:
      items: []
    unordered: [tags]
`

func TestParseFixtures(t *testing.T) {
	fixtures, err := ParseFixtures([]byte(fixtureDoc))
	require.NoError(t, err)
	require.Len(t, fixtures, 2)

	assert.Equal(t, "basic", fixtures[0].Name)
	bindings, err := fixtures[0].BindingValues()
	require.NoError(t, err)
	assert.True(t, bindings["items"].Equal(value.Sequence(value.Int(1), value.Int(2), value.Int(3))))
	assert.True(t, bindings["label"].Equal(value.String("run")))

	assert.Equal(t, []string{"tags"}, fixtures[1].Unordered)
}

func TestParseFixturesRejectsMissingName(t *testing.T) {
	_, err := ParseFixtures([]byte(`
fixtures:
  - bindings:
      x: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid fixture file")
}

func TestParseFixturesRejectsUnknownField(t *testing.T) {
	_, err := ParseFixtures([]byte(`
fixtures:
  - name: basic
    bindings: {}
    ordering: loose
`))
	require.Error(t, err)
}

func mustConvert(t *testing.T, name, source string) (*script.Unit, transpile.Result) {
	t.Helper()
	unit, perr := parser.Parse(name, source)
	require.Nil(t, perr)
	return unit, transpile.Convert(unit)
}

func TestGenerateOneCasePerFixture(t *testing.T) {
	unit, result := mustConvert(t, "report", `
foreach ($item in $items) {
  Write-Output $item
}
`)
	fixtures, err := ParseFixtures([]byte(fixtureDoc))
	require.NoError(t, err)

	cases, err := Generate(unit, result, fixtures)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "report", cases[0].Unit)
	assert.Equal(t, "basic", cases[0].Fixture)
	assert.Equal(t, unit.Source, cases[0].LegacySource)
	assert.Equal(t, result.Code, cases[0].ConvertedCode)
	assert.Equal(t, result.UnitHash, cases[0].UnitHash)

	cmd := cases[0].LegacyCommand()
	assert.Equal(t, unit.Source, cmd.Text)
	assert.True(t, cmd.Params["items"].Equal(
		value.Sequence(value.Int(1), value.Int(2), value.Int(3))))
}

func TestGenerateDerivesFixtureFromFreeVariables(t *testing.T) {
	unit, result := mustConvert(t, "calc", `
$sum = 0
foreach ($n in $inputs) {
  if ($n -le $limit) {
    Write-Output $n
  }
}
`)
	cases, err := Generate(unit, result, nil)
	require.NoError(t, err)
	require.Len(t, cases, 1)

	assert.Equal(t, "derived-defaults", cases[0].Fixture)
	assert.Equal(t,
		map[string]value.Value{"inputs": value.Null(), "limit": value.Null()},
		cases[0].Bindings,
		"assigned and loop variables are not free")
}

func TestGenerateRejectsParseFailedUnit(t *testing.T) {
	unit, _ := mustConvert(t, "ok", `$x = 1`)
	failed := transpile.ConvertSource("ok", "while ($x) {\n$y = 1\n")
	require.NotNil(t, failed.Failure)

	_, err := Generate(unit, failed, nil)
	require.Error(t, err)
}

func TestCompareMappingsUnorderedByKey(t *testing.T) {
	a := value.Mapping(map[string]value.Value{"x": value.Int(1), "y": value.Int(2)})
	b := value.Mapping(map[string]value.Value{"y": value.Int(2), "x": value.Int(1)})

	equal, diff := Compare(a, b, nil)
	assert.True(t, equal, diff)
}

func TestCompareSequencesOrderedByDefault(t *testing.T) {
	a := value.Sequence(value.Int(1), value.Int(2))
	b := value.Sequence(value.Int(2), value.Int(1))

	equal, diff := Compare(a, b, nil)
	assert.False(t, equal)
	assert.NotEmpty(t, diff)
}

func TestCompareAnnotatedSequenceIsUnordered(t *testing.T) {
	a := value.Mapping(map[string]value.Value{
		"tags": value.Sequence(value.String("a"), value.String("b")),
	})
	b := value.Mapping(map[string]value.Value{
		"tags": value.Sequence(value.String("b"), value.String("a")),
	})

	equal, _ := Compare(a, b, []string{"tags"})
	assert.True(t, equal)

	equal, _ = Compare(a, b, nil)
	assert.False(t, equal, "without the annotation order still matters")
}

func TestCompareAnnotationReachesNestedFields(t *testing.T) {
	row := func(tags ...string) value.Value {
		items := make([]value.Value, len(tags))
		for i, tag := range tags {
			items[i] = value.String(tag)
		}
		return value.Mapping(map[string]value.Value{"tags": value.Sequence(items...)})
	}
	a := value.Mapping(map[string]value.Value{"rows": value.Sequence(row("a", "b"))})
	b := value.Mapping(map[string]value.Value{"rows": value.Sequence(row("b", "a"))})

	equal, _ := Compare(a, b, []string{"rows.tags"})
	assert.True(t, equal)
}

func TestCompareKeepsUnitTaggedScalarsDistinct(t *testing.T) {
	equal, _ := Compare(value.Size(5), value.Int(5), nil)
	assert.False(t, equal, "a byte count is not a plain integer")

	equal, _ = Compare(value.Bytes([]byte("abc")), value.String("abc"), nil)
	assert.False(t, equal)

	equal, _ = Compare(value.Duration(time.Second), value.Duration(time.Second), nil)
	assert.True(t, equal)
}

// scriptedRunner answers both paths from canned results.
type scriptedRunner struct {
	legacy    bridge.ExecutionResult
	converted bridge.ExecutionResult
}

func (r scriptedRunner) RunLegacy(context.Context, TestCase) bridge.ExecutionResult {
	return r.legacy
}

func (r scriptedRunner) RunConverted(context.Context, TestCase) bridge.ExecutionResult {
	return r.converted
}

func okResult(v value.Value) bridge.ExecutionResult {
	return bridge.ExecutionResult{OK: true, Value: v}
}

func testCases(t *testing.T) []TestCase {
	unit, result := mustConvert(t, "report", `
foreach ($item in $items) {
  Write-Output $item
}
Get-Extra
`)
	cases, err := Generate(unit, result, nil)
	require.NoError(t, err)
	return cases
}

func TestEvaluatePassesOnEqualOutputs(t *testing.T) {
	out := value.Sequence(value.Int(1), value.Int(2))
	verdicts := Evaluate(context.Background(),
		scriptedRunner{legacy: okResult(out), converted: okResult(out)},
		testCases(t))

	require.Len(t, verdicts, 1)
	assert.True(t, verdicts[0].Pass)
	assert.Empty(t, verdicts[0].Diff)
	assert.Empty(t, verdicts[0].Levels)
}

func TestEvaluateFailureCarriesDiffAndLevels(t *testing.T) {
	verdicts := Evaluate(context.Background(),
		scriptedRunner{
			legacy:    okResult(value.Sequence(value.Int(1))),
			converted: okResult(value.Sequence(value.Int(2))),
		},
		testCases(t))

	require.Len(t, verdicts, 1)
	v := verdicts[0]
	assert.False(t, v.Pass)
	assert.NotEmpty(t, v.Diff)
	require.NotEmpty(t, v.Levels, "failing diffs are annotated with conversion levels")

	levels := make(map[string]bool)
	for _, note := range v.Levels {
		levels[note.Level] = true
	}
	assert.True(t, levels["BRIDGE"] || levels["HYBRID"] || levels["FULL"])
}

func TestEvaluateExecutionFailureIsNeverMasked(t *testing.T) {
	verdicts := Evaluate(context.Background(),
		scriptedRunner{
			legacy: bridge.ExecutionResult{
				OK:         false,
				Failure:    bridge.FailureTimeout,
				Diagnostic: "timed out after 5ms",
			},
			converted: okResult(value.Null()),
		},
		testCases(t))

	require.Len(t, verdicts, 1)
	assert.False(t, verdicts[0].Pass)
	assert.Contains(t, verdicts[0].Diagnostic, "legacy path failed")
	assert.Contains(t, verdicts[0].Diagnostic, "timed out")
}

func TestVerdictYAML(t *testing.T) {
	verdicts := []Verdict{
		{Unit: "a", Fixture: "basic", Pass: true},
		{Unit: "b", Fixture: "basic", Diff: "- 1\n+ 2"},
	}
	data, err := MarshalVerdicts(verdicts)
	require.NoError(t, err)
	assert.Contains(t, string(data), "unit: a")
	assert.Contains(t, string(data), "pass: false")
}
