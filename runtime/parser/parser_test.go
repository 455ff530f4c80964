package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptshift/scriptshift/core/script"
)

func parse(t *testing.T, source string) *script.Unit {
	t.Helper()
	unit, perr := Parse("test", source)
	require.Nil(t, perr, "unexpected parse error: %v", perr)
	return unit
}

func TestParseAssignment(t *testing.T) {
	unit := parse(t, `$count = 3`)
	require.Len(t, unit.Body, 1)

	node := unit.Body[0]
	assert.Equal(t, script.NodeAssignment, node.Kind)
	assert.Equal(t, "$count", node.Target)
	assert.Equal(t, "3", node.Expr)
}

func TestParseCallWithNamedAndPositionalArgs(t *testing.T) {
	unit := parse(t, `Copy-Item -Path "src.txt" -Force dest.txt`)
	require.Len(t, unit.Body, 1)

	node := unit.Body[0]
	require.Equal(t, script.NodeFunctionCall, node.Kind)
	assert.Equal(t, "Copy-Item", node.Command)
	require.Len(t, node.Args, 3)
	assert.Equal(t, script.Arg{Name: "-Path", Raw: `"src.txt"`}, node.Args[0])
	assert.Equal(t, script.Arg{Name: "-Force"}, node.Args[1], "switch flag has no value")
	assert.Equal(t, script.Arg{Raw: "dest.txt"}, node.Args[2])
}

func TestDashwordBindsOnlyExplicitValues(t *testing.T) {
	unit := parse(t, `Invoke-Job -Run $id -Label "night" -Count 2 -Verbose batch`)
	node := unit.Body[0]
	require.Equal(t, script.NodeFunctionCall, node.Kind)
	require.Len(t, node.Args, 5)
	assert.Equal(t, script.Arg{Name: "-Run", Raw: "$id"}, node.Args[0])
	assert.Equal(t, script.Arg{Name: "-Label", Raw: `"night"`}, node.Args[1])
	assert.Equal(t, script.Arg{Name: "-Count", Raw: "2"}, node.Args[2])
	assert.Equal(t, script.Arg{Name: "-Verbose"}, node.Args[3], "bareword after a dashword does not bind")
	assert.Equal(t, script.Arg{Raw: "batch"}, node.Args[4])
}

func TestParsePipeline(t *testing.T) {
	unit := parse(t, `Get-Item | Sort-Object -Property name | Select-Object -First 1`)
	require.Len(t, unit.Body, 1)

	node := unit.Body[0]
	require.Equal(t, script.NodePipeline, node.Kind)
	require.Len(t, node.Stages, 3)
	assert.Equal(t, "Get-Item", node.Stages[0].Command)
	assert.Equal(t, "Sort-Object", node.Stages[1].Command)
	assert.Equal(t, "Select-Object", node.Stages[2].Command)
	assert.Equal(t, "Get-Item | Sort-Object -Property name | Select-Object -First 1", node.Text)
}

func TestParseConditionalWithElseifElse(t *testing.T) {
	unit := parse(t, `
if ($x -gt 10) {
  Write-Output "big"
} elseif ($x -gt 5) {
  Write-Output "medium"
} else {
  Write-Output "small"
}
`)
	require.Len(t, unit.Body, 1)

	node := unit.Body[0]
	require.Equal(t, script.NodeConditional, node.Kind)
	require.Len(t, node.Branches, 2)
	assert.Equal(t, "$x -gt 10", node.Branches[0].Cond)
	assert.Equal(t, "$x -gt 5", node.Branches[1].Cond)
	require.Len(t, node.Else, 1)
	assert.Equal(t, script.NodeFunctionCall, node.Else[0].Kind)
}

func TestParseForeachLoop(t *testing.T) {
	unit := parse(t, `
foreach ($item in $items) {
  Write-Output $item
}
`)
	require.Len(t, unit.Body, 1)

	node := unit.Body[0]
	require.Equal(t, script.NodeLoop, node.Kind)
	assert.Equal(t, "$item", node.LoopVar)
	assert.Equal(t, "$items", node.Iterable)
	require.Len(t, node.Body, 1)
}

func TestParseWhileLoop(t *testing.T) {
	unit := parse(t, `
while ($retries -lt 3) {
  $retries = $retries
}
`)
	node := unit.Body[0]
	require.Equal(t, script.NodeLoop, node.Kind)
	assert.Empty(t, node.LoopVar)
	assert.Equal(t, "$retries -lt 3", node.Cond)
}

func TestParseFunctionDefinition(t *testing.T) {
	unit := parse(t, `
function Send-Report($target, $body) {
  Write-Output $target
}
Send-Report "ops" "weekly"
`)
	require.Len(t, unit.Functions, 1)
	fn := unit.Functions[0]
	assert.Equal(t, "Send-Report", fn.Name)
	assert.Equal(t, []string{"$target", "$body"}, fn.Params)
	require.Len(t, fn.Body, 1)

	// The call to a locally defined function is not an external reference.
	assert.NotContains(t, unit.References, "Send-Report")
	assert.Contains(t, unit.Defines, "Send-Report")
}

func TestReferencesCollectCommandsAndSharedVariables(t *testing.T) {
	unit := parse(t, `
$global:runId = Get-RunId
$local = 1
Publish-Metrics -Run $global:runId
Read-Queue $global:queueName
`)
	assert.Contains(t, unit.References, "Publish-Metrics")
	assert.Contains(t, unit.References, "Read-Queue")
	assert.Contains(t, unit.References, "Get-RunId")
	assert.Contains(t, unit.References, "$global:queueName")
	assert.NotContains(t, unit.References, "$local")
	// Assigned shared variable is a definition, not a reference.
	assert.Contains(t, unit.Defines, "$global:runId")
	assert.NotContains(t, unit.References, "$global:runId")
}

func TestUnknownSyntaxBecomesRawFragment(t *testing.T) {
	unit := parse(t, `& "C:\legacy\helper.ps1" -Mode full`)
	require.Len(t, unit.Body, 1)

	node := unit.Body[0]
	assert.Equal(t, script.NodeRawFragment, node.Kind)
	assert.Equal(t, `& "C:\legacy\helper.ps1" -Mode full`, node.Text)
}

func TestAssignmentExprKeepsVerbatimText(t *testing.T) {
	unit := parse(t, `$files = Get-ChildItem -Path "in" | Sort-Object`)
	node := unit.Body[0]
	require.Equal(t, script.NodeAssignment, node.Kind)
	assert.Equal(t, `Get-ChildItem -Path "in" | Sort-Object`, node.Expr)
	assert.Contains(t, unit.References, "Get-ChildItem")
	assert.Contains(t, unit.References, "Sort-Object")
}

func TestUnterminatedBlockIsParseError(t *testing.T) {
	_, perr := Parse("broken", "if ($x) {\n  Get-Date\n")
	require.NotNil(t, perr)
	assert.Equal(t, "broken", perr.Unit)
	assert.Contains(t, perr.Msg, "unterminated block")
	assert.Equal(t, 1, perr.Pos.Line)
}

func TestMissingParenIsParseError(t *testing.T) {
	_, perr := Parse("broken", "foreach $x in $xs {\n}\n")
	require.NotNil(t, perr)
	assert.Contains(t, perr.Msg, "'(' expected")
}

func TestParseErrorDoesNotPanicOnEmptyInput(t *testing.T) {
	unit := parse(t, "")
	assert.Empty(t, unit.Body)
	assert.Empty(t, unit.Functions)
}

func TestNestedBlocks(t *testing.T) {
	unit := parse(t, `
foreach ($f in $files) {
  if ($f) {
    Copy-Item $f
  }
}
`)
	loop := unit.Body[0]
	require.Equal(t, script.NodeLoop, loop.Kind)
	cond := loop.Body[0]
	require.Equal(t, script.NodeConditional, cond.Kind)
	require.Len(t, cond.Branches, 1)
	assert.Equal(t, "Copy-Item", cond.Branches[0].Body[0].Command)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nightly-backup.psl")
	require.NoError(t, os.WriteFile(path, []byte("Get-Date\n"), 0o644))

	unit, perr := ParseFile(path)
	require.Nil(t, perr)
	assert.Equal(t, "nightly-backup", unit.Name)
	assert.Equal(t, path, unit.Path)
}

func TestParseFileMissing(t *testing.T) {
	_, perr := ParseFile(filepath.Join(t.TempDir(), "absent.psl"))
	require.NotNil(t, perr)
}
