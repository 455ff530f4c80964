package transpile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scriptshift/scriptshift/core/script"
)

// emitter renders one unit as a C# class. The generated code depends on the
// ScriptShift.Interop support library: IScriptBridge carries bridged
// fragments to the external interpreter, Seq.Once wraps loop sources in a
// one-pass non-restartable sequence, and Output.Emit appends to the unit's
// emitted output stream.
type emitter struct {
	cls      *classifier
	b        strings.Builder
	indent   int
	declared map[string]struct{}

	levels   []NodeLevel
	warnings []Warning
}

// NodeLevel records the conversion level applied to one construct, in source
// order. Consumed by complexity scoring and compatibility triage.
type NodeLevel struct {
	Span  script.Span
	Kind  script.NodeKind
	Level Level
}

func (e *emitter) line(format string, args ...any) {
	e.b.WriteString(strings.Repeat("    ", e.indent))
	fmt.Fprintf(&e.b, format, args...)
	e.b.WriteByte('\n')
}

func (e *emitter) blank() {
	e.b.WriteByte('\n')
}

func (e *emitter) record(n *script.Node, level Level, warning *Warning) {
	e.levels = append(e.levels, NodeLevel{Span: n.Span, Kind: n.Kind, Level: level})
	if warning != nil {
		e.warnings = append(e.warnings, *warning)
	}
}

// emitUnit renders the full compilation unit.
func (e *emitter) emitUnit(unit *script.Unit, hash string) {
	e.line("// Generated by scriptshift. Unit: %s (hash %s). Do not edit.", unit.Name, hash)
	e.line("using System;")
	e.line("using System.Collections.Generic;")
	e.line("using System.Threading.Tasks;")
	e.line("using ScriptShift.Interop;")
	e.blank()
	e.line("public static class %s", classIdent(unit.Name))
	e.line("{")
	e.indent++

	e.line("public static async Task RunAsync(IScriptBridge bridge)")
	e.emitBody(unit.Body, nil)

	for i := range unit.Functions {
		e.blank()
		e.emitFunction(&unit.Functions[i])
	}

	e.indent--
	e.line("}")
}

func (e *emitter) emitFunction(fn *script.Function) {
	params := make([]string, 0, len(fn.Params)+1)
	params = append(params, "IScriptBridge bridge")
	for _, p := range fn.Params {
		params = append(params, "object? "+varIdent(p))
	}
	e.line("private static async Task<object?> %s(%s)", methodIdent(fn.Name), strings.Join(params, ", "))
	e.emitBody(fn.Body, fn.Params)
}

// emitBody renders a method body. Assigned variables are hoisted to the top
// as object? declarations so nested-block assignments stay valid C#.
func (e *emitter) emitBody(body []script.Node, params []string) {
	prevDeclared := e.declared
	e.declared = make(map[string]struct{})
	for _, p := range params {
		e.declared[p] = struct{}{}
	}

	e.line("{")
	e.indent++

	hoisted := hoistedVars(body)
	for _, v := range hoisted {
		if _, isParam := e.declared[v]; isParam {
			continue
		}
		e.declared[v] = struct{}{}
		e.line("object? %s = null;", varIdent(v))
	}
	if len(hoisted) > 0 {
		e.blank()
	}

	e.emitNodes(body)

	if params != nil {
		e.line("return null;")
	}
	e.indent--
	e.line("}")
	e.declared = prevDeclared
}

// hoistedVars collects locally assigned variables and loop variables in a
// body, sorted for deterministic declaration order.
func hoistedVars(body []script.Node) []string {
	seen := make(map[string]struct{})
	script.Walk(body, func(n *script.Node) {
		switch n.Kind {
		case script.NodeAssignment:
			if !strings.HasPrefix(n.Target, "$global:") {
				seen[n.Target] = struct{}{}
			}
		case script.NodeLoop:
			if n.LoopVar != "" {
				seen[n.LoopVar] = struct{}{}
			}
		}
	})
	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

func (e *emitter) emitNodes(nodes []script.Node) {
	for i := range nodes {
		e.emitNode(&nodes[i])
	}
}

func (e *emitter) emitNode(n *script.Node) {
	level, warning := e.cls.classifyNode(n)
	e.record(n, level, warning)

	switch n.Kind {
	case script.NodeAssignment:
		e.emitAssignment(n, level)
	case script.NodeConditional:
		e.emitConditional(n)
	case script.NodeLoop:
		e.emitLoop(n)
	case script.NodeFunctionCall:
		e.emitCall(n, level)
	case script.NodePipeline, script.NodeRawFragment:
		e.line("await %s;", e.bridgeExpr(n.Text))
	}
}

func (e *emitter) emitAssignment(n *script.Node, level Level) {
	switch level {
	case LevelFull:
		expr, _ := translateExpr(n.Expr)
		e.line("%s = %s;", varIdent(n.Target), expr)
	case LevelHybrid:
		e.line("%s = await %s;", varIdent(n.Target), e.bridgeExpr(n.Expr))
	default:
		// Session-scoped target: the whole statement runs in the interpreter
		// so the shared state lands in the session, not in generated code.
		e.line("await %s;", e.bridgeExpr(n.Text))
	}
}

func (e *emitter) emitConditional(n *script.Node) {
	for i, br := range n.Branches {
		keyword := "if"
		if i > 0 {
			keyword = "else if"
		}
		e.line("%s (%s)", keyword, e.condExpr(br.Cond))
		e.line("{")
		e.indent++
		e.emitNodes(br.Body)
		e.indent--
		e.line("}")
	}
	if n.Else != nil {
		e.line("else")
		e.line("{")
		e.indent++
		e.emitNodes(n.Else)
		e.indent--
		e.line("}")
	}
}

func (e *emitter) emitLoop(n *script.Node) {
	if n.LoopVar == "" {
		e.line("while (%s)", e.condExpr(n.Cond))
		e.line("{")
		e.indent++
		e.emitNodes(n.Body)
		e.indent--
		e.line("}")
		return
	}

	source, ok := translateExpr(n.Iterable)
	if !ok {
		source = "await " + e.bridgeExpr(n.Iterable)
	}
	loopVar := varIdent(n.LoopVar)
	e.line("foreach (var %s_item in Seq.Once(%s))", loopVar, source)
	e.line("{")
	e.indent++
	e.line("%s = %s_item;", loopVar, loopVar)
	e.emitNodes(n.Body)
	e.indent--
	e.line("}")
}

func (e *emitter) emitCall(n *script.Node, level Level) {
	if level == LevelBridge {
		e.line("await %s;", e.bridgeExpr(n.Text))
		return
	}

	if _, local := e.cls.localFuncs[n.Command]; local {
		args := make([]string, 0, len(n.Args)+1)
		args = append(args, "bridge")
		for _, a := range n.Args {
			expr, _ := translateExpr(a.Raw)
			args = append(args, expr)
		}
		e.line("await %s(%s);", methodIdent(n.Command), strings.Join(args, ", "))
		return
	}

	switch n.Command {
	case "Write-Output":
		for _, a := range n.Args {
			expr, _ := translateExpr(a.Raw)
			e.line("Output.Emit(%s);", expr)
		}
		if len(n.Args) == 0 {
			e.line("Output.Emit(null);")
		}
	case "Get-Date":
		e.line("Output.Emit(DateTime.UtcNow);")
	case "Start-Sleep":
		e.line("await Task.Delay(%s);", sleepSpan(n.Args))
	}
}

// sleepSpan renders the Start-Sleep argument list as a TimeSpan expression.
// Positional and -Seconds arguments are seconds; -Milliseconds is explicit.
func sleepSpan(args []script.Arg) string {
	unit := "FromSeconds"
	amount := "0"
	for _, a := range args {
		if strings.EqualFold(a.Name, "-Milliseconds") {
			unit = "FromMilliseconds"
		}
		if a.Raw != "" {
			expr, ok := translateExpr(a.Raw)
			if ok {
				amount = expr
			}
		}
	}
	return fmt.Sprintf("TimeSpan.%s(Convert.ToDouble(%s))", unit, amount)
}

// condExpr renders a condition, bridging it when it has no static rewrite.
func (e *emitter) condExpr(cond string) string {
	if expr, ok := translateExpr(cond); ok {
		return fmt.Sprintf("Op.Truthy(%s)", expr)
	}
	return fmt.Sprintf("Op.Truthy(await %s)", e.bridgeExpr(cond))
}

// bridgeExpr renders an InvokeAsync call for a verbatim legacy fragment.
// Locally declared variables referenced by the fragment are bound by value;
// session-scoped ($global:) variables stay in the interpreter session.
func (e *emitter) bridgeExpr(fragment string) string {
	bindings := make([]string, 0, 4)
	for _, v := range fragmentVariables(fragment) {
		if strings.HasPrefix(v, "$global:") {
			continue
		}
		if _, ok := e.declared[v]; !ok {
			continue
		}
		name := strings.TrimPrefix(v, "$")
		bindings = append(bindings, fmt.Sprintf("[%q] = %s", name, varIdent(v)))
	}

	if len(bindings) == 0 {
		return fmt.Sprintf("bridge.InvokeAsync(@%s)", csVerbatim(fragment))
	}
	return fmt.Sprintf("bridge.InvokeAsync(@%s, new Dictionary<string, object?> { %s })",
		csVerbatim(fragment), strings.Join(bindings, ", "))
}

// csVerbatim renders a C# verbatim string literal (quotes doubled).
func csVerbatim(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
