package transpile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/scriptshift/scriptshift/core/script"
)

// categoryTable maps syntactic categories to their baseline disposition.
// FunctionCall is refined per command name; Assignment and Conditional are
// refined by whether their expressions translate (see classifyNode).
// Constructs outside this table do not exist: the parser's node set is
// closed, and anything it cannot shape is already a RawFragment.
var categoryTable = map[script.NodeKind]Disposition{
	script.NodeAssignment:   DispositionDirect,
	script.NodeConditional:  DispositionDirect,
	script.NodeLoop:         DispositionDirect,
	script.NodeFunctionCall: DispositionDirect,
	script.NodePipeline:     DispositionAmbiguous,
	script.NodeRawFragment:  DispositionBridge,
}

// commandRewrites lists legacy commands with a known one-to-one structural
// rewrite. Anything absent here is bridge-required: downgraded, never
// guess-translated.
var commandRewrites = map[string]struct{}{
	"Write-Output": {},
	"Get-Date":     {},
	"Start-Sleep":  {},
}

var knownCommands = func() []string {
	names := make([]string, 0, len(commandRewrites))
	for name := range commandRewrites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}()

// Warning records a downgraded or isolated construct with its source
// location, so migration reports can point back at the legacy script.
type Warning struct {
	Span    script.Span
	Kind    script.NodeKind
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Span, w.Kind, w.Message)
}

// classifier resolves per-node levels within one unit. Locally defined
// functions count as direct call targets.
type classifier struct {
	localFuncs map[string]struct{}
}

func newClassifier(unit *script.Unit) *classifier {
	locals := make(map[string]struct{}, len(unit.Functions))
	for _, fn := range unit.Functions {
		locals[fn.Name] = struct{}{}
	}
	return &classifier{localFuncs: locals}
}

// classifyNode determines the conversion level for a single node and an
// optional warning. The level covers the node itself; children are
// classified separately during emission.
func (c *classifier) classifyNode(n *script.Node) (Level, *Warning) {
	switch categoryTable[n.Kind] {
	case DispositionBridge:
		return LevelBridge, &Warning{
			Span:    n.Span,
			Kind:    n.Kind,
			Message: "construct has no structural translation; delegated to bridge",
		}
	case DispositionAmbiguous:
		return LevelHybrid, &Warning{
			Span:    n.Span,
			Kind:    n.Kind,
			Message: "one-pass pipeline semantics preserved via bridge; surrounding flow translated",
		}
	}

	switch n.Kind {
	case script.NodeFunctionCall:
		return c.classifyCall(n)
	case script.NodeAssignment:
		if strings.HasPrefix(n.Target, "$global:") {
			// Session-scoped state lives in the interpreter session; the
			// whole statement is delegated so the write lands there.
			return LevelBridge, &Warning{
				Span:    n.Span,
				Kind:    n.Kind,
				Message: fmt.Sprintf("assignment to session-scoped variable %s delegated to bridge", n.Target),
			}
		}
		if _, ok := translateExpr(n.Expr); !ok {
			return LevelHybrid, &Warning{
				Span:    n.Span,
				Kind:    n.Kind,
				Message: fmt.Sprintf("right-hand side %q is not statically translatable; isolated into a bridge call", n.Expr),
			}
		}
		return LevelFull, nil
	case script.NodeConditional:
		for _, br := range n.Branches {
			if _, ok := translateExpr(br.Cond); !ok {
				return LevelHybrid, &Warning{
					Span:    n.Span,
					Kind:    n.Kind,
					Message: fmt.Sprintf("condition %q is not statically translatable; isolated into a bridge call", br.Cond),
				}
			}
		}
		return LevelFull, nil
	case script.NodeLoop:
		if n.LoopVar == "" {
			if _, ok := translateExpr(n.Cond); !ok {
				return LevelHybrid, &Warning{
					Span:    n.Span,
					Kind:    n.Kind,
					Message: fmt.Sprintf("loop condition %q is not statically translatable; isolated into a bridge call", n.Cond),
				}
			}
		} else if _, ok := translateExpr(n.Iterable); !ok {
			return LevelHybrid, &Warning{
				Span:    n.Span,
				Kind:    n.Kind,
				Message: fmt.Sprintf("loop source %q is not statically translatable; isolated into a bridge call", n.Iterable),
			}
		}
		return LevelFull, nil
	default:
		return LevelFull, nil
	}
}

func (c *classifier) classifyCall(n *script.Node) (Level, *Warning) {
	_, local := c.localFuncs[n.Command]
	_, rewrite := commandRewrites[n.Command]
	if local || rewrite {
		for _, a := range n.Args {
			if a.Raw == "" {
				continue
			}
			if _, ok := translateExpr(a.Raw); !ok {
				return LevelBridge, &Warning{
					Span:    n.Span,
					Kind:    n.Kind,
					Message: fmt.Sprintf("argument %q of %q is not statically translatable; call delegated to bridge", a.Raw, n.Command),
				}
			}
		}
		return LevelFull, nil
	}

	msg := fmt.Sprintf("command %q has no native rewrite; delegated to bridge", n.Command)
	if suggestion := closestCommand(n.Command); suggestion != "" {
		msg += fmt.Sprintf(" (closest native rewrite: %q)", suggestion)
	}
	return LevelBridge, &Warning{Span: n.Span, Kind: n.Kind, Message: msg}
}

// closestCommand suggests a known-translatable command when the unknown name
// is a near miss, typically a typo'd or aliased spelling.
func closestCommand(name string) string {
	matches := fuzzy.RankFindNormalizedFold(name, knownCommands)
	if len(matches) == 0 {
		return ""
	}
	sort.Sort(matches)
	best := matches[0]
	// Distance gate keeps unrelated commands from producing noise.
	if best.Distance > len(best.Target)/2 {
		return ""
	}
	return best.Target
}
