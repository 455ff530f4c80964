package script

import "fmt"

// NodeKind discriminates the construct variants. The set is closed: anything
// the parser cannot place in a known category becomes a RawFragment and is
// classified for bridged execution, never guess-translated.
type NodeKind uint8

const (
	NodeAssignment NodeKind = iota
	NodeConditional
	NodeLoop
	NodeFunctionCall
	NodePipeline
	NodeRawFragment
)

func (k NodeKind) String() string {
	switch k {
	case NodeAssignment:
		return "assignment"
	case NodeConditional:
		return "conditional"
	case NodeLoop:
		return "loop"
	case NodeFunctionCall:
		return "function-call"
	case NodePipeline:
		return "pipeline"
	case NodeRawFragment:
		return "raw-fragment"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// Arg is one argument to a command call. Named arguments come from
// "-Name value" syntax; positional arguments have an empty Name.
type Arg struct {
	Name string
	Raw  string
}

// Branch is one condition/body pair of a conditional (the if arm plus any
// elseif arms, in source order).
type Branch struct {
	Cond string
	Body []Node
}

// Node is a closed union over the construct variants. Each node owns its
// children exclusively; the parser never aliases subtrees, so the structure
// is a true tree with no back references.
//
// Active fields by Kind:
//
//	Assignment    Target, Expr
//	Conditional   Branches, Else
//	Loop          LoopVar, Iterable (foreach) or Cond (while), Body
//	FunctionCall  Command, Args
//	Pipeline      Stages (each a FunctionCall)
//	RawFragment   Text only
type Node struct {
	Kind NodeKind
	Span Span
	Text string // verbatim source fragment, preserved for bridged execution

	Target string
	Expr   string

	Branches []Branch
	Else     []Node

	LoopVar  string
	Iterable string
	Cond     string
	Body     []Node

	Command string
	Args    []Arg

	Stages []Node
}

// Walk visits nodes in depth-first preorder, including every child body.
func Walk(nodes []Node, visit func(*Node)) {
	for i := range nodes {
		n := &nodes[i]
		visit(n)
		for bi := range n.Branches {
			Walk(n.Branches[bi].Body, visit)
		}
		Walk(n.Else, visit)
		Walk(n.Body, visit)
		Walk(n.Stages, visit)
	}
}
