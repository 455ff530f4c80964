package script

import "sort"

// Function is one named function defined by a unit.
type Function struct {
	Name   string
	Params []string
	Body   []Node
	Span   Span
}

// Unit is one parsed legacy script: an ordered sequence of top-level
// constructs plus the functions it defines. Units are immutable after parse;
// conversion and planning treat them as pure inputs.
type Unit struct {
	Name   string
	Path   string
	Source string

	Functions []Function
	Body      []Node

	// References lists external symbols the unit uses but does not define:
	// command names and shared ($global:) variables read here. The planner
	// draws dependency edges from these.
	References []string

	// Defines lists symbols this unit contributes: its function names and
	// the shared variables it assigns at top level.
	Defines []string
}

// LineCount reports the number of source lines, used by complexity scoring.
func (u *Unit) LineCount() int {
	if u.Source == "" {
		return 0
	}
	lines := 1
	for _, r := range u.Source {
		if r == '\n' {
			lines++
		}
	}
	return lines
}

// AllNodes walks every construct in the unit, function bodies included.
func (u *Unit) AllNodes(visit func(*Node)) {
	for i := range u.Functions {
		Walk(u.Functions[i].Body, visit)
	}
	Walk(u.Body, visit)
}

// References and Defines are kept sorted and deduplicated by the parser;
// Normalize enforces that for units assembled by hand (tests, fixtures).
func (u *Unit) Normalize() {
	u.References = dedupSorted(u.References)
	u.Defines = dedupSorted(u.Defines)
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return in
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
