package script

import "fmt"

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// Span covers a half-open range of source text, used to anchor warnings and
// diffs back to the legacy script.
type Span struct {
	Start Pos
	End   Pos
}

func (s Span) String() string {
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%d:%d-%d", s.Start.Line, s.Start.Col, s.End.Col)
	}
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Col, s.End.Line, s.End.Col)
}
