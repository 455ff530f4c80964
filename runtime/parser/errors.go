package parser

import (
	"fmt"

	"github.com/scriptshift/scriptshift/core/script"
)

// ParseError reports a malformed unit. It is fatal for that unit only:
// conversion of other units continues, and the failed unit's ConversionResult
// carries this error instead of generated code.
type ParseError struct {
	Unit string
	Pos  script.Pos
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %d:%d: %s", e.Unit, e.Pos.Line, e.Pos.Col, e.Msg)
}
