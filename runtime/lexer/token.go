// Package lexer tokenizes the legacy automation language. The scanner is
// deliberately forgiving: anything it cannot place in a known token class
// becomes OTHER, and the parser downgrades statements containing such tokens
// to raw fragments instead of failing the unit.
package lexer

import (
	"fmt"

	"github.com/scriptshift/scriptshift/core/script"
)

// Kind is the token class.
type Kind uint8

const (
	EOF Kind = iota
	NEWLINE
	IDENT    // barewords and command names (Copy-Item, if, function)
	VARIABLE // $name or $global:name
	DASHWORD // -Param names and comparison operators (-eq, -lt)
	NUMBER
	STRING
	EQUALS
	PIPE
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	COMMA
	SEMICOLON
	OTHER // anything unclassified; forces raw-fragment handling
)

var kindNames = [...]string{
	EOF:       "EOF",
	NEWLINE:   "NEWLINE",
	IDENT:     "IDENT",
	VARIABLE:  "VARIABLE",
	DASHWORD:  "DASHWORD",
	NUMBER:    "NUMBER",
	STRING:    "STRING",
	EQUALS:    "EQUALS",
	PIPE:      "PIPE",
	LPAREN:    "LPAREN",
	RPAREN:    "RPAREN",
	LBRACE:    "LBRACE",
	RBRACE:    "RBRACE",
	COMMA:     "COMMA",
	SEMICOLON: "SEMICOLON",
	OTHER:     "OTHER",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Token is one lexeme with its source position. Text preserves the original
// spelling, including quotes on strings; Off/End are byte offsets into the
// scanned source so the parser can recover verbatim fragments for bridged
// execution.
type Token struct {
	Kind Kind
	Text string
	Pos  script.Pos
	Off  int
	End  int
}
