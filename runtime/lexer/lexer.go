package lexer

import "github.com/scriptshift/scriptshift/core/script"

// Scan tokenizes source in one pass. The token slice always ends with EOF.
// Comments (# to end of line) are dropped; newlines and semicolons are kept
// because they terminate statements.
func Scan(source string) []Token {
	s := &scanner{src: source, line: 1, col: 1}
	// Heuristic: roughly one token per 4 bytes of script text.
	tokens := make([]Token, 0, len(source)/4+8)
	for {
		tok := s.next()
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens
		}
	}
}

type scanner struct {
	src  string
	off  int
	line int
	col  int
}

func (s *scanner) peek() byte {
	if s.off >= len(s.src) {
		return 0
	}
	return s.src[s.off]
}

func (s *scanner) peekAt(n int) byte {
	if s.off+n >= len(s.src) {
		return 0
	}
	return s.src[s.off+n]
}

func (s *scanner) advance() byte {
	c := s.src[s.off]
	s.off++
	if c == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return c
}

func (s *scanner) pos() script.Pos {
	return script.Pos{Line: s.line, Col: s.col}
}

func (s *scanner) next() Token {
	// Skip horizontal whitespace and comments. Newlines are tokens.
	for s.off < len(s.src) {
		c := s.peek()
		if c == ' ' || c == '\t' || c == '\r' {
			s.advance()
			continue
		}
		if c == '#' {
			for s.off < len(s.src) && s.peek() != '\n' {
				s.advance()
			}
			continue
		}
		break
	}

	start := s.pos()
	startOff := s.off
	tok := s.scanToken(start)
	tok.Off = startOff
	tok.End = s.off
	return tok
}

func (s *scanner) scanToken(start script.Pos) Token {
	if s.off >= len(s.src) {
		return Token{Kind: EOF, Pos: start}
	}

	c := s.peek()
	switch {
	case c == '\n':
		s.advance()
		return Token{Kind: NEWLINE, Text: "\n", Pos: start}
	case c == '$':
		return s.variable(start)
	case c == '-' && isWordStart(s.peekAt(1)):
		return s.dashword(start)
	case isWordStart(c):
		return s.ident(start)
	case c >= '0' && c <= '9':
		return s.number(start)
	case c == '"' || c == '\'':
		return s.quoted(start)
	}

	s.advance()
	switch c {
	case '=':
		return Token{Kind: EQUALS, Text: "=", Pos: start}
	case '|':
		return Token{Kind: PIPE, Text: "|", Pos: start}
	case '(':
		return Token{Kind: LPAREN, Text: "(", Pos: start}
	case ')':
		return Token{Kind: RPAREN, Text: ")", Pos: start}
	case '{':
		return Token{Kind: LBRACE, Text: "{", Pos: start}
	case '}':
		return Token{Kind: RBRACE, Text: "}", Pos: start}
	case ',':
		return Token{Kind: COMMA, Text: ",", Pos: start}
	case ';':
		return Token{Kind: SEMICOLON, Text: ";", Pos: start}
	default:
		return Token{Kind: OTHER, Text: string(c), Pos: start}
	}
}

// variable scans $name or $scope:name ($global:state).
func (s *scanner) variable(start script.Pos) Token {
	from := s.off
	s.advance() // $
	for s.off < len(s.src) && (isWordChar(s.peek()) || s.peek() == ':') {
		// A colon only continues the token when a word follows (scope prefix).
		if s.peek() == ':' && !isWordStart(s.peekAt(1)) {
			break
		}
		s.advance()
	}
	return Token{Kind: VARIABLE, Text: s.src[from:s.off], Pos: start}
}

// dashword scans -Param names and operators like -eq. The leading dash is
// part of the token.
func (s *scanner) dashword(start script.Pos) Token {
	from := s.off
	s.advance() // -
	for s.off < len(s.src) && isWordChar(s.peek()) {
		s.advance()
	}
	return Token{Kind: DASHWORD, Text: s.src[from:s.off], Pos: start}
}

// ident scans barewords. Internal hyphens are part of the word (Verb-Noun
// command names), so "Copy-Item" is a single token.
func (s *scanner) ident(start script.Pos) Token {
	from := s.off
	s.advance()
	for s.off < len(s.src) {
		c := s.peek()
		if isWordChar(c) {
			s.advance()
			continue
		}
		if c == '-' && isWordStart(s.peekAt(1)) {
			s.advance()
			continue
		}
		if c == '.' && isWordChar(s.peekAt(1)) {
			// dotted names (file.ext, Module.Command)
			s.advance()
			continue
		}
		break
	}
	return Token{Kind: IDENT, Text: s.src[from:s.off], Pos: start}
}

func (s *scanner) number(start script.Pos) Token {
	from := s.off
	for s.off < len(s.src) && (s.peek() >= '0' && s.peek() <= '9' || s.peek() == '.') {
		s.advance()
	}
	return Token{Kind: NUMBER, Text: s.src[from:s.off], Pos: start}
}

// quoted scans a string literal. Text keeps the quotes so fragments rebuild
// verbatim. An unterminated string runs to end of line and is left for the
// parser to reject.
func (s *scanner) quoted(start script.Pos) Token {
	from := s.off
	quote := s.advance()
	for s.off < len(s.src) {
		c := s.peek()
		if c == '\n' {
			return Token{Kind: OTHER, Text: s.src[from:s.off], Pos: start}
		}
		s.advance()
		if c == '`' && s.off < len(s.src) {
			s.advance() // backtick escape
			continue
		}
		if c == quote {
			return Token{Kind: STRING, Text: s.src[from:s.off], Pos: start}
		}
	}
	return Token{Kind: OTHER, Text: s.src[from:s.off], Pos: start}
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}
