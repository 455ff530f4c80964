// Package parser builds ScriptUnits from legacy script source.
//
// The grammar is statement-oriented. Statements the parser understands become
// structured constructs (assignment, conditional, loop, call, pipeline);
// statements it does not understand become raw fragments, preserved verbatim
// so they can still run through the bridge. Only structural damage (an
// unterminated block, a malformed header) fails the unit with a ParseError.
package parser

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/scriptshift/scriptshift/core/script"
	"github.com/scriptshift/scriptshift/runtime/lexer"
)

// Parse parses one unit of legacy source. The returned unit is immutable by
// convention: later stages treat it as a pure input.
func Parse(name, source string) (*script.Unit, *ParseError) {
	p := &parser{
		name:   name,
		src:    source,
		tokens: lexer.Scan(source),
	}
	return p.unit()
}

// ParseFile reads and parses path. The unit name is the file's base name
// without extension.
func ParseFile(path string) (*script.Unit, *ParseError) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Unit: path, Pos: script.Pos{Line: 1, Col: 1}, Msg: err.Error()}
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	unit, perr := Parse(name, string(data))
	if perr != nil {
		return nil, perr
	}
	unit.Path = path
	return unit, nil
}

type parser struct {
	name   string
	src    string
	tokens []lexer.Token
	pos    int

	refs    map[string]struct{}
	defines map[string]struct{}
	locals  map[string]struct{}
}

func (p *parser) unit() (*script.Unit, *ParseError) {
	p.refs = make(map[string]struct{})
	p.defines = make(map[string]struct{})
	p.locals = make(map[string]struct{})

	unit := &script.Unit{Name: p.name, Source: p.src}

	for {
		p.skipSeparators()
		if p.at(lexer.EOF) {
			break
		}
		if p.atKeyword("function") {
			fn, err := p.functionDef()
			if err != nil {
				return nil, err
			}
			unit.Functions = append(unit.Functions, fn)
			continue
		}
		node, err := p.statement()
		if err != nil {
			return nil, err
		}
		unit.Body = append(unit.Body, node)
	}

	// Symbols defined in this unit are not external references.
	for def := range p.defines {
		delete(p.refs, def)
	}
	for ref := range p.refs {
		unit.References = append(unit.References, ref)
	}
	for def := range p.defines {
		unit.Defines = append(unit.Defines, def)
	}
	unit.Normalize()
	return unit, nil
}

// --- token helpers ---

func (p *parser) cur() lexer.Token  { return p.tokens[p.pos] }
func (p *parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *parser) atKeyword(word string) bool {
	t := p.cur()
	return t.Kind == lexer.IDENT && strings.EqualFold(t.Text, word)
}

func (p *parser) bump() lexer.Token {
	t := p.cur()
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *parser) skipSeparators() {
	for p.at(lexer.NEWLINE) || p.at(lexer.SEMICOLON) {
		p.bump()
	}
}

func (p *parser) skipNewlines() {
	for p.at(lexer.NEWLINE) {
		p.bump()
	}
}

func (p *parser) fail(pos script.Pos, msg string) *ParseError {
	return &ParseError{Unit: p.name, Pos: pos, Msg: msg}
}

func endPos(t lexer.Token) script.Pos {
	return script.Pos{Line: t.Pos.Line, Col: t.Pos.Col + len(t.Text)}
}

// --- declarations ---

func (p *parser) functionDef() (script.Function, *ParseError) {
	kw := p.bump() // function
	if !p.at(lexer.IDENT) {
		return script.Function{}, p.fail(p.cur().Pos, "function name expected")
	}
	nameTok := p.bump()

	var params []string
	if p.at(lexer.LPAREN) {
		p.bump()
		for !p.at(lexer.RPAREN) {
			if p.at(lexer.EOF) {
				return script.Function{}, p.fail(nameTok.Pos, "unterminated parameter list")
			}
			if p.at(lexer.VARIABLE) {
				params = append(params, p.bump().Text)
				continue
			}
			if p.at(lexer.COMMA) || p.at(lexer.NEWLINE) {
				p.bump()
				continue
			}
			return script.Function{}, p.fail(p.cur().Pos, "parameter name expected")
		}
		p.bump() // )
	}

	body, end, err := p.block()
	if err != nil {
		return script.Function{}, err
	}

	p.defines[nameTok.Text] = struct{}{}
	return script.Function{
		Name:   nameTok.Text,
		Params: params,
		Body:   body,
		Span:   script.Span{Start: kw.Pos, End: end},
	}, nil
}

// --- statements ---

func (p *parser) statement() (script.Node, *ParseError) {
	switch {
	case p.atKeyword("if"):
		return p.conditional()
	case p.atKeyword("foreach"):
		return p.foreachLoop()
	case p.atKeyword("while"):
		return p.whileLoop()
	case p.at(lexer.VARIABLE) && p.peekKind(1) == lexer.EQUALS:
		return p.assignment(), nil
	case p.at(lexer.IDENT):
		return p.callOrPipeline(), nil
	default:
		return p.rawFragment(), nil
	}
}

func (p *parser) peekKind(n int) lexer.Kind {
	if p.pos+n >= len(p.tokens) {
		return lexer.EOF
	}
	return p.tokens[p.pos+n].Kind
}

// statementExtent finds the token range of a simple (single-line) statement:
// everything up to the next newline, semicolon, closing brace or EOF.
func (p *parser) statementExtent() (first, last int) {
	first = p.pos
	last = p.pos
	for i := p.pos; i < len(p.tokens); i++ {
		k := p.tokens[i].Kind
		if k == lexer.NEWLINE || k == lexer.SEMICOLON || k == lexer.RBRACE || k == lexer.EOF {
			break
		}
		last = i
	}
	return first, last
}

// hasUnknownToken reports whether the simple statement contains a token the
// grammar has no place for, which forces raw-fragment handling.
func (p *parser) hasUnknownToken(first, last int) bool {
	for i := first; i <= last; i++ {
		if p.tokens[i].Kind == lexer.OTHER {
			return true
		}
	}
	return false
}

func (p *parser) sliceText(first, last int) string {
	return strings.TrimSpace(p.src[p.tokens[first].Off:p.tokens[last].End])
}

// rawFragment consumes one simple statement verbatim.
func (p *parser) rawFragment() script.Node {
	first, last := p.statementExtent()
	text := p.sliceText(first, last)
	p.noteVariableRefs(first, last)
	node := script.Node{
		Kind: script.NodeRawFragment,
		Span: script.Span{Start: p.tokens[first].Pos, End: endPos(p.tokens[last])},
		Text: text,
	}
	p.pos = last + 1
	return node
}

func (p *parser) assignment() script.Node {
	first, last := p.statementExtent()
	if p.hasUnknownToken(first, last) {
		return p.rawFragment()
	}

	target := p.bump() // VARIABLE
	p.bump()           // =
	exprFirst := p.pos
	text := p.sliceText(first, last)

	var expr string
	if exprFirst <= last {
		expr = p.sliceText(exprFirst, last)
		p.noteVariableRefs(exprFirst, last)
		p.noteCommandRefs(exprFirst, last)
	}
	p.pos = last + 1

	if strings.HasPrefix(target.Text, "$global:") {
		p.defines[target.Text] = struct{}{}
	} else {
		p.locals[target.Text] = struct{}{}
	}

	return script.Node{
		Kind:   script.NodeAssignment,
		Span:   script.Span{Start: target.Pos, End: endPos(p.tokens[last])},
		Text:   text,
		Target: target.Text,
		Expr:   expr,
	}
}

func (p *parser) callOrPipeline() script.Node {
	first, last := p.statementExtent()
	if p.hasUnknownToken(first, last) {
		return p.rawFragment()
	}
	text := p.sliceText(first, last)
	p.noteVariableRefs(first, last)

	var stages []script.Node
	stageStart := first
	for i := first; i <= last+1; i++ {
		if i <= last && p.tokens[i].Kind != lexer.PIPE {
			continue
		}
		stageEnd := i - 1
		if stageEnd < stageStart || p.tokens[stageStart].Kind != lexer.IDENT {
			// A malformed stage (empty, or not command-shaped) downgrades the
			// whole statement to a raw fragment.
			p.pos = first
			return p.rawFragment()
		}
		stages = append(stages, p.call(stageStart, stageEnd))
		stageStart = i + 1
	}
	p.pos = last + 1

	if len(stages) == 1 {
		return stages[0]
	}
	return script.Node{
		Kind:   script.NodePipeline,
		Span:   script.Span{Start: p.tokens[first].Pos, End: endPos(p.tokens[last])},
		Text:   text,
		Stages: stages,
	}
}

// call builds a FunctionCall node from tokens[first..last].
func (p *parser) call(first, last int) script.Node {
	cmd := p.tokens[first]
	p.refs[cmd.Text] = struct{}{}

	var args []script.Arg
	i := first + 1
	for i <= last {
		t := p.tokens[i]
		switch t.Kind {
		case lexer.DASHWORD:
			name := t.Text
			// Only an explicit value (variable, string literal, number)
			// directly after a -Param binds to it. A following bareword is a
			// positional argument and the dashword is a switch flag.
			if i+1 <= last && isValueToken(p.tokens[i+1].Kind) {
				args = append(args, script.Arg{Name: name, Raw: p.tokens[i+1].Text})
				i += 2
			} else {
				args = append(args, script.Arg{Name: name})
				i++
			}
		case lexer.LPAREN:
			// Parenthesized expression as positional argument, kept raw.
			depth := 0
			j := i
			for ; j <= last; j++ {
				switch p.tokens[j].Kind {
				case lexer.LPAREN:
					depth++
				case lexer.RPAREN:
					depth--
				}
				if depth == 0 {
					break
				}
			}
			if j > last {
				j = last // unbalanced paren; take what is there
			}
			args = append(args, script.Arg{Raw: p.sliceText(i, j)})
			i = j + 1
		case lexer.COMMA:
			i++
		default:
			args = append(args, script.Arg{Raw: t.Text})
			i++
		}
	}

	return script.Node{
		Kind:    script.NodeFunctionCall,
		Span:    script.Span{Start: cmd.Pos, End: endPos(p.tokens[last])},
		Text:    p.sliceText(first, last),
		Command: cmd.Text,
		Args:    args,
	}
}

func isValueToken(k lexer.Kind) bool {
	switch k {
	case lexer.VARIABLE, lexer.STRING, lexer.NUMBER:
		return true
	default:
		return false
	}
}

// --- control flow ---

func (p *parser) conditional() (script.Node, *ParseError) {
	kw := p.bump() // if
	start := kw.Pos

	cond, err := p.parenExpr()
	if err != nil {
		return script.Node{}, err
	}
	body, end, err := p.block()
	if err != nil {
		return script.Node{}, err
	}

	node := script.Node{
		Kind:     script.NodeConditional,
		Branches: []script.Branch{{Cond: cond, Body: body}},
	}

	for {
		mark := p.pos
		p.skipNewlines()
		if p.atKeyword("elseif") {
			p.bump()
			econd, err := p.parenExpr()
			if err != nil {
				return script.Node{}, err
			}
			ebody, eend, err := p.block()
			if err != nil {
				return script.Node{}, err
			}
			node.Branches = append(node.Branches, script.Branch{Cond: econd, Body: ebody})
			end = eend
			continue
		}
		if p.atKeyword("else") {
			p.bump()
			ebody, eend, err := p.block()
			if err != nil {
				return script.Node{}, err
			}
			node.Else = ebody
			end = eend
		} else {
			p.pos = mark
		}
		break
	}

	node.Span = script.Span{Start: start, End: end}
	return node, nil
}

func (p *parser) foreachLoop() (script.Node, *ParseError) {
	kw := p.bump() // foreach
	if !p.at(lexer.LPAREN) {
		return script.Node{}, p.fail(p.cur().Pos, "'(' expected after foreach")
	}
	p.bump()
	if !p.at(lexer.VARIABLE) {
		return script.Node{}, p.fail(p.cur().Pos, "loop variable expected")
	}
	loopVar := p.bump()
	if !p.atKeyword("in") {
		return script.Node{}, p.fail(p.cur().Pos, "'in' expected in foreach header")
	}
	p.bump()

	iterFirst := p.pos
	depth := 1
	for depth > 0 {
		switch p.cur().Kind {
		case lexer.LPAREN:
			depth++
		case lexer.RPAREN:
			depth--
		case lexer.EOF:
			return script.Node{}, p.fail(kw.Pos, "unterminated foreach header")
		}
		if depth > 0 {
			p.bump()
		}
	}
	iterable := ""
	if p.pos > iterFirst {
		iterable = p.sliceText(iterFirst, p.pos-1)
		p.noteVariableRefs(iterFirst, p.pos-1)
	}
	p.bump() // )

	body, end, err := p.block()
	if err != nil {
		return script.Node{}, err
	}
	p.locals[loopVar.Text] = struct{}{}

	return script.Node{
		Kind:     script.NodeLoop,
		Span:     script.Span{Start: kw.Pos, End: end},
		LoopVar:  loopVar.Text,
		Iterable: iterable,
		Body:     body,
	}, nil
}

func (p *parser) whileLoop() (script.Node, *ParseError) {
	kw := p.bump() // while
	cond, err := p.parenExpr()
	if err != nil {
		return script.Node{}, err
	}
	body, end, err := p.block()
	if err != nil {
		return script.Node{}, err
	}
	return script.Node{
		Kind: script.NodeLoop,
		Span: script.Span{Start: kw.Pos, End: end},
		Cond: cond,
		Body: body,
	}, nil
}

// parenExpr captures the raw text of a balanced parenthesized expression.
func (p *parser) parenExpr() (string, *ParseError) {
	if !p.at(lexer.LPAREN) {
		return "", p.fail(p.cur().Pos, "'(' expected")
	}
	open := p.bump()
	first := p.pos
	depth := 1
	for depth > 0 {
		switch p.cur().Kind {
		case lexer.LPAREN:
			depth++
		case lexer.RPAREN:
			depth--
		case lexer.EOF:
			return "", p.fail(open.Pos, "unterminated '('")
		}
		if depth > 0 {
			p.bump()
		}
	}
	text := ""
	if p.pos > first {
		text = p.sliceText(first, p.pos-1)
		p.noteVariableRefs(first, p.pos-1)
	}
	p.bump() // )
	return text, nil
}

// block parses { statements } and returns the body plus the closing brace
// position.
func (p *parser) block() ([]script.Node, script.Pos, *ParseError) {
	p.skipNewlines()
	if !p.at(lexer.LBRACE) {
		return nil, script.Pos{}, p.fail(p.cur().Pos, "'{' expected")
	}
	open := p.bump()

	var body []script.Node
	for {
		p.skipSeparators()
		if p.at(lexer.RBRACE) {
			closing := p.bump()
			return body, endPos(closing), nil
		}
		if p.at(lexer.EOF) {
			return nil, script.Pos{}, p.fail(open.Pos, "unterminated block")
		}
		node, err := p.statement()
		if err != nil {
			return nil, script.Pos{}, err
		}
		body = append(body, node)
	}
}

// --- reference collection ---

// noteVariableRefs records reads of shared ($global:) variables inside the
// token range. Plain variables are unit-local and never cross units.
func (p *parser) noteVariableRefs(first, last int) {
	for i := first; i <= last && i < len(p.tokens); i++ {
		t := p.tokens[i]
		if t.Kind == lexer.VARIABLE && strings.HasPrefix(t.Text, "$global:") {
			p.refs[t.Text] = struct{}{}
		}
	}
}

// noteCommandRefs records command names invoked inside an expression range
// (e.g. the right-hand side of an assignment).
func (p *parser) noteCommandRefs(first, last int) {
	expectCommand := true
	for i := first; i <= last && i < len(p.tokens); i++ {
		t := p.tokens[i]
		switch t.Kind {
		case lexer.IDENT:
			if expectCommand {
				p.refs[t.Text] = struct{}{}
				expectCommand = false
			}
		case lexer.PIPE, lexer.LPAREN:
			expectCommand = true
		default:
			expectCommand = false
		}
	}
}
