package transpile

import (
	"strings"

	"github.com/scriptshift/scriptshift/runtime/lexer"
)

// operatorRewrites maps legacy comparison/logic operators to C# operators.
var operatorRewrites = map[string]string{
	"-eq":  "==",
	"-ne":  "!=",
	"-gt":  ">",
	"-ge":  ">=",
	"-lt":  "<",
	"-le":  "<=",
	"-and": "&&",
	"-or":  "||",
	"-not": "!",
}

// translateExpr rewrites a legacy expression into C#. ok is false when the
// expression contains anything without a static rewrite (command
// invocations, pipelines, unknown operators); callers then isolate the whole
// expression into a bridge call instead of guessing.
func translateExpr(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "null", true
	}

	var parts []string
	for _, tok := range lexer.Scan(expr) {
		switch tok.Kind {
		case lexer.EOF:
			return strings.Join(parts, " "), true
		case lexer.VARIABLE:
			if strings.HasPrefix(tok.Text, "$global:") {
				// Session-scoped reads must observe interpreter state.
				return "", false
			}
			parts = append(parts, varIdent(tok.Text))
		case lexer.NUMBER:
			parts = append(parts, tok.Text)
		case lexer.STRING:
			parts = append(parts, csString(tok.Text))
		case lexer.DASHWORD:
			op, ok := operatorRewrites[strings.ToLower(tok.Text)]
			if !ok {
				return "", false
			}
			parts = append(parts, op)
		case lexer.IDENT:
			if strings.EqualFold(tok.Text, "true") || strings.EqualFold(tok.Text, "false") {
				parts = append(parts, strings.ToLower(tok.Text))
				continue
			}
			// A bareword in expression position is a command invocation.
			return "", false
		case lexer.LPAREN:
			parts = append(parts, "(")
		case lexer.RPAREN:
			parts = append(parts, ")")
		default:
			return "", false
		}
	}
	return strings.Join(parts, " "), true
}

// csString converts a legacy quoted literal (quotes included) into a C#
// string literal. Backtick escapes collapse to the escaped character before
// re-escaping for C#.
func csString(raw string) string {
	if len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}
	var content strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '`' && i+1 < len(raw) {
			i++
		}
		content.WriteByte(raw[i])
	}

	unescaped := content.String()
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(unescaped); i++ {
		c := unescaped[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// fragmentVariables lists the legacy variables referenced in a fragment, in
// first-appearance order without duplicates. They become the parameter
// bindings of the fragment's bridge command.
func fragmentVariables(fragment string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, tok := range lexer.Scan(fragment) {
		if tok.Kind != lexer.VARIABLE {
			continue
		}
		if _, dup := seen[tok.Text]; dup {
			continue
		}
		seen[tok.Text] = struct{}{}
		names = append(names, tok.Text)
	}
	return names
}
