package transpile

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/scriptshift/scriptshift/core/invariant"
)

// identSalt is the fixed namespace for generated-identifier derivation.
// Deriving suffixes from (salt, original name) instead of a traversal
// counter keeps output byte-identical across runs and insensitive to
// unrelated edits elsewhere in the unit.
const identSalt = "scriptshift/ident/v1"

// stableSuffix returns a 6-hex-digit tag derived from the original
// identifier. Same name, same suffix, always.
func stableSuffix(original string) string {
	kdf := hkdf.New(sha3.New256, []byte(original), nil, []byte(identSalt))
	tag := make([]byte, 3)
	_, err := kdf.Read(tag)
	invariant.ExpectNoError(err, "identifier derivation")
	return hex.EncodeToString(tag)
}

// varIdent maps a legacy variable ($name, $global:name) to a C# local
// identifier. The stable suffix disambiguates collisions introduced by
// sanitization (e.g. "$a-b" and "$a_b").
func varIdent(variable string) string {
	name := strings.TrimPrefix(variable, "$")
	name = strings.TrimPrefix(name, "global:")
	return sanitize(name, false) + "_" + stableSuffix(variable)
}

// methodIdent maps a legacy function name (Verb-Noun) to a C# method name.
func methodIdent(function string) string {
	return sanitize(function, true) + "_" + stableSuffix(function)
}

// classIdent maps a unit name to a C# class name (no suffix: unit names are
// unique within a migration and the class is the file's single top-level
// declaration).
func classIdent(unit string) string {
	return sanitize(unit, true)
}

// sanitize rewrites a legacy name into a valid C# identifier fragment.
// Hyphenated words are joined; pascal selects PascalCase, otherwise the
// first rune is lowered.
func sanitize(name string, pascal bool) string {
	var b strings.Builder
	upperNext := pascal
	for _, r := range name {
		switch {
		case r == '-' || r == '_' || r == ':' || r == '.':
			upperNext = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if upperNext {
				b.WriteRune(unicode.ToUpper(r))
				upperNext = false
			} else {
				b.WriteRune(r)
			}
		}
	}
	out := b.String()
	if out == "" {
		return "X"
	}
	if !pascal {
		out = strings.ToLower(out[:1]) + out[1:]
	}
	if !unicode.IsLetter(rune(out[0])) && out[0] != '_' {
		out = "x" + out
	}
	return out
}
