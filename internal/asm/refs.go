package asm

import (
	"regexp"
	"strings"
)

var symbolTokenRe = regexp.MustCompile(`@?"(?:[^"\\]|\\.)*"|@?[A-Za-z_.$][A-Za-z0-9_.$]*(?:@[A-Za-z0-9_]+)?`)

// GlobalReferences returns the symbol-like tokens in operand text, in order
// of appearance and without duplicates. Relocation suffixes (@PLT,
// @GOTPCREL) and the IR sigil are stripped, quoted names are unquoted.
// Callers match the tokens against known symbols; registers and mnemonics
// simply never match.
func GlobalReferences(text string) []string {
	var out []string
	for _, tok := range symbolTokenRe.FindAllString(text, -1) {
		tok = strings.TrimPrefix(tok, "@")
		if strings.HasPrefix(tok, `"`) {
			tok = strings.Trim(tok, `"`)
		} else if i := strings.IndexByte(tok, '@'); i > 0 {
			tok = tok[:i]
		}
		if tok == "" {
			continue
		}
		out = appendUnique(out, tok)
	}
	return out
}
