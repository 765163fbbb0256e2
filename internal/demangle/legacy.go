package demangle

import (
	"strconv"
	"strings"
)

// legacy decodes the pre-v0 Rust scheme: _ZN{len}{ident}...E, where the
// last ident is usually a 17 character "h<16 hex>" hash. LLVM may append
// ".llvm.<digits>" after the terminating E.
func legacy(sym string) (path, hash string, ok bool) {
	s := strings.TrimPrefix(sym, "_ZN")
	if i := strings.Index(s, "E.llvm."); i >= 0 {
		s = s[:i+1]
	}
	if !strings.HasSuffix(s, "E") {
		return "", "", false
	}
	s = s[:len(s)-1]

	var idents []string
	for len(s) > 0 {
		n := 0
		for n < len(s) && s[n] >= '0' && s[n] <= '9' {
			n++
		}
		if n == 0 {
			return "", "", false
		}
		size, err := strconv.Atoi(s[:n])
		if err != nil || size == 0 || n+size > len(s) {
			return "", "", false
		}
		idents = append(idents, s[n:n+size])
		s = s[n+size:]
	}
	if len(idents) == 0 {
		return "", "", false
	}

	if last := idents[len(idents)-1]; isRustHash(last) {
		hash = last
		idents = idents[:len(idents)-1]
	}
	parts := make([]string, 0, len(idents))
	for _, id := range idents {
		dec, ok := decodeIdent(id)
		if !ok {
			return "", "", false
		}
		parts = append(parts, dec)
	}
	return strings.Join(parts, "::"), hash, true
}

func isRustHash(s string) bool {
	if len(s) != 17 || s[0] != 'h' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

var legacyEscapes = map[string]string{
	"SP": "@",
	"BP": "*",
	"RF": "&",
	"LT": "<",
	"GT": ">",
	"LP": "(",
	"RP": ")",
	"C":  ",",
}

func decodeIdent(id string) (string, bool) {
	if strings.HasPrefix(id, "_$") {
		id = id[1:]
	}
	var b strings.Builder
	for i := 0; i < len(id); {
		switch {
		case id[i] == '$':
			end := strings.IndexByte(id[i+1:], '$')
			if end < 0 {
				return "", false
			}
			esc := id[i+1 : i+1+end]
			if r, ok := legacyEscapes[esc]; ok {
				b.WriteString(r)
			} else if strings.HasPrefix(esc, "u") {
				v, err := strconv.ParseUint(esc[1:], 16, 32)
				if err != nil {
					return "", false
				}
				b.WriteRune(rune(v))
			} else {
				return "", false
			}
			i += end + 2
		case strings.HasPrefix(id[i:], ".."):
			b.WriteString("::")
			i += 2
		default:
			b.WriteByte(id[i])
			i++
		}
	}
	return b.String(), true
}
