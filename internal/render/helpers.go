package render

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// dotEscape makes s safe inside an HTML-like DOT label.
func dotEscape(s string) string { return htmlEscaper.Replace(s) }

// dotID maps a symbol name to a DOT identifier. Anything outside
// [A-Za-z0-9_] is hex encoded so distinct names stay distinct.
func dotID(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 2)
	b.WriteString("n_")
	for _, c := range name {
		switch {
		case c == '_', c < utf8.RuneSelf && (unicode.IsLetter(c) || unicode.IsDigit(c)):
			b.WriteRune(c)
		default:
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

// splitOwner separates a demangled path into its parent module or type
// and the final segment. "demo::Point::new" gives "demo::Point", "new".
// Generic arguments are skipped when looking for the separator.
func splitOwner(name string) (owner, leaf string) {
	depth := 0
	for i := len(name) - 1; i > 0; i-- {
		switch name[i] {
		case '>':
			depth++
		case '<':
			depth--
		case ':':
			if depth == 0 && name[i-1] == ':' {
				return name[:i-1], name[i+1:]
			}
		}
	}
	return "", name
}

// truncLabel cuts s to at most n runes, ending in "...".
func truncLabel(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
