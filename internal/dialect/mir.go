package dialect

import (
	"regexp"
	"strings"

	"asmscope/internal/asm"
)

// MIR is the dialect of the mid-level IR dump: `//` comment blocks, items
// opened by an unindented header and closed by an unindented `}`.
type MIR struct{}

func (MIR) Name() string { return "mir" }

var (
	mirBlockRe = regexp.MustCompile(`^\s+(bb[0-9]+)(?:\s*\(cleanup\))?:\s*\{`)
	mirRefRe   = regexp.MustCompile(`\bbb[0-9]+\b`)
)

func (MIR) IsLabel(line string) (asm.Label, bool) {
	if m := mirBlockRe.FindStringSubmatch(line); m != nil {
		return asm.Label{Name: m[1], Kind: asm.LabelBlock}, true
	}
	if line == "" || line[0] == ' ' || line[0] == '\t' || line == "}" || strings.HasPrefix(line, "//") {
		return asm.Label{}, false
	}
	return asm.Label{Name: mirItemName(line), Kind: asm.LabelGlobal}, true
}

// mirItemName strips the body opener from an item header:
// "fn main() -> () {" becomes "fn main()".
func mirItemName(header string) string {
	name := strings.TrimSpace(header)
	for {
		trimmed := name
		for _, suffix := range []string{" {", " =", " -> ()"} {
			trimmed = strings.TrimSuffix(trimmed, suffix)
		}
		if trimmed == name {
			return name
		}
		name = trimmed
	}
}

func (MIR) IsComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "//")
}

func (MIR) IsDirective(line string) (asm.Directive, bool, error) {
	t := strings.TrimSpace(line)
	if strings.HasPrefix(t, "debug ") {
		return asm.Directive{Kind: asm.DirDebug, Name: "debug", Args: strings.TrimPrefix(t, "debug ")}, true, nil
	}
	return asm.Directive{}, false, nil
}

func (MIR) IsFunctionOpen(stmts []asm.Statement, i int) (string, bool) {
	s := &stmts[i]
	if s.Kind == asm.KindLabel && s.Label.Kind == asm.LabelGlobal {
		return s.Label.Name, true
	}
	return "", false
}

func (MIR) absorbs(s *asm.Statement, _ string) bool {
	return s.Kind == asm.KindComment
}

func (MIR) closes(s *asm.Statement, _ string) (bool, bool) {
	return s.Text == "}", true
}

func (MIR) references(text string) []string {
	var out []string
	for _, m := range mirRefRe.FindAllString(text, -1) {
		out = appendUnique(out, m)
	}
	return out
}
