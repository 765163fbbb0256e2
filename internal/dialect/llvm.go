package dialect

import (
	"regexp"
	"strings"

	"asmscope/internal/asm"
)

// LLVM is the dialect of textual LLVM IR, before or after optimization.
type LLVM struct{}

func (LLVM) Name() string { return "llvm" }

var (
	llvmDefineRe = regexp.MustCompile(`^define\b[^@]*@("(?:[^"\\]|\\.)*"|[-a-zA-Z$._0-9]+)\s*\(`)
	llvmBlockRe  = regexp.MustCompile(`^("(?:[^"\\]|\\.)*"|[-a-zA-Z$._0-9]+):(?:\s*;.*)?$`)
	llvmGlobalRe = regexp.MustCompile(`^@("(?:[^"\\]|\\.)*"|[-a-zA-Z$._0-9]+)\s*=`)
	llvmLabelRe  = regexp.MustCompile(`label %("(?:[^"\\]|\\.)*"|[-a-zA-Z$._0-9]+)`)
	llvmPhiRe    = regexp.MustCompile(`\[\s*[^,\[\]]+,\s*%("(?:[^"\\]|\\.)*"|[-a-zA-Z$._0-9]+)\s*\]`)
)

func (LLVM) IsLabel(line string) (asm.Label, bool) {
	if m := llvmDefineRe.FindStringSubmatch(line); m != nil {
		return asm.Label{Name: strings.Trim(m[1], `"`), Kind: asm.LabelGlobal}, true
	}
	if m := llvmBlockRe.FindStringSubmatch(line); m != nil {
		return asm.Label{Name: strings.Trim(m[1], `"`), Kind: asm.LabelBlock}, true
	}
	return asm.Label{}, false
}

func (LLVM) IsComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), ";")
}

func (LLVM) IsDirective(line string) (asm.Directive, bool, error) {
	t := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(t, "#dbg_"), strings.HasPrefix(t, "call void @llvm.dbg."),
		strings.HasPrefix(t, "tail call void @llvm.dbg."):
		return asm.Directive{Kind: asm.DirDebug, Name: "dbg", Args: t}, true, nil
	case line != t:
		// Everything else indented is an instruction.
		return asm.Directive{}, false, nil
	case strings.HasPrefix(t, "!"):
		return asm.Directive{Kind: asm.DirDebug, Name: "metadata", Args: t}, true, nil
	case strings.HasPrefix(t, "source_filename"), strings.HasPrefix(t, "target "):
		return asm.Directive{Kind: asm.DirSection, Name: firstWord(t), Args: t}, true, nil
	case strings.HasPrefix(t, "attributes #"):
		return asm.Directive{Kind: asm.DirType, Name: "attributes", Args: t}, true, nil
	case strings.HasPrefix(t, "declare "):
		return asm.Directive{Kind: asm.DirGeneric, Name: "declare", Args: t}, true, nil
	}
	if m := llvmGlobalRe.FindStringSubmatch(t); m != nil {
		return asm.Directive{Kind: asm.DirData, Name: "global", Args: t, Symbol: strings.Trim(m[1], `"`)}, true, nil
	}
	if strings.HasPrefix(t, "%") || strings.HasPrefix(t, "$") || strings.HasPrefix(t, "module asm") {
		return asm.Directive{Kind: asm.DirGeneric, Name: firstWord(t), Args: t}, true, nil
	}
	return asm.Directive{}, false, nil
}

func (LLVM) IsFunctionOpen(stmts []asm.Statement, i int) (string, bool) {
	s := &stmts[i]
	if s.Kind == asm.KindLabel && s.Label.Kind == asm.LabelGlobal {
		return s.Label.Name, true
	}
	return "", false
}

// absorbs attaches the "; Function Attrs:" and name comments LLVM prints
// above a definition.
func (LLVM) absorbs(s *asm.Statement, _ string) bool {
	return s.Kind == asm.KindComment
}

func (LLVM) closes(s *asm.Statement, _ string) (bool, bool) {
	return s.Text == "}", true
}

func (LLVM) references(text string) []string {
	var out []string
	for _, re := range []*regexp.Regexp{llvmLabelRe, llvmPhiRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = appendUnique(out, strings.Trim(m[1], `"`))
		}
	}
	return out
}

func firstWord(s string) string {
	w, _ := splitInstruction(s)
	return w
}

func appendUnique(out []string, s string) []string {
	for _, o := range out {
		if o == s {
			return out
		}
	}
	return append(out, s)
}
