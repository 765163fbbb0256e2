package dialect

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"asmscope/internal/asm"
)

// GAS is the dialect of GNU-style assembler output, Intel or AT&T syntax.
type GAS struct{}

func (GAS) Name() string { return "gas" }

var (
	gasLabelRe = regexp.MustCompile(`^\s*([A-Za-z_.$][\w.$@]*|"[^"]+"):\s*(?:(?:#|//|;).*)?$`)
	gasAliasRe = regexp.MustCompile(`^([A-Za-z_.$][\w.$]*)\s*=\s*([A-Za-z_.$][\w.$]*)$`)
	identRe    = regexp.MustCompile(`^[A-Za-z_.$][\w.$]*$`)
)

func (GAS) IsLabel(line string) (asm.Label, bool) {
	m := gasLabelRe.FindStringSubmatch(line)
	if m == nil {
		return asm.Label{}, false
	}
	name := strings.Trim(m[1], `"`)
	return asm.Label{Name: name, Kind: asm.KindOf(name)}, true
}

func (GAS) IsComment(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "#") || strings.HasPrefix(t, "//") ||
		strings.HasPrefix(t, ";") || strings.HasPrefix(t, "/*")
}

func (GAS) IsDirective(line string) (asm.Directive, bool, error) {
	return parseGASDirective(strings.TrimSpace(line))
}

func (GAS) IsFunctionOpen(stmts []asm.Statement, i int) (string, bool) {
	return gasFunctionOpen(stmts, i)
}

func (GAS) closes(s *asm.Statement, name string) (bool, bool) {
	switch {
	case s.Kind == asm.KindLabel && asm.IsEndOfFunction(s.Label.Name):
		return true, false
	case s.Kind == asm.KindDirective && s.Directive.Kind == asm.DirSize && s.Directive.Symbol == name:
		return true, false
	}
	return false, false
}

// gasFunctionOpen fires on a label visible outside the object that is not
// the start of a data object.
func gasFunctionOpen(stmts []asm.Statement, i int) (string, bool) {
	s := &stmts[i]
	if s.Kind != asm.KindLabel || s.Label.Kind.IsPrivate() {
		return "", false
	}
	name := s.Label.Name
	if asm.IsEndOfFunction(name) || strings.HasPrefix(name, "GCC_except_table") {
		return "", false
	}
	for j := i + 1; j < len(stmts); j++ {
		switch next := &stmts[j]; {
		case next.Kind == asm.KindBlank, next.Kind == asm.KindComment:
			continue
		case next.IsData():
			return "", false
		}
		break
	}
	return name, true
}

var dataDirectives = map[string]bool{
	"byte": true, "short": true, "hword": true, "word": true, "2byte": true,
	"4byte": true, "8byte": true, "long": true, "int": true, "quad": true,
	"octa": true, "xword": true, "ascii": true, "asciz": true, "string": true,
	"zero": true, "space": true, "skip": true, "fill": true, "float": true,
	"double": true, "single": true, "uleb128": true, "sleb128": true,
	"dc": true, "dc.b": true, "dc.w": true, "dc.l": true, "dc.a": true,
}

var sectionDirectives = map[string]bool{
	"section": true, "text": true, "data": true, "bss": true, "rodata": true,
	"pushsection": true, "popsection": true, "previous": true, "subsection": true,
	"cstring": true, "const": true, "literal4": true, "literal8": true,
	"literal16": true, "zerofill": true,
}

var visibilityDirectives = map[string]bool{
	"hidden": true, "weak": true, "protected": true, "internal": true,
	"private_extern": true, "weak_definition": true, "weak_reference": true,
	"weak_def_can_be_hidden": true, "alt_entry": true, "local": true,
}

func parseGASDirective(t string) (asm.Directive, bool, error) {
	if strings.HasPrefix(t, "#DEBUG_VALUE") || strings.HasPrefix(t, "#DEBUG_LABEL") {
		return asm.Directive{Kind: asm.DirDebug, Name: strings.TrimPrefix(t, "#"), Args: ""}, true, nil
	}
	if m := gasAliasRe.FindStringSubmatch(t); m != nil {
		return asm.Directive{Kind: asm.DirAlias, Name: "=", Args: t, Symbol: m[1], Target: m[2]}, true, nil
	}
	if !strings.HasPrefix(t, ".") || len(t) < 2 {
		return asm.Directive{}, false, nil
	}
	word, args := splitInstruction(t)
	if strings.HasSuffix(word, ":") {
		// .Ltmp0: is a label, not a directive.
		return asm.Directive{}, false, nil
	}
	name := word[1:]
	d := asm.Directive{Kind: asm.DirGeneric, Name: name, Args: args}

	switch {
	case name == "file":
		return parseFile(d)
	case name == "cv_file":
		return parseCVFile(d)
	case name == "loc":
		return parseLoc(d)
	case name == "cv_loc":
		return parseCVLoc(d)
	case sectionDirectives[name]:
		d.Kind = asm.DirSection
	case name == "globl" || name == "global":
		d.Kind = asm.DirGlobal
		d.Symbol = args
	case name == "type":
		d.Kind = asm.DirType
		// COFF ".type 32" carries no symbol.
		if i := strings.IndexByte(args, ','); i >= 0 {
			d.Symbol = strings.TrimSpace(args[:i])
		}
	case name == "def":
		d.Kind = asm.DirType
		d.Symbol = strings.TrimSpace(strings.TrimSuffix(args, ";"))
	case name == "scl" || name == "endef":
		d.Kind = asm.DirType
	case name == "functype":
		d.Kind = asm.DirType
		d.Symbol, _ = splitInstruction(args)
	case name == "size":
		d.Kind = asm.DirSize
		if i := strings.IndexByte(args, ','); i >= 0 {
			d.Symbol = strings.TrimSpace(args[:i])
		}
	case name == "p2align" || name == "align" || name == "balign" || name == "p2alignw" || name == "p2alignl":
		d.Kind = asm.DirAlign
	case visibilityDirectives[name]:
		d.Kind = asm.DirVisibility
		d.Symbol = args
	case name == "set" || name == "equ" || name == "equiv":
		sym, target, ok := strings.Cut(args, ",")
		sym, target = strings.TrimSpace(sym), strings.TrimSpace(target)
		if ok && identRe.MatchString(sym) && identRe.MatchString(target) {
			d.Kind = asm.DirAlias
			d.Symbol = sym
			d.Target = target
		}
	case dataDirectives[name]:
		d.Kind = asm.DirData
	case strings.HasPrefix(name, "cfi_") || strings.HasPrefix(name, "seh_"):
		d.Kind = asm.DirDebug
	}
	return d, true, nil
}

var (
	errMissingPath = errors.New("missing file path")
	errMissingLoc  = errors.New("missing location fields")
)

// parseFile handles `.file N "path"` and `.file N "dir" "name" [md5 0x..]`.
// `.file "name"` without an id stays generic.
func parseFile(d asm.Directive) (asm.Directive, bool, error) {
	toks, err := lexArgs(d.Args)
	if err != nil {
		return d, false, err
	}
	if len(toks) == 0 || toks[0].quoted {
		return d, true, nil
	}
	id, err := parseFileID(toks[0].text)
	if err != nil {
		return d, false, err
	}
	if len(toks) < 2 || !toks[1].quoted {
		return d, false, fmt.Errorf(".file %d: %w", id, errMissingPath)
	}
	path := toks[1].text
	rest := toks[2:]
	if len(rest) > 0 && rest[0].quoted {
		path = joinFilePath(path, rest[0].text)
		rest = rest[1:]
	}
	decl := &asm.FileDecl{ID: id, Path: path}
	if len(rest) >= 2 && rest[0].text == "md5" {
		decl.Checksum = rest[1].text
	}
	d.Kind = asm.DirFile
	d.File = decl
	return d, true, nil
}

// parseCVFile handles `.cv_file N "path" ["checksum" kind]`.
func parseCVFile(d asm.Directive) (asm.Directive, bool, error) {
	toks, err := lexArgs(d.Args)
	if err != nil {
		return d, false, err
	}
	if len(toks) == 0 {
		return d, false, fmt.Errorf(".cv_file: %w", errMissingPath)
	}
	id, err := parseFileID(toks[0].text)
	if err != nil {
		return d, false, err
	}
	if len(toks) < 2 || !toks[1].quoted {
		return d, false, fmt.Errorf(".cv_file %d: %w", id, errMissingPath)
	}
	path := toks[1].text
	// LLVM writes the verbatim-path prefix with one backslash too few.
	if strings.HasPrefix(path, `\?\`) {
		path = `\` + path
	}
	decl := &asm.FileDecl{ID: id, Path: path}
	if len(toks) >= 3 && toks[2].quoted {
		decl.Checksum = toks[2].text
	}
	d.Kind = asm.DirFile
	d.File = decl
	return d, true, nil
}

// parseLoc handles `.loc F L [C] [extra...]`.
func parseLoc(d asm.Directive) (asm.Directive, bool, error) {
	f := strings.Fields(d.Args)
	if len(f) < 2 {
		return d, false, fmt.Errorf(".loc %q: %w", d.Args, errMissingLoc)
	}
	loc, err := parseLocFields(f)
	if err != nil {
		return d, false, err
	}
	d.Kind = asm.DirLoc
	d.Loc = loc
	return d, true, nil
}

// parseCVLoc handles `.cv_loc FN F L [C] [extra...]`.
func parseCVLoc(d asm.Directive) (asm.Directive, bool, error) {
	f := strings.Fields(d.Args)
	if len(f) < 3 {
		return d, false, fmt.Errorf(".cv_loc %q: %w", d.Args, errMissingLoc)
	}
	loc, err := parseLocFields(f[1:])
	if err != nil {
		return d, false, err
	}
	d.Kind = asm.DirLoc
	d.Loc = loc
	return d, true, nil
}

func parseLocFields(f []string) (*asm.Loc, error) {
	file, err := parseFileID(f[0])
	if err != nil {
		return nil, err
	}
	line, err := strconv.ParseUint(f[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid line number %q", f[1])
	}
	loc := &asm.Loc{File: file, Line: line}
	if len(f) > 2 {
		if col, err := strconv.ParseUint(f[2], 10, 64); err == nil {
			loc.Column = col
		}
	}
	return loc, nil
}

func parseFileID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid file id %q", s)
	}
	return id, nil
}

func joinFilePath(dir, name string) string {
	if dir == "" || isAbsPath(name) {
		return name
	}
	if strings.HasSuffix(dir, "/") || strings.HasSuffix(dir, `\`) {
		return dir + name
	}
	sep := "/"
	if strings.Contains(dir, `\`) && !strings.Contains(dir, "/") {
		sep = `\`
	}
	return dir + sep + name
}

func isAbsPath(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/')
}
