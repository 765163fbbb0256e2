package asm

import "regexp"

// LabelKind separates externally visible symbols from assembler-local ones.
type LabelKind uint8

const (
	LabelUnknown LabelKind = iota
	LabelGlobal            // mangled symbol: _ZN..., _R..., __ZN...
	LabelLocal             // .L..., LBB..., Lfunc_end...
	LabelTemp              // Ltmp...
	LabelBlock             // IR basic block, part of an explicit CFG
)

func (k LabelKind) String() string {
	switch k {
	case LabelGlobal:
		return "global"
	case LabelLocal:
		return "local"
	case LabelTemp:
		return "temp"
	case LabelBlock:
		return "block"
	}
	return "unknown"
}

// Label is a named position in the statement stream.
type Label struct {
	Name string    `json:"name"`
	Kind LabelKind `json:"kind"`
}

var (
	localLabelRe  = regexp.MustCompile(`(?:[^\w$.]|^)(\.L[a-zA-Z0-9_$.]+|\bLBB[0-9_]+|\bLCPI[0-9_]+|\bLJTI[0-9_]+|\bLfunc_end[0-9]+|\bLexception[0-9]+)`)
	globalLabelRe = regexp.MustCompile(`\b_?(_[a-zA-Z0-9_$.]+)`)
	tempLabelRe   = regexp.MustCompile(`\b(Ltmp[0-9]+)\b`)
)

// KindOf classifies a label name. Local wins over global, global over temp.
func KindOf(name string) LabelKind {
	switch {
	case localLabelRe.MatchString(name):
		return LabelLocal
	case globalLabelRe.MatchString(name):
		return LabelGlobal
	case tempLabelRe.MatchString(name):
		return LabelTemp
	}
	return LabelUnknown
}

// IsPrivate reports whether a label kind is invisible outside its object.
func (k LabelKind) IsPrivate() bool {
	return k == LabelLocal || k == LabelTemp || k == LabelBlock
}

// IsEndOfFunction reports whether name is the marker assemblers place after
// the last instruction of a function (.Lfunc_endN on ELF, Lfunc_endN on
// Mach-O).
func IsEndOfFunction(name string) bool {
	if len(name) > 0 && name[0] == '.' {
		name = name[1:]
	}
	return len(name) > len("Lfunc_end") && name[:len("Lfunc_end")] == "Lfunc_end"
}

// LocalLabels returns the assembler-local label names referenced in text,
// in order of appearance and without duplicates.
func LocalLabels(text string) []string {
	var out []string
	for _, m := range localLabelRe.FindAllStringSubmatch(text, -1) {
		out = appendUnique(out, m[1])
	}
	for _, m := range tempLabelRe.FindAllStringSubmatch(text, -1) {
		out = appendUnique(out, m[1])
	}
	return out
}

func appendUnique(out []string, s string) []string {
	for _, o := range out {
		if o == s {
			return out
		}
	}
	return append(out, s)
}
