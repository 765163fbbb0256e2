// Package asm defines the statement model shared by every artifact dialect:
// labels, instructions, directives, comments and blanks, plus the source
// location stamps and file tables that directives carry.
package asm

import "fmt"

// Kind classifies a single line of an artifact.
type Kind uint8

const (
	KindBlank Kind = iota
	KindLabel
	KindInstruction
	KindDirective
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindLabel:
		return "label"
	case KindInstruction:
		return "instruction"
	case KindDirective:
		return "directive"
	case KindComment:
		return "comment"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Loc is a source location stamp. Two stamps are the same source line when
// File and Line match; Column is informational.
type Loc struct {
	File   uint64 `json:"file"`
	Line   uint64 `json:"line"`
	Column uint64 `json:"column,omitempty"`
}

// SameLine reports whether a and b point at the same source line.
func (l *Loc) SameLine(o *Loc) bool {
	if l == nil || o == nil {
		return l == o
	}
	return l.File == o.File && l.Line == o.Line
}

// ByteRange is the machine-code span of a disassembled instruction.
type ByteRange struct {
	Addr  uint64 `json:"addr"`
	Bytes []byte `json:"bytes"`
}

func (b ByteRange) End() uint64 { return b.Addr + uint64(len(b.Bytes)) }

// Statement is one classified line. Statements are owned by the slice
// produced for their artifact and referenced by index everywhere else.
type Statement struct {
	Line int // 1-based line in the artifact, 0 for synthesized statements
	Text string
	Kind Kind

	Label     *Label     // KindLabel
	Directive *Directive // KindDirective
	Op        string     // KindInstruction mnemonic
	Args      string     // KindInstruction operand text

	// Refs are local label names referenced by an instruction or a data
	// directive.
	Refs  []string
	Loc   *Loc
	Bytes *ByteRange
}

func (s *Statement) IsLabel() bool       { return s.Kind == KindLabel }
func (s *Statement) IsInstruction() bool { return s.Kind == KindInstruction }
func (s *Statement) IsBlank() bool       { return s.Kind == KindBlank }

// IsMetadata reports whether the statement is a pure metadata directive
// (section, alignment, size, type, visibility, file tables).
func (s *Statement) IsMetadata() bool {
	return s.Kind == KindDirective && s.Directive != nil && s.Directive.Kind.IsMetadata()
}

// IsDebug reports whether the statement is a debug-only directive.
func (s *Statement) IsDebug() bool {
	return s.Kind == KindDirective && s.Directive != nil && s.Directive.Kind == DirDebug
}

// IsData reports whether the statement emits data bytes.
func (s *Statement) IsData() bool {
	return s.Kind == KindDirective && s.Directive != nil && s.Directive.Kind == DirData
}

// Operands returns the text symbols are referenced from: instruction
// operands or directive arguments.
func (s *Statement) Operands() string {
	switch s.Kind {
	case KindInstruction:
		return s.Args
	case KindDirective:
		if s.Directive != nil {
			return s.Directive.Args
		}
	}
	return ""
}
