package asm

import (
	"fmt"
	"sort"
)

// DirectiveKind groups directives by what the rest of the pipeline does
// with them.
type DirectiveKind uint8

const (
	DirGeneric DirectiveKind = iota
	DirFile                  // .file / .cv_file: declares a file id
	DirLoc                   // .loc / .cv_loc: source location stamp
	DirSection               // .section, .text, .data, ...
	DirGlobal                // .globl, .global
	DirType                  // .type, .def/.scl/.endef, .functype
	DirSize                  // .size
	DirAlign                 // .p2align, .align, .balign
	DirVisibility            // .hidden, .weak, .protected, .private_extern
	DirAlias                 // .set B, A and B = A
	DirData                  // .byte, .long, .quad, .ascii, .zero, ...
	DirDebug                 // .cfi_*, .seh_*, #DEBUG_VALUE, IR debug records
)

var dirKindNames = [...]string{
	DirGeneric:    "generic",
	DirFile:       "file",
	DirLoc:        "loc",
	DirSection:    "section",
	DirGlobal:     "global",
	DirType:       "type",
	DirSize:       "size",
	DirAlign:      "align",
	DirVisibility: "visibility",
	DirAlias:      "alias",
	DirData:       "data",
	DirDebug:      "debug",
}

func (k DirectiveKind) String() string {
	if int(k) < len(dirKindNames) {
		return dirKindNames[k]
	}
	return fmt.Sprintf("directive(%d)", uint8(k))
}

// IsMetadata reports whether directives of this kind only annotate code.
func (k DirectiveKind) IsMetadata() bool {
	switch k {
	case DirFile, DirLoc, DirSection, DirGlobal, DirType, DirSize, DirAlign, DirVisibility:
		return true
	}
	return false
}

// FileDecl is a parsed file-id declaration.
type FileDecl struct {
	ID       uint64 `json:"id"`
	Path     string `json:"path"`
	Checksum string `json:"checksum,omitempty"`
}

// Directive is a parsed assembler or IR directive.
type Directive struct {
	Kind DirectiveKind `json:"kind"`
	Name string        `json:"name"` // directive word without the leading dot
	Args string        `json:"args,omitempty"`

	// Symbol is the symbol a metadata directive describes (.globl foo,
	// .type foo,@function, .size foo, ...) or the new name of an alias.
	Symbol string `json:"symbol,omitempty"`
	// Target is the existing symbol an alias points at.
	Target string `json:"target,omitempty"`

	File *FileDecl `json:"file,omitempty"`
	Loc  *Loc      `json:"loc,omitempty"`
}

// DirectiveTable maps file ids to paths. It is built while classifying and
// read-only afterwards.
type DirectiveTable struct {
	files map[uint64]string
}

func NewDirectiveTable() *DirectiveTable {
	return &DirectiveTable{files: make(map[uint64]string)}
}

// Declare records a file id. The first declaration of an id wins; it
// reports false when id was already bound to a different path.
func (t *DirectiveTable) Declare(id uint64, path string) bool {
	if prev, ok := t.files[id]; ok {
		return prev == path
	}
	t.files[id] = path
	return true
}

// Path resolves a file id.
func (t *DirectiveTable) Path(id uint64) (string, bool) {
	if t == nil {
		return "", false
	}
	p, ok := t.files[id]
	return p, ok
}

// Len returns the number of declared ids.
func (t *DirectiveTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.files)
}

// IDs returns declared ids in ascending order.
func (t *DirectiveTable) IDs() []uint64 {
	ids := make([]uint64, 0, t.Len())
	if t == nil {
		return ids
	}
	for id := range t.files {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
