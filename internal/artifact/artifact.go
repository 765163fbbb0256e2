// Package artifact models compiler output files (assembly, IR, MIR, wasm text
// or compiled objects) and the build target that produced them.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is the kind of compiler output an artifact holds.
type Format string

const (
	FormatIntel     Format = "asm-intel"
	FormatATT       Format = "asm-att"
	FormatLLVMInput Format = "llvm-input" // IR before optimization passes
	FormatLLVM      Format = "llvm-ir"    // IR after optimization passes
	FormatMIR       Format = "mir"
	FormatWasm      Format = "wasm"
	FormatBinary    Format = "binary"
	FormatUnknown   Format = ""
)

var ErrUnknownFormat = errors.New("artifact: unknown format")

// Formats lists every supported format in display order.
var Formats = []Format{FormatIntel, FormatATT, FormatLLVMInput, FormatLLVM, FormatMIR, FormatWasm, FormatBinary}

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asm-intel", "intel", "asm":
		return FormatIntel, nil
	case "asm-att", "att":
		return FormatATT, nil
	case "llvm-input", "llvm-input-ir":
		return FormatLLVMInput, nil
	case "llvm-ir", "llvm", "ll":
		return FormatLLVM, nil
	case "mir":
		return FormatMIR, nil
	case "wasm", "wat":
		return FormatWasm, nil
	case "binary", "bin", "disasm", "obj":
		return FormatBinary, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// IsText reports whether artifacts of this format are parsed as text.
func (f Format) IsText() bool {
	return f != FormatBinary && f != FormatUnknown
}

// Extension is the file extension the compiler uses for this format.
func (f Format) Extension() string {
	switch f {
	case FormatIntel, FormatATT, FormatWasm:
		return ".s"
	case FormatLLVM, FormatLLVMInput:
		return ".ll"
	case FormatMIR:
		return ".mir"
	}
	return ""
}

// DetectFormat guesses a format from a file name. Assembly defaults to Intel
// syntax; the syntax only changes operand text.
func DetectFormat(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s", ".asm":
		return FormatIntel, true
	case ".ll":
		return FormatLLVM, true
	case ".mir":
		return FormatMIR, true
	case ".wat":
		return FormatWasm, true
	case ".o", ".obj", ".a", ".rlib", ".lib", ".so", ".dylib", ".dll", ".exe", "":
		return FormatBinary, true
	}
	return FormatUnknown, false
}

// Target identifies the build that produced an artifact.
type Target struct {
	Package string `json:"package,omitempty" yaml:"package,omitempty"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"` // lib, bin, example, test, bench
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
	Arch    string `json:"arch,omitempty" yaml:"arch,omitempty"`
}

func (t Target) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{t.Package, t.Kind, t.Profile, t.Arch} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// Artifact is one loaded compiler output. It is immutable once loaded.
type Artifact struct {
	Path     string
	Format   Format
	Target   Target
	Mangling string // scheme hint: "legacy", "v0" or "" for auto
	content  string
	lines    []string
}

// New wraps already-loaded content.
func New(path string, format Format, content string) *Artifact {
	return &Artifact{Path: path, Format: format, content: toValidText(content)}
}

// Load reads a text artifact from disk. Invalid UTF-8 is replaced rather
// than rejected. Binary artifacts are opened by the objfile package instead.
func Load(path string, format Format, target Target) (*Artifact, error) {
	if !format.IsText() {
		return nil, fmt.Errorf("artifact: %s: format %q is not text", path, format)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", path, err)
	}
	a := New(path, format, string(data))
	a.Target = target
	return a, nil
}

// Content returns the raw text.
func (a *Artifact) Content() string { return a.content }

// Name is the base file name, used to scope diagnostics.
func (a *Artifact) Name() string {
	if a.Path == "" {
		return "<memory>"
	}
	return filepath.Base(a.Path)
}

// Lines splits the content into lines without terminators. A trailing
// newline does not produce an empty final line.
func (a *Artifact) Lines() []string {
	if a.lines != nil {
		return a.lines
	}
	if a.content == "" {
		a.lines = []string{}
		return a.lines
	}
	lines := strings.Split(strings.TrimSuffix(a.content, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	a.lines = lines
	return lines
}

func toValidText(s string) string {
	return strings.ToValidUTF8(s, "�")
}
