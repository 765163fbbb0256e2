// Package demangle decodes mangled symbol names (Rust legacy, Rust v0 and
// Itanium C++) into the display forms used in listings and operands.
package demangle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Mode selects how names are displayed.
type Mode int

const (
	ModeShort   Mode = iota // container and final path segment, no hash
	ModeFull                // full demangled path with hash
	ModeMangled             // the raw symbol
)

// ParseMode maps "short" / "full" / "mangled" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "short":
		return ModeShort, nil
	case "full":
		return ModeFull, nil
	case "mangled", "raw":
		return ModeMangled, nil
	}
	return ModeShort, fmt.Errorf("demangle: unknown name mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeMangled:
		return "mangled"
	}
	return "short"
}

// Scheme is a hint about the mangling scheme used by an artifact.
type Scheme int

const (
	SchemeAuto Scheme = iota
	SchemeLegacy
	SchemeV0
)

// ParseScheme maps "legacy" / "v0" / "" to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "", "auto":
		return SchemeAuto, nil
	case "legacy":
		return SchemeLegacy, nil
	case "v0":
		return SchemeV0, nil
	}
	return SchemeAuto, fmt.Errorf("demangle: unknown mangling scheme %q", s)
}

// Name is a symbol in all of its display forms.
type Name struct {
	Raw       string `json:"raw"`
	Path      string `json:"path"` // demangled, without hash
	Full      string `json:"full"` // demangled, with hash when present
	Demangled bool   `json:"demangled"`
}

// Parse decodes raw. Names that no scheme understands are returned with
// Demangled false and every form equal to raw.
func Parse(raw string, scheme Scheme) Name {
	n := Name{Raw: raw, Path: raw, Full: raw}

	sym := raw
	// Mach-O prepends an underscore to every symbol.
	if strings.HasPrefix(sym, "__Z") || strings.HasPrefix(sym, "__R") {
		sym = sym[1:]
	}

	if scheme != SchemeV0 && strings.HasPrefix(sym, "_ZN") {
		if path, hash, ok := legacy(sym); ok {
			n.Path = path
			n.Full = path
			if hash != "" {
				n.Full = path + "::" + hash
			}
			n.Demangled = true
			return n
		}
	}

	if strings.HasPrefix(sym, "_R") {
		if s, err := demangle.ToString(sym); err == nil {
			n.Path, n.Full, n.Demangled = s, s, true
			return n
		}
	}

	if strings.HasPrefix(sym, "_Z") {
		full, err := demangle.ToString(sym)
		if err != nil {
			return n
		}
		short, err := demangle.ToString(sym, demangle.NoParams)
		if err != nil {
			short = full
		}
		n.Path, n.Full, n.Demangled = short, full, true
	}
	return n
}

// Display returns the name under mode m.
func (n Name) Display(m Mode) string {
	if !n.Demangled {
		return n.Raw
	}
	switch m {
	case ModeFull:
		return n.Full
	case ModeMangled:
		return n.Raw
	}
	return Short(n.Path)
}

// Short keeps the container and the final segment of a demangled path:
// "alloc::raw_vec::RawVec<T>::grow_one" becomes "RawVec<T>::grow_one".
// Separators nested inside <>, () or [] do not split.
func Short(path string) string {
	segs := splitPath(path)
	if len(segs) <= 2 {
		return path
	}
	return segs[len(segs)-2] + "::" + segs[len(segs)-1]
}

func splitPath(path string) []string {
	var segs []string
	depth, start := 0, 0
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '<', '(', '[', '{':
			depth++
		case '>', ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && i+1 < len(path) && path[i+1] == ':' {
				segs = append(segs, path[start:i])
				start = i + 2
				i++
			}
		}
	}
	return append(segs, path[start:])
}

var symbolRe = regexp.MustCompile(`\b_?(_[a-zA-Z0-9_$.]+)`)

// Contents rewrites every mangled symbol found in text to its display form.
// Text is returned unchanged in ModeMangled.
func Contents(text string, m Mode, scheme Scheme) string {
	if m == ModeMangled || !strings.Contains(text, "_") {
		return text
	}
	locs := symbolRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		n := Parse(text[loc[0]:loc[1]], scheme)
		if !n.Demangled {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(n.Display(m))
		last = loc[1]
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}
