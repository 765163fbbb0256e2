package source

import (
	"os"
	"path/filepath"
	"strings"
)

// Locator resolves paths recorded in debug info to files on this machine.
type Locator struct {
	Workspace string // project root; relative paths resolve against it
	Sysroot   string // toolchain sysroot holding lib/rustlib/{src,rustc-src}
	Registry  string // cargo home, defaults to ~/.cargo
}

// Locate returns the on-disk path for a recorded path and its provenance.
// ok is false when no readable file was found; the provenance is still
// reported so callers can filter before giving up.
func (l Locator) Locate(recorded string) (resolved string, prov Provenance, ok bool) {
	p := recorded
	// Cross-compiled artifacts mix separators.
	if strings.Contains(p, `\`) && strings.Contains(p, "/") {
		p = strings.ReplaceAll(p, `\`, "/")
	}

	if candidate := l.onDisk(p); candidate != "" {
		return candidate, l.classify(candidate), true
	}

	comps := components(p)
	switch {
	case len(comps) >= 3 && comps[0] == "rustc":
		rest := comps[2:]
		if rest[0] == "compiler" {
			return l.inSysroot(Compiler, "rustc-src", rest)
		}
		return l.inSysroot(Stdlib, "src", rest)

	case len(comps) >= 3 && comps[0] == "private" && comps[1] == "tmp":
		// macOS release toolchains are built under /private/tmp/<build>/<src>/library.
		for i, c := range comps {
			if c == "library" {
				return l.inSysroot(Stdlib, "src", comps[i:])
			}
		}
	}

	for i := 0; i+1 < len(comps); i++ {
		if (comps[i] == "cargo" || comps[i] == ".cargo") && comps[i+1] == "registry" {
			cand := filepath.Join(append([]string{l.registry()}, comps[i+1:]...)...)
			if isFile(cand) {
				return cand, External, true
			}
			return "", External, false
		}
	}
	return "", l.classify(p), false
}

func (l Locator) onDisk(p string) string {
	if filepath.IsAbs(p) {
		if isFile(p) {
			return p
		}
		return ""
	}
	if l.Workspace != "" {
		if cand := filepath.Join(l.Workspace, p); isFile(cand) {
			return cand
		}
	}
	if isFile(p) {
		return p
	}
	return ""
}

func (l Locator) inSysroot(prov Provenance, dir string, rest []string) (string, Provenance, bool) {
	if l.Sysroot == "" {
		return "", prov, false
	}
	cand := filepath.Join(append([]string{l.Sysroot, "lib", "rustlib", dir, "rust"}, rest...)...)
	if !isFile(cand) {
		return "", prov, false
	}
	return cand, prov, true
}

func (l Locator) registry() string {
	if l.Registry != "" {
		return l.Registry
	}
	if home := os.Getenv("CARGO_HOME"); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cargo"
	}
	return filepath.Join(home, ".cargo")
}

// classify decides provenance from a path alone.
func (l Locator) classify(p string) Provenance {
	if !filepath.IsAbs(p) {
		return Project
	}
	if l.Workspace != "" {
		if rel, err := filepath.Rel(l.Workspace, p); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return Project
		}
	}
	return External
}

func components(p string) []string {
	var out []string
	for _, c := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if c != "." {
			out = append(out, c)
		}
	}
	return out
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
