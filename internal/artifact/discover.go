package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Pattern returns the glob matching artifacts of format f for a crate.
// Cargo replaces dashes in crate names with underscores and appends a
// metadata hash: "<crate>-<hash>.s".
func Pattern(crate string, f Format) string {
	ext := f.Extension()
	if ext == "" {
		return ""
	}
	if crate == "" {
		return "*" + ext
	}
	return strings.ReplaceAll(crate, "-", "_") + "-*" + ext
}

// Discover lists files in dir matching the artifact pattern for crate and
// format, sorted by name.
func Discover(dir, crate string, f Format) ([]string, error) {
	pattern := Pattern(crate, f)
	if pattern == "" {
		return nil, fmt.Errorf("artifact: no file pattern for format %q", f)
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("artifact: compile pattern %q: %w", pattern, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("artifact: read dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !g.Match(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
