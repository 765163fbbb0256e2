package source

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// File is the line-split text of one source file.
type File struct {
	Path  string
	lines []string
}

// Line returns 1-based line n.
func (f *File) Line(n uint64) (string, bool) {
	if n == 0 || n > uint64(len(f.lines)) {
		return "", false
	}
	return f.lines[n-1], true
}

// Len is the number of lines.
func (f *File) Len() int { return len(f.lines) }

// Cache holds source files for the lifetime of a process. Concurrent
// requests for the same path share one read; the first successful read is
// kept and never re-fetched. Failed reads are not cached.
type Cache struct {
	files sync.Map // path -> *File
	group singleflight.Group
}

func NewCache() *Cache { return &Cache{} }

// Get returns the file at path, reading it on first use.
func (c *Cache) Get(path string) (*File, error) {
	if f, ok := c.files.Load(path); ok {
		return f.(*File), nil
	}
	v, err, _ := c.group.Do(path, func() (any, error) {
		if f, ok := c.files.Load(path); ok {
			return f, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &MissingSourceFileError{Path: path, Err: err}
		}
		f := &File{Path: path, lines: splitLines(string(data))}
		actual, _ := c.files.LoadOrStore(path, f)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*File), nil
}

func splitLines(s string) []string {
	s = strings.ToValidUTF8(s, "�")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// MissingSourceFileError is a source file that could not be read. The
// correlator recovers from it by rendering statements without source.
type MissingSourceFileError struct {
	Path string
	Err  error
}

func (e *MissingSourceFileError) Error() string {
	return fmt.Sprintf("source: cannot read %s: %v", e.Path, e.Err)
}

func (e *MissingSourceFileError) Unwrap() error { return e.Err }
