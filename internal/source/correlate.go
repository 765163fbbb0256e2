package source

import (
	"errors"
	"log/slog"

	"asmscope/internal/asm"
)

// Block is a run of consecutive view positions [Start, End) whose
// statements share one source line. Blocks without a stamp have HasLoc
// false.
type Block struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	HasLoc bool   `json:"has_loc"`
	FileID uint64 `json:"file_id,omitempty"`
	Line   uint64 `json:"line,omitempty"`
}

// Correlate groups the statements named by view (indices into stmts, -1 for
// separators) into blocks of equal (file, line) stamps. Separators join the
// block they sit in.
func Correlate(stmts []asm.Statement, view []int) []Block {
	var (
		blocks []Block
		cur    *Block
		loc    *asm.Loc
	)
	for pos, idx := range view {
		if idx < 0 {
			if cur != nil {
				cur.End = pos + 1
			}
			continue
		}
		l := stmts[idx].Loc
		if cur != nil && l.SameLine(loc) {
			cur.End = pos + 1
			continue
		}
		b := Block{Start: pos, End: pos + 1}
		if l != nil {
			b.HasLoc, b.FileID, b.Line = true, l.File, l.Line
		}
		blocks = append(blocks, b)
		cur = &blocks[len(blocks)-1]
		loc = l
	}
	return blocks
}

var sharedCache = NewCache()

// Annotation is the source text shown above a block.
type Annotation struct {
	Path       string     `json:"path"`
	Line       uint64     `json:"line"`
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
}

// Correlator turns stamps into annotations. Files that are filtered out,
// cannot be located or cannot be read produce no annotation.
type Correlator struct {
	Table   *asm.DirectiveTable
	Locator Locator
	Filter  Filter
	Cache   *Cache
	Logger  *slog.Logger
}

func (c *Correlator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Annotate resolves the source line for a block.
func (c *Correlator) Annotate(b Block) (Annotation, bool) {
	if !b.HasLoc {
		return Annotation{}, false
	}
	recorded, ok := c.Table.Path(b.FileID)
	if !ok {
		return Annotation{}, false
	}
	resolved, prov, found := c.Locator.Locate(recorded)
	if !c.Filter.Allows(prov) {
		return Annotation{}, false
	}
	if !found {
		c.logger().Debug("source file not found", "path", recorded, "provenance", prov)
		return Annotation{}, false
	}
	cache := c.Cache
	if cache == nil {
		cache = sharedCache
	}
	f, err := cache.Get(resolved)
	if err != nil {
		var missing *MissingSourceFileError
		if errors.As(err, &missing) {
			c.logger().Debug("source file unreadable", "path", missing.Path, "err", missing.Err)
		}
		return Annotation{}, false
	}
	text, ok := f.Line(b.Line)
	if !ok {
		c.logger().Debug("source line out of range", "path", resolved, "line", b.Line, "lines", f.Len())
		return Annotation{}, false
	}
	return Annotation{Path: recorded, Line: b.Line, Text: text, Provenance: prov}, true
}
