// Package render turns filtered views into ordered output lines and
// Graphviz DOT.
package render

import (
	"fmt"
	"io"
	"strings"

	"asmscope/internal/asm"
	"asmscope/internal/demangle"
	"asmscope/internal/disasm"
	"asmscope/internal/pipeline"
	"asmscope/internal/source"
)

// LineKind classifies an output line.
type LineKind string

const (
	LineHeader    LineKind = "header"
	LineStatement LineKind = "statement"
	LineSource    LineKind = "source"
	LineSeparator LineKind = "separator"
)

// Line is one line of rendered output.
type Line struct {
	Kind  LineKind `json:"kind" yaml:"kind"`
	Text  string   `json:"text" yaml:"text"`
	Index int      `json:"index,omitempty" yaml:"index,omitempty"` // statement index, statements only

	Addr  uint64 `json:"addr,omitempty" yaml:"addr,omitempty"`
	Bytes string `json:"bytes,omitempty" yaml:"bytes,omitempty"`

	Source *source.Annotation `json:"source,omitempty" yaml:"source,omitempty"`
}

// Annotator looks up the source line of a correlated block.
type Annotator interface {
	Annotate(b source.Block) (source.Annotation, bool)
}

// Options controls line production.
type Options struct {
	Names  demangle.Mode
	Scheme demangle.Scheme

	// Sources interleaves source lines when set. Nil disables it.
	Sources Annotator

	Bytes bool // instruction encodings, disassembly only
}

// View renders one function: an alias header when several names share the
// body, the body itself, then each referenced constant block after a
// separator.
func View(v *pipeline.View, opts Options) []Line {
	var out []Line
	if f := v.Function; len(f.Aliases) > 0 {
		names := make([]string, 0, len(f.Aliases)+1)
		for _, n := range f.Names() {
			names = append(names, demangle.Parse(n, opts.Scheme).Display(opts.Names))
		}
		out = append(out, Line{Kind: LineHeader, Text: "// " + strings.Join(names, ", ")})
	}
	width := byteWidth(v.Statements, v.Body)
	out = append(out, body(v.Statements, v.Body, width, opts)...)
	for _, c := range v.Constants {
		out = append(out, Line{Kind: LineSeparator})
		out = append(out, body(v.Statements, c, 0, opts)...)
	}
	return out
}

// Views renders several functions, separated by blank lines.
func Views(views []*pipeline.View, opts Options) []Line {
	var out []Line
	for i, v := range views {
		if i > 0 {
			out = append(out, Line{Kind: LineSeparator})
		}
		out = append(out, View(v, opts)...)
	}
	return out
}

// Everything renders a whole-artifact view.
func Everything(stmts []asm.Statement, view []int, opts Options) []Line {
	return body(stmts, view, 0, opts)
}

func body(stmts []asm.Statement, view []int, width int, opts Options) []Line {
	var out []Line
	blocks := []source.Block{{Start: 0, End: len(view)}}
	if opts.Sources != nil {
		blocks = source.Correlate(stmts, view)
	}
	for _, b := range blocks {
		if opts.Sources != nil {
			if ann, ok := opts.Sources.Annotate(b); ok {
				out = append(out, sourceLines(ann)...)
			}
		}
		for pos := b.Start; pos < b.End; pos++ {
			idx := view[pos]
			if idx < 0 {
				out = append(out, Line{Kind: LineSeparator})
				continue
			}
			out = append(out, statement(&stmts[idx], idx, width, opts))
		}
	}
	return out
}

func sourceLines(ann source.Annotation) []Line {
	a := ann
	return []Line{
		{Kind: LineSource, Text: fmt.Sprintf("\t// %s:%d", ann.Path, ann.Line), Source: &a},
		{Kind: LineSource, Text: "\t// " + strings.TrimSpace(ann.Text)},
	}
}

func statement(s *asm.Statement, idx, width int, opts Options) Line {
	l := Line{Kind: LineStatement, Index: idx, Text: demangle.Contents(s.Text, opts.Names, opts.Scheme)}
	if s.Bytes != nil {
		l.Addr = s.Bytes.Addr
		l.Bytes = disasm.HexBytes(s.Bytes.Bytes, len(s.Bytes.Bytes))
		if s.IsInstruction() {
			prefix := fmt.Sprintf("%8x:    ", s.Bytes.Addr)
			if opts.Bytes {
				prefix += disasm.HexBytes(s.Bytes.Bytes, width) + "  "
			}
			l.Text = prefix + strings.TrimLeft(l.Text, "\t")
		}
	}
	return l
}

// byteWidth is the longest encoding in view, for column alignment.
func byteWidth(stmts []asm.Statement, view []int) int {
	w := 0
	for _, idx := range view {
		if idx >= 0 && stmts[idx].Bytes != nil && len(stmts[idx].Bytes.Bytes) > w {
			w = len(stmts[idx].Bytes.Bytes)
		}
	}
	return w
}

// Write prints lines as plain text.
func Write(w io.Writer, lines []Line) error {
	for _, l := range lines {
		if _, err := io.WriteString(w, l.Text+"\n"); err != nil {
			return fmt.Errorf("render: write: %w", err)
		}
	}
	return nil
}
