// Package simplify filters statement views for display. Views are slices of
// statement indices; passes drop entries but never reorder them.
package simplify

import (
	"fmt"

	"asmscope/internal/asm"
	"asmscope/internal/segment"
)

// Separator is a view entry that renders as an empty line.
const Separator = -1

// LabelMode selects what happens to local labels nothing refers to.
type LabelMode int

const (
	LabelsStrip  LabelMode = iota // drop them
	LabelsKeep                    // keep them
	LabelsBlanks                  // replace them with an empty line
)

// ParseLabelMode maps "strip" / "keep" / "blanks" to a LabelMode.
func ParseLabelMode(s string) (LabelMode, error) {
	switch s {
	case "", "strip":
		return LabelsStrip, nil
	case "keep":
		return LabelsKeep, nil
	case "blanks", "blank":
		return LabelsBlanks, nil
	}
	return LabelsStrip, fmt.Errorf("simplify: unknown label mode %q", s)
}

func (m LabelMode) String() string {
	switch m {
	case LabelsKeep:
		return "keep"
	case LabelsBlanks:
		return "blanks"
	}
	return "strip"
}

// Options controls Apply.
type Options struct {
	Verbose   bool // keep metadata directives and one of each debug run
	Labels    LabelMode
	Constants bool // append the constant blocks the body refers to
}

// Range is the identity view of stmts[start:end].
func Range(start, end int) []int {
	if end < start {
		end = start
	}
	v := make([]int, end-start)
	for i := range v {
		v[i] = start + i
	}
	return v
}

// StripNoise drops blank statements and, unless verbose, metadata
// directives. Runs of debug-only directives collapse to their first
// statement when verbose and vanish otherwise.
func StripNoise(stmts []asm.Statement, view []int, verbose bool) []int {
	out := make([]int, 0, len(view))
	inDebugRun := false
	for _, idx := range view {
		if idx < 0 {
			out = append(out, idx)
			inDebugRun = false
			continue
		}
		s := &stmts[idx]
		switch {
		case s.Kind == asm.KindBlank:
			continue
		case s.IsDebug():
			if verbose && !inDebugRun {
				out = append(out, idx)
			}
			inDebugRun = true
			continue
		case s.IsMetadata() && !verbose:
			continue
		}
		inDebugRun = false
		out = append(out, idx)
	}
	return out
}

// UsedLabels collects local label names referenced by the statements of
// the given views.
func UsedLabels(stmts []asm.Statement, views ...[]int) map[string]bool {
	used := make(map[string]bool)
	for _, view := range views {
		for _, idx := range view {
			if idx < 0 {
				continue
			}
			for _, r := range stmts[idx].Refs {
				used[r] = true
			}
		}
	}
	return used
}

// PruneLabels removes local label definitions that no statement in the view
// refers to. The label at entry is always kept.
func PruneLabels(stmts []asm.Statement, view []int, entry int, mode LabelMode) []int {
	return pruneLabels(stmts, view, entry, mode, UsedLabels(stmts, view))
}

func pruneLabels(stmts []asm.Statement, view []int, entry int, mode LabelMode, used map[string]bool) []int {
	if mode == LabelsKeep {
		return view
	}
	out := make([]int, 0, len(view))
	for _, idx := range view {
		if idx >= 0 && idx != entry {
			s := &stmts[idx]
			if s.Kind == asm.KindLabel && (s.Label.Kind == asm.LabelLocal || s.Label.Kind == asm.LabelTemp) && !used[s.Label.Name] {
				if mode == LabelsBlanks && s.Label.Kind != asm.LabelTemp && len(out) > 0 && out[len(out)-1] != Separator {
					out = append(out, Separator)
				}
				continue
			}
		}
		out = append(out, idx)
	}
	return out
}

// Result is the filtered view of one function.
type Result struct {
	Body      []int
	Constants [][]int
}

// Apply runs every pass over fn: noise stripping, constant collection and
// label pruning. Labels referenced only from included constants survive.
func Apply(stmts []asm.Statement, fn *segment.Function, consts ConstantTable, opts Options) Result {
	body := StripNoise(stmts, Range(fn.Start, fn.BodyEnd), opts.Verbose)

	var extra [][]int
	if opts.Constants {
		for _, r := range ReferencedConstants(stmts, body, consts, Span{fn.Start, fn.BodyEnd}) {
			extra = append(extra, StripNoise(stmts, Range(r.Start, r.End), opts.Verbose))
		}
	}
	used := UsedLabels(stmts, append([][]int{body}, extra...)...)
	return Result{
		Body:      pruneLabels(stmts, body, fn.Open, opts.Labels, used),
		Constants: extra,
	}
}

// ApplyAll filters a whole artifact; every global label is kept.
func ApplyAll(stmts []asm.Statement, opts Options) []int {
	view := StripNoise(stmts, Range(0, len(stmts)), opts.Verbose)
	return PruneLabels(stmts, view, -1, opts.Labels)
}
