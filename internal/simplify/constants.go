package simplify

import (
	"sort"

	"asmscope/internal/asm"
)

// Span is a statement range [Start, End).
type Span struct {
	Start, End int
}

func (s Span) contains(o Span) bool { return o.Start >= s.Start && o.End <= s.End }

// ConstantTable maps the name of each constant block to its statements.
type ConstantTable map[string]Span

// ScanConstants finds constant blocks: a label immediately followed by data
// directives, running for as long as data directives continue, and IR
// globals that define data on a single line.
func ScanConstants(stmts []asm.Statement) ConstantTable {
	table := make(ConstantTable)
	for i := 0; i < len(stmts); i++ {
		s := &stmts[i]
		if s.IsData() && s.Directive.Symbol != "" {
			table[s.Directive.Symbol] = Span{i, i + 1}
			continue
		}
		if s.Kind != asm.KindLabel || s.Label.Kind == asm.LabelBlock {
			continue
		}
		j := i + 1
		for j < len(stmts) && stmts[j].IsData() {
			j++
		}
		if j > i+1 {
			table[s.Label.Name] = Span{i, j}
		}
	}
	return table
}

// ReferencedConstants returns the constant blocks reachable from the
// statements of view, following references inside constants as well.
// Blocks lying inside skip are already visible and are left out.
func ReferencedConstants(stmts []asm.Statement, view []int, table ConstantTable, skip Span) []Span {
	if len(table) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var (
		out  []Span
		work []int
	)
	visit := func(idx int) {
		s := &stmts[idx]
		names := append(asm.GlobalReferences(s.Operands()), s.Refs...)
		for _, name := range names {
			r, ok := table[name]
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			if skip.contains(r) {
				continue
			}
			out = append(out, r)
			for k := r.Start; k < r.End; k++ {
				work = append(work, k)
			}
		}
	}
	for _, idx := range view {
		if idx >= 0 {
			visit(idx)
		}
	}
	for len(work) > 0 {
		idx := work[len(work)-1]
		work = work[:len(work)-1]
		visit(idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
