// Package callgraph follows symbol references between functions: bounded
// context expansion around a target, call graphs and per-function CFGs.
package callgraph

import (
	"asmscope/internal/asm"
	"asmscope/internal/search"
	"asmscope/internal/segment"
)

// Callees returns the functions referenced from f's instruction operands,
// in order of first reference. f itself and unknown names are skipped.
func Callees(ix *search.Index, f *segment.Function) []*segment.Function {
	stmts := ix.Listing().Statements
	seen := map[*segment.Function]bool{f: true}
	var out []*segment.Function
	for i := f.Start; i < f.BodyEnd; i++ {
		s := &stmts[i]
		if !s.IsInstruction() {
			continue
		}
		for _, name := range asm.GlobalReferences(s.Args) {
			g, ok := ix.Lookup(name)
			if !ok || seen[g] {
				continue
			}
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// Expand returns target followed by the functions it reaches in at most
// depth hops, breadth first, each listed once in first-discovered order.
// Aliases of one body count as the same function.
func Expand(ix *search.Index, target *segment.Function, depth int) []*segment.Function {
	return ExpandFunc(target, depth, func(f *segment.Function) []*segment.Function {
		return Callees(ix, f)
	})
}

// ExpandFunc is Expand over any callee relation, such as call edges
// recovered from disassembly.
func ExpandFunc(target *segment.Function, depth int, callees func(*segment.Function) []*segment.Function) []*segment.Function {
	out := []*segment.Function{target}
	visited := map[string]bool{target.Raw: true}
	frontier := []*segment.Function{target}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []*segment.Function
		for _, f := range frontier {
			for _, g := range callees(f) {
				if visited[g.Raw] {
					continue
				}
				visited[g.Raw] = true
				out = append(out, g)
				next = append(next, g)
			}
		}
		frontier = next
	}
	return out
}
