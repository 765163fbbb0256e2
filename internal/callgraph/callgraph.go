package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"asmscope/internal/disasm"
	"asmscope/internal/search"
	"asmscope/internal/segment"
)

// FuncInfo holds the data needed to build call graph and CFG for one function.
// Text listings fill Callees; disassembled functions fill Insts and CallEdges.
type FuncInfo struct {
	Name      string
	Callees   []string
	Insts     []disasm.Inst
	CallEdges []disasm.CallEdge
}

// NodeName labels a function in graphs: its display name, with the
// ordinal appended when other instances share it.
func NodeName(f *segment.Function) string {
	if f.Ordinal == 0 {
		return f.Display
	}
	return fmt.Sprintf("%s#%d", f.Display, f.Ordinal)
}

// FromListing collects graph input for funcs of a text listing.
func FromListing(ix *search.Index, funcs []*segment.Function) []FuncInfo {
	out := make([]FuncInfo, 0, len(funcs))
	for _, f := range funcs {
		fi := FuncInfo{Name: NodeName(f)}
		for _, g := range Callees(ix, f) {
			fi.Callees = append(fi.Callees, NodeName(g))
		}
		out = append(out, fi)
	}
	return out
}

// BuildCallGraph constructs a lattice.Graph from functions.
// Each function becomes a node. Each resolved callee becomes an edge;
// indirect call sites without a name are skipped.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, callee := range f.Callees {
			g.Edges = append(g.Edges, lattice.Edge{Caller: f.Name, Callee: callee})
		}
		for _, e := range f.CallEdges {
			if e.TargetName == "" {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: f.Name,
				Callee: e.TargetName,
			})
		}
	}
	g.Dedup()
	return g
}
