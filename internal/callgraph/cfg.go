package callgraph

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"

	"asmscope/internal/disasm"
)

// BuildCFG constructs a lattice.CFGGraph from disassembled functions.
// Functions without instructions are skipped.
func BuildCFG(funcs []FuncInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		if len(f.Insts) == 0 {
			continue
		}
		lcfg, _ := BuildFuncCFG(f.Name, f.Insts, f.CallEdges)
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// BuildFuncCFG builds a single-function lattice.FuncCFG from instructions and call edges.
// Returns the FuncCFG and the number of basic blocks.
func BuildFuncCFG(name string, insts []disasm.Inst, edges []disasm.CallEdge) (*lattice.FuncCFG, int) {
	dcfg := disasm.BuildCFG(name, insts)
	return convertFuncCFG(&dcfg, edges), len(dcfg.Blocks)
}

// convertFuncCFG maps dcfg onto lattice types and attaches each call edge
// to the block holding its call instruction.
func convertFuncCFG(dcfg *disasm.FuncCFG, edges []disasm.CallEdge) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: dcfg.Name, Blocks: make([]*lattice.BasicBlock, len(dcfg.Blocks))}
	owner := make(map[uint64]int, len(dcfg.Insts)) // instruction address -> index
	for i := range dcfg.Insts {
		owner[dcfg.Insts[i].Addr] = i
	}
	blockAt := make([]int, len(dcfg.Insts))
	for i, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{ID: db.ID, Start: db.Start, End: db.End, Term: db.IsTerm}
		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: ds.BlockID, Cond: ds.Cond})
		}
		for idx := db.Start; idx < db.End && idx < len(blockAt); idx++ {
			blockAt[idx] = i
		}
		lcfg.Blocks[i] = lb
	}

	sorted := make([]disasm.CallEdge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FromPC < sorted[j].FromPC })
	for _, e := range sorted {
		idx, ok := owner[e.FromPC]
		if !ok || len(lcfg.Blocks) == 0 {
			continue
		}
		lb := lcfg.Blocks[blockAt[idx]]
		lb.Calls = append(lb.Calls, lattice.CallSite{Offset: idx, Callee: calleeLabel(e)})
	}
	return lcfg
}

func calleeLabel(e disasm.CallEdge) string {
	switch {
	case e.TargetName != "":
		return e.TargetName
	case e.Kind == disasm.EdgeIndirect:
		return "<indirect>"
	}
	return fmt.Sprintf("0x%x", e.TargetPC)
}
