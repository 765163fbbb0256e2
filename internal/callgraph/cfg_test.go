package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zboralski/lattice/render"

	"asmscope/internal/disasm"
)

// branchy at 0x1000:
//
//	1000 test edi, edi
//	1002 je 0x100a
//	1004 call 0x2000
//	1009 ret
//	100a jmp 0x3000
var branchy = []byte{
	0x85, 0xff,
	0x74, 0x06,
	0xe8, 0xf7, 0x0f, 0x00, 0x00,
	0xc3,
	0xe9, 0xf1, 0x1f, 0x00, 0x00,
}

func disassemble(t *testing.T) []disasm.Inst {
	t.Helper()
	names := map[uint64]string{0x2000: "demo::alloc", 0x3000: "demo::fallback"}
	syms := func(addr uint64) (string, bool) {
		name, ok := names[addr]
		return name, ok
	}
	insts, err := disasm.Disassemble(branchy, disasm.Options{BaseAddr: 0x1000, Arch: disasm.ArchX86_64, Symbols: syms})
	require.NoError(t, err)
	require.Len(t, insts, 5)
	return insts
}

func TestBuildCFG(t *testing.T) {
	insts := disassemble(t)
	edges := disasm.CallEdges(insts)
	require.Len(t, edges, 2)
	assert.Equal(t, disasm.EdgeTail, edges[1].Kind)

	cfg := BuildCFG([]FuncInfo{
		{Name: "demo::run", Insts: insts, CallEdges: edges},
		{Name: "text_only", Callees: []string{"x"}},
	})
	require.Len(t, cfg.Funcs, 1, "functions without instructions are skipped")
	f := cfg.Funcs[0]
	assert.Equal(t, "demo::run", f.Name)
	require.Len(t, f.Blocks, 3)

	entry, call, tail := f.Blocks[0], f.Blocks[1], f.Blocks[2]
	require.Len(t, entry.Succs, 2)
	assert.Equal(t, 2, entry.Succs[0].BlockID)
	assert.Equal(t, "T", entry.Succs[0].Cond)
	assert.Equal(t, "F", entry.Succs[1].Cond)
	assert.Empty(t, entry.Calls)

	require.Len(t, call.Calls, 1)
	assert.Equal(t, "demo::alloc", call.Calls[0].Callee)
	assert.Equal(t, 2, call.Calls[0].Offset)
	assert.True(t, call.Term)

	require.Len(t, tail.Calls, 1)
	assert.Equal(t, "demo::fallback", tail.Calls[0].Callee)
	assert.True(t, tail.Term)

	assert.Contains(t, render.DOTCFG(cfg, "demo::run"), "demo::alloc")
}

func TestBuildFuncCFGBlocks(t *testing.T) {
	_, n := BuildFuncCFG("demo::run", disassemble(t), nil)
	assert.Equal(t, 3, n)
}

func TestBuildCallGraph(t *testing.T) {
	funcs := []FuncInfo{
		{Name: "main", CallEdges: []disasm.CallEdge{
			{FromPC: 0x1004, Kind: disasm.EdgeCall, TargetName: "demo::init"},
			{FromPC: 0x1010, Kind: disasm.EdgeCall, TargetName: "demo::run"},
			{FromPC: 0x1018, Kind: disasm.EdgeCall, TargetName: "demo::run"},
		}},
		{Name: "demo::init", Callees: []string{"demo::log"}},
		{Name: "demo::run", CallEdges: []disasm.CallEdge{
			{FromPC: 0x3004, Kind: disasm.EdgeTail, TargetName: "demo::log"},
			{FromPC: 0x3010, Kind: disasm.EdgeIndirect},
		}},
		{Name: "demo::log"},
	}
	cg := BuildCallGraph(funcs)
	assert.Len(t, cg.Nodes, 4)
	assert.Len(t, cg.Edges, 4, "duplicate calls collapse and unnamed indirect calls are dropped")
	assert.NotEmpty(t, render.DOT(cg, "demo"))
}

func TestCalleeLabel(t *testing.T) {
	assert.Equal(t, "0x40", calleeLabel(disasm.CallEdge{Kind: disasm.EdgeCall, TargetPC: 0x40}))
	assert.Equal(t, "<indirect>", calleeLabel(disasm.CallEdge{Kind: disasm.EdgeIndirect}))
	assert.Equal(t, "f", calleeLabel(disasm.CallEdge{Kind: disasm.EdgeTail, TargetName: "f"}))
}
