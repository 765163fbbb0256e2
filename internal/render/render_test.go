package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asmscope/internal/asm"
	"asmscope/internal/callgraph"
	"asmscope/internal/demangle"
	"asmscope/internal/disasm"
	"asmscope/internal/pipeline"
	"asmscope/internal/segment"
	"asmscope/internal/source"
)

const newSym = "_ZN4demo3new17h0000000000000001E"

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

func instr(text string, loc *asm.Loc) asm.Statement {
	return asm.Statement{Text: "\t" + text, Kind: asm.KindInstruction, Loc: loc}
}

func textView() *pipeline.View {
	stmts := []asm.Statement{
		{Text: "main:", Kind: asm.KindLabel, Label: &asm.Label{Name: "main", Kind: asm.LabelGlobal}},
		instr("push\trax", &asm.Loc{File: 1, Line: 3}),
		instr("call\t"+newSym, &asm.Loc{File: 1, Line: 4}),
		instr("pop\trax", &asm.Loc{File: 1, Line: 4}),
		instr("ret", nil),
		{Text: ".LCPI0_0:", Kind: asm.KindLabel, Label: &asm.Label{Name: ".LCPI0_0", Kind: asm.LabelLocal}},
		{Text: "\t.quad\t42", Kind: asm.KindDirective},
	}
	return &pipeline.View{
		Function:   &segment.Function{Raw: "main", Display: "main", End: 5, BodyEnd: 5},
		Statements: stmts,
		Body:       []int{0, 1, 2, 3, 4},
		Constants:  [][]int{{5, 6}},
	}
}

type fakeSources map[uint64]string

func (f fakeSources) Annotate(b source.Block) (source.Annotation, bool) {
	text, ok := f[b.Line]
	if !b.HasLoc || !ok {
		return source.Annotation{}, false
	}
	return source.Annotation{Path: "src/main.rs", Line: b.Line, Text: text}, true
}

func TestViewDemanglesOperands(t *testing.T) {
	lines := View(textView(), Options{Names: demangle.ModeShort})
	assert.Equal(t, []string{
		"main:",
		"\tpush\trax",
		"\tcall\tdemo::new",
		"\tpop\trax",
		"\tret",
		"",
		".LCPI0_0:",
		"\t.quad\t42",
	}, texts(lines))
	assert.Equal(t, LineSeparator, lines[5].Kind)
	assert.Equal(t, 2, lines[2].Index)

	mangled := View(textView(), Options{Names: demangle.ModeMangled})
	assert.Equal(t, "\tcall\t"+newSym, mangled[2].Text)
}

func TestViewInterleavesSource(t *testing.T) {
	src := fakeSources{3: "fn main() {", 4: "    let p = demo::new();"}
	lines := View(textView(), Options{Sources: src})
	assert.Equal(t, []string{
		"main:",
		"\t// src/main.rs:3",
		"\t// fn main() {",
		"\tpush\trax",
		"\t// src/main.rs:4",
		"\t// let p = demo::new();",
		"\tcall\tdemo::new",
		"\tpop\trax",
		"\tret",
		"",
		".LCPI0_0:",
		"\t.quad\t42",
	}, texts(lines))
	require.NotNil(t, lines[1].Source)
	assert.Equal(t, uint64(3), lines[1].Source.Line)
}

func TestViewAliasHeader(t *testing.T) {
	v := textView()
	v.Function.Aliases = []string{"main_alias", newSym}
	lines := View(v, Options{})
	require.NotEmpty(t, lines)
	assert.Equal(t, LineHeader, lines[0].Kind)
	assert.Equal(t, "// main, main_alias, demo::new", lines[0].Text)
}

func TestViewsSeparated(t *testing.T) {
	lines := Views([]*pipeline.View{textView(), textView()}, Options{})
	one := View(textView(), Options{})
	require.Len(t, lines, 2*len(one)+1)
	assert.Equal(t, LineSeparator, lines[len(one)].Kind)
}

func TestViewDisassembly(t *testing.T) {
	insts := []disasm.Inst{
		{Addr: 0x1000, Raw: []byte{0x85, 0xff}, Size: 2, Mnemonic: "test", Operands: "edi, edi", Text: "test edi, edi"},
		{Addr: 0x1002, Raw: []byte{0xc3}, Size: 1, Mnemonic: "ret", Text: "ret"},
	}
	stmts := disasm.ToStatements("f", insts)
	v := &pipeline.View{Function: &segment.Function{Raw: "f"}, Statements: stmts, Body: []int{0, 1, 2}, Insts: insts}

	assert.Equal(t, []string{
		"f:",
		"    1000:    test edi, edi",
		"    1002:    ret",
	}, texts(View(v, Options{})))

	lines := View(v, Options{Bytes: true})
	assert.Equal(t, []string{
		"f:",
		"    1000:    85 ff  test edi, edi",
		"    1002:    c3     ret",
	}, texts(lines))
	assert.Equal(t, uint64(0x1002), lines[2].Addr)
	assert.Equal(t, "c3", lines[2].Bytes)
}

func TestEverythingAndWrite(t *testing.T) {
	v := textView()
	lines := Everything(v.Statements, []int{0, separator, 4}, Options{})
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, lines))
	assert.Equal(t, "main:\n\n\tret\n", buf.String())
}

const separator = -1 // simplify.Separator

func TestSplitOwner(t *testing.T) {
	tests := []struct {
		in, owner, leaf string
	}{
		{"demo::Point::new", "demo::Point", "new"},
		{"main", "", "main"},
		{"<demo::Point as core::fmt::Debug>::fmt", "<demo::Point as core::fmt::Debug>", "fmt"},
		{"alloc::vec::Vec<T,A>::push", "alloc::vec::Vec<T,A>", "push"},
		{"Vec<a::b>", "", "Vec<a::b>"},
	}
	for _, tt := range tests {
		owner, leaf := splitOwner(tt.in)
		assert.Equal(t, tt.owner, owner, tt.in)
		assert.Equal(t, tt.leaf, leaf, tt.in)
	}
}

func TestCFGDOT(t *testing.T) {
	insts := []disasm.Inst{
		{Addr: 0x1000, Text: "test edi, edi"},
		{Addr: 0x1002, Text: "je label_0", Branch: &disasm.BranchInfo{Target: 0x1005, Cond: true}, Target: 0x1005, HasTarget: true},
		{Addr: 0x1004, Text: "nop"},
		{Addr: 0x1005, Text: "ret", Label: "label_0", Branch: &disasm.BranchInfo{IsRet: true}},
	}
	for i := range insts {
		if i+1 < len(insts) {
			insts[i].Size = int(insts[i+1].Addr - insts[i].Addr)
		} else {
			insts[i].Size = 1
		}
	}
	cfg := disasm.BuildCFG("f", insts)
	dot := CFGDOT(cfg, "", NASA)
	assert.True(t, strings.HasPrefix(dot, "digraph cfg {"))
	assert.Contains(t, dot, "label_0:")
	assert.Contains(t, dot, ">T</font>")
	assert.Contains(t, dot, ">F</font>")
	assert.Contains(t, dot, NASA.ExitFill)

	assert.Empty(t, CFGDOT(disasm.FuncCFG{Name: "empty"}, "", NASA))
}

func TestCallgraphDOT(t *testing.T) {
	funcs := []callgraph.FuncInfo{
		{Name: "demo::main", CallEdges: []disasm.CallEdge{
			{Kind: disasm.EdgeCall, TargetName: "demo::new"},
			{Kind: disasm.EdgeCall, TargetName: "demo::new"},
			{Kind: disasm.EdgeCall, TargetName: "demo::new"},
			{Kind: disasm.EdgeIndirect},
			{Kind: disasm.EdgeTail, TargetName: "memcpy"},
		}},
		{Name: "demo::new", Callees: []string{"alloc::alloc"}},
	}
	dot := CallgraphDOT(funcs, "demo", NASA, 0)
	assert.Contains(t, dot, "subgraph cluster_"+dotID("demo"))
	assert.Contains(t, dot, `label="new"`)
	assert.Contains(t, dot, "3x")
	assert.Contains(t, dot, dotID("<indirect>"))
	assert.Contains(t, dot, `style="dashed"`)
	assert.Contains(t, dot, dotID("memcpy")+` [label="memcpy", shape=plaintext`)
	assert.Contains(t, dot, dotID("demo::new")+" -> "+dotID("alloc::alloc"))

	limited := CallgraphDOT(funcs, "", NASA, 1)
	assert.NotContains(t, limited, dotID("alloc::alloc"))
}
