package disasm

import (
	"encoding/binary"
	"reflect"
	"testing"
)

const (
	a64NOP = 0xD503201F
	a64RET = 0xD65F03C0
	a64BR  = 0xD61F0200 // br x16
)

// a64 lays out ARM64 words from addr and decodes their branches.
func a64(addr uint64, words ...uint32) []Inst {
	insts := make([]Inst, len(words))
	for i, w := range words {
		raw := make([]byte, 4)
		binary.LittleEndian.PutUint32(raw, w)
		a := addr + uint64(4*i)
		insts[i] = Inst{Addr: a, Raw: raw, Size: 4, Branch: DecodeBranch(w, a)}
	}
	return insts
}

// block is the part of a BasicBlock the tests compare.
type block struct {
	start, end int
	succs      []Succ
	term       bool
}

func shape(cfg FuncCFG) []block {
	out := make([]block, len(cfg.Blocks))
	for i, b := range cfg.Blocks {
		out[i] = block{b.Start, b.End, b.Succs, b.IsTerm}
	}
	return out
}

func TestBuildCFG(t *testing.T) {
	beq := uint32(0x54000000 | 4<<5) // b.eq +0x10
	b := uint32(0x14000000 | 2)      // b +0x8

	tests := []struct {
		name  string
		insts []Inst
		want  []block
	}{
		{
			name:  "linear",
			insts: a64(0x1000, a64NOP, a64NOP, a64RET),
			want:  []block{{0, 3, nil, true}},
		},
		{
			// b.eq jumps over the first ret; the nop after it is dead.
			name:  "conditional",
			insts: a64(0x1000, beq, a64NOP, a64RET, a64NOP, a64RET),
			want: []block{
				{0, 1, []Succ{{3, "T"}, {1, "F"}}, false},
				{1, 3, nil, true},
				{3, 4, []Succ{{3, ""}}, false},
				{4, 5, nil, true},
			},
		},
		{
			name:  "unconditional",
			insts: a64(0x2000, b, a64NOP, a64RET),
			want: []block{
				{0, 1, []Succ{{2, ""}}, false},
				{1, 2, []Succ{{2, ""}}, false},
				{2, 3, nil, true},
			},
		},
		{
			name:  "indirect jump",
			insts: a64(0x1000, a64NOP, a64BR),
			want:  []block{{0, 2, nil, true}},
		},
		{
			name:  "jump out of function",
			insts: a64(0x1000, uint32(0x14000000|0x100)),
			want:  []block{{0, 1, nil, true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := BuildCFG(tt.name, tt.insts)
			if got := shape(cfg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("blocks = %+v, want %+v", got, tt.want)
			}
			if !cfg.Blocks[0].IsEntry {
				t.Error("first block is not the entry")
			}
		})
	}
}

func TestBuildCFGEmpty(t *testing.T) {
	if cfg := BuildCFG("empty", nil); len(cfg.Blocks) != 0 {
		t.Errorf("blocks = %d, want 0", len(cfg.Blocks))
	}
}

func TestBuildCFGX86(t *testing.T) {
	insts, err := Disassemble(x86Sample, Options{BaseAddr: 0x1000, Arch: ArchX86_64, Symbols: mapLookup(map[uint64]string{0x2000: "callee"})})
	if err != nil {
		t.Fatal(err)
	}
	// je and the backwards jmp split the function at 2, 3, 5 and 6; the
	// call does not end a block.
	want := []block{
		{0, 2, []Succ{{1, ""}}, false},
		{2, 3, []Succ{{3, "T"}, {2, "F"}}, false},
		{3, 5, []Succ{{3, ""}}, false},
		{5, 6, nil, true},
		{6, 7, []Succ{{1, ""}}, false},
	}
	cfg := BuildCFG("x86", insts)
	if got := shape(cfg); !reflect.DeepEqual(got, want) {
		t.Errorf("blocks = %+v, want %+v", got, want)
	}
	if n := cfg.Blocks[2].Len(); n != 2 {
		t.Errorf("block 2 len = %d, want 2", n)
	}
}
