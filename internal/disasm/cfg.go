package disasm

// BasicBlock is a run of instructions entered only at its first one.
type BasicBlock struct {
	ID      int
	Start   int // first instruction, index into FuncCFG.Insts
	End     int // one past the last instruction
	Succs   []Succ
	IsEntry bool
	IsTerm  bool // leaves the function: return, indirect jump, or jump elsewhere
}

// Succ is an edge to another block. Cond is "T" for a taken conditional
// branch, "F" for its fallthrough and empty otherwise.
type Succ struct {
	BlockID int
	Cond    string
}

// FuncCFG is the control flow graph of one disassembled function.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  []Inst
}

// Len reports the number of instructions in b.
func (b BasicBlock) Len() int { return b.End - b.Start }

// BuildCFG splits insts into basic blocks. A block starts at the entry, at
// every branch target inside the function and after every branch.
func BuildCFG(name string, insts []Inst) FuncCFG {
	cfg := FuncCFG{Name: name, Insts: insts}
	if len(insts) == 0 {
		return cfg
	}
	at := make(map[uint64]int, len(insts))
	for i := range insts {
		at[insts[i].Addr] = i
	}
	local := func(in Inst) (int, bool) {
		bi := in.Branch
		if bi.IsRet || bi.Indirect || in.External {
			return 0, false
		}
		i, ok := at[bi.Target]
		return i, ok
	}

	starts := make([]bool, len(insts)+1)
	starts[0] = true
	for i := range insts {
		if insts[i].Branch == nil {
			continue
		}
		starts[i+1] = true
		if t, ok := local(insts[i]); ok {
			starts[t] = true
		}
	}

	blockOf := make([]int, len(insts)+1)
	for i := range blockOf {
		blockOf[i] = -1
	}
	for i := 0; i < len(insts); i++ {
		if !starts[i] {
			continue
		}
		end := i + 1
		for end < len(insts) && !starts[end] {
			end++
		}
		blockOf[i] = len(cfg.Blocks)
		cfg.Blocks = append(cfg.Blocks, BasicBlock{ID: len(cfg.Blocks), Start: i, End: end, IsEntry: i == 0})
	}

	for i := range cfg.Blocks {
		b := &cfg.Blocks[i]
		next := blockOf[b.End]
		last := insts[b.End-1]
		bi := last.Branch
		switch {
		case bi == nil:
			if next >= 0 {
				b.Succs = append(b.Succs, Succ{BlockID: next})
			}
		case bi.IsRet, bi.Indirect && !bi.Cond:
			b.IsTerm = true
		case bi.Cond:
			if t, ok := local(last); ok {
				b.Succs = append(b.Succs, Succ{BlockID: blockOf[t], Cond: "T"})
			}
			if next >= 0 {
				b.Succs = append(b.Succs, Succ{BlockID: next, Cond: "F"})
			}
		default:
			if t, ok := local(last); ok {
				b.Succs = append(b.Succs, Succ{BlockID: blockOf[t]})
			} else {
				b.IsTerm = true
			}
		}
	}
	return cfg
}
