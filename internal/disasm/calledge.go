package disasm

// Call edge kinds.
const (
	EdgeCall     = "call"     // direct call
	EdgeTail     = "tail"     // unconditional jump leaving the function
	EdgeIndirect = "indirect" // call through a register or unresolved slot
)

// CallEdge represents a call site extracted from disassembly.
type CallEdge struct {
	FromPC     uint64 `json:"from_pc"`
	Kind       string `json:"kind"`
	TargetPC   uint64 `json:"target_pc,omitempty"`
	TargetName string `json:"target_name,omitempty"`
}

// CallEdges lists the call sites of one function's instructions. Jumps to
// another function count as tail calls, as do jumps a relocation names.
// Target names come from the Ref the decoder attached, so the instructions
// must come from Disassemble.
func CallEdges(insts []Inst) []CallEdge {
	if len(insts) == 0 {
		return nil
	}
	start := insts[0].Addr
	last := insts[len(insts)-1]
	end := last.Addr + uint64(last.Size)

	var edges []CallEdge
	for _, inst := range insts {
		switch {
		case inst.Call && inst.External:
			edges = append(edges, CallEdge{FromPC: inst.Addr, Kind: EdgeCall, TargetName: inst.Ref})
		case inst.Call && inst.HasTarget:
			edges = append(edges, CallEdge{FromPC: inst.Addr, Kind: EdgeCall, TargetPC: inst.Target, TargetName: inst.Ref})
		case inst.Call:
			edges = append(edges, CallEdge{FromPC: inst.Addr, Kind: EdgeIndirect})
		case inst.Branch != nil && !inst.Branch.Cond && inst.External:
			edges = append(edges, CallEdge{FromPC: inst.Addr, Kind: EdgeTail, TargetName: inst.Ref})
		case inst.Branch != nil && !inst.Branch.Cond && inst.HasTarget &&
			(inst.Target < start || inst.Target >= end):
			edges = append(edges, CallEdge{FromPC: inst.Addr, Kind: EdgeTail, TargetPC: inst.Target, TargetName: inst.Ref})
		}
	}
	return edges
}
