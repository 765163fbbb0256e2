package disasm

import "golang.org/x/arch/x86/x86asm"

// BranchInfo describes a decoded branch instruction.
type BranchInfo struct {
	Target   uint64 // absolute target address (0 if RET or indirect)
	Cond     bool   // true if conditional (has fallthrough)
	IsRet    bool
	Indirect bool // target held in a register or memory
}

// DecodeBranch decodes an ARM64 branch from its raw encoding at pc.
// Returns nil if the instruction is not a branch/ret. BL/BLR are calls and
// return nil.
func DecodeBranch(raw uint32, pc uint64) *BranchInfo {
	// RET (0xD65F03C0 exactly, or RET Xn = 0xD65F0000 | Rn<<5)
	if raw&0xFFFFFC1F == 0xD65F0000 {
		return &BranchInfo{IsRet: true}
	}

	// BR Xn
	if raw&0xFFFFFC1F == 0xD61F0000 {
		return &BranchInfo{Indirect: true}
	}

	// B (unconditional): 000101 imm26
	if raw&0xFC000000 == 0x14000000 {
		imm26 := raw & 0x03FFFFFF
		offset := signExtend(imm26, 26) * 4
		return &BranchInfo{Target: uint64(int64(pc) + int64(offset))}
	}

	// B.cond: 01010100 imm19 0 cond
	if raw&0xFF000010 == 0x54000000 {
		imm19 := (raw >> 5) & 0x7FFFF
		offset := signExtend(imm19, 19) * 4
		return &BranchInfo{Target: uint64(int64(pc) + int64(offset)), Cond: true}
	}

	// CBZ: 0 sf 110100 imm19 Rt
	if raw&0x7F000000 == 0x34000000 {
		imm19 := (raw >> 5) & 0x7FFFF
		offset := signExtend(imm19, 19) * 4
		return &BranchInfo{Target: uint64(int64(pc) + int64(offset)), Cond: true}
	}

	// CBNZ: 0 sf 110101 imm19 Rt
	if raw&0x7F000000 == 0x35000000 {
		imm19 := (raw >> 5) & 0x7FFFF
		offset := signExtend(imm19, 19) * 4
		return &BranchInfo{Target: uint64(int64(pc) + int64(offset)), Cond: true}
	}

	// TBZ: 0 b5 110110 b40 imm14 Rt
	if raw&0x7F000000 == 0x36000000 {
		imm14 := (raw >> 5) & 0x3FFF
		offset := signExtend(imm14, 14) * 4
		return &BranchInfo{Target: uint64(int64(pc) + int64(offset)), Cond: true}
	}

	// TBNZ: 0 b5 110111 b40 imm14 Rt
	if raw&0x7F000000 == 0x37000000 {
		imm14 := (raw >> 5) & 0x3FFF
		offset := signExtend(imm14, 14) * 4
		return &BranchInfo{Target: uint64(int64(pc) + int64(offset)), Cond: true}
	}

	return nil
}

// signExtend sign-extends a value from the given bit width to int32.
func signExtend(val uint32, bits int) int32 {
	sign := uint32(1) << (bits - 1)
	mask := sign - 1
	if val&sign != 0 {
		return int32(val | ^mask) // negative
	}
	return int32(val & mask)
}

// DecodeCall decodes ARM64 BL (direct, target known) and BLR (indirect).
func DecodeCall(raw uint32, pc uint64) (target uint64, call, direct bool) {
	// BL: 100101 imm26
	if raw&0xFC000000 == 0x94000000 {
		offset := signExtend(raw&0x03FFFFFF, 26) * 4
		return uint64(int64(pc) + int64(offset)), true, true
	}
	// BLR Xn
	if raw&0xFFFFFC1F == 0xD63F0000 {
		return 0, true, false
	}
	return 0, false, false
}

// IsBranchTerminator returns true if the ARM64 instruction terminates a
// basic block. Calls return to the next instruction and do not.
func IsBranchTerminator(raw uint32) bool {
	return DecodeBranch(raw, 0) != nil
}

var x86Cond = map[x86asm.Op]bool{
	x86asm.JA: true, x86asm.JAE: true, x86asm.JB: true, x86asm.JBE: true,
	x86asm.JE: true, x86asm.JNE: true, x86asm.JG: true, x86asm.JGE: true,
	x86asm.JL: true, x86asm.JLE: true, x86asm.JO: true, x86asm.JNO: true,
	x86asm.JP: true, x86asm.JNP: true, x86asm.JS: true, x86asm.JNS: true,
	x86asm.JCXZ: true, x86asm.JECXZ: true, x86asm.JRCXZ: true,
	x86asm.LOOP: true, x86asm.LOOPE: true, x86asm.LOOPNE: true,
}

// classifyX86 fills the control-flow fields of rec. x86asm has distinct
// ops for every conditional jump, so JMP is always unconditional.
func classifyX86(rec *Inst, inst x86asm.Inst) {
	next := rec.Addr + uint64(inst.Len)
	switch {
	case inst.Op == x86asm.RET || inst.Op == x86asm.LRET:
		rec.Branch = &BranchInfo{IsRet: true}
	case inst.Op == x86asm.JMP || inst.Op == x86asm.LJMP:
		target, ok, mem := x86Target(inst, next)
		rec.Branch = &BranchInfo{Target: target, Indirect: !ok || mem}
		rec.Target, rec.HasTarget = target, ok
	case x86Cond[inst.Op]:
		target, ok, _ := x86Target(inst, next)
		rec.Branch = &BranchInfo{Target: target, Cond: true, Indirect: !ok}
		rec.Target, rec.HasTarget = target, ok
	case inst.Op == x86asm.CALL || inst.Op == x86asm.LCALL:
		rec.Call = true
		rec.Target, rec.HasTarget, _ = x86Target(inst, next)
	}
}

// x86Target resolves a direct (rel) operand. A RIP-relative memory operand
// resolves to the slot it loads from, which the symbol table may name
// (GOT and import entries).
func x86Target(inst x86asm.Inst, next uint64) (target uint64, ok, mem bool) {
	switch arg := inst.Args[0].(type) {
	case x86asm.Rel:
		return next + uint64(int64(arg)), true, false
	case x86asm.Mem:
		if arg.Base == x86asm.RIP && arg.Index == 0 {
			return next + uint64(arg.Disp), true, true
		}
	}
	return 0, false, false
}
