// Package disasm decodes the machine code of a single symbol into
// instruction records and listing statements.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Arch names an instruction set the decoder understands.
type Arch string

const (
	ArchX86_64  Arch = "x86_64"
	ArchX86     Arch = "x86"
	ArchAArch64 Arch = "aarch64"
)

// ParseArch accepts the usual spellings of the supported architectures.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "x86_64", "x86-64", "amd64", "x64":
		return ArchX86_64, nil
	case "x86", "i386", "i686", "386":
		return ArchX86, nil
	case "aarch64", "arm64":
		return ArchAArch64, nil
	}
	return "", &UnsupportedArchitectureError{Arch: s}
}

// Syntax selects the operand order and register spelling for x86.
type Syntax string

const (
	SyntaxIntel Syntax = "intel"
	SyntaxATT   Syntax = "att"
)

func ParseSyntax(s string) (Syntax, error) {
	switch strings.ToLower(s) {
	case "", "intel":
		return SyntaxIntel, nil
	case "att", "at&t", "gnu":
		return SyntaxATT, nil
	}
	return "", fmt.Errorf("disasm: unknown syntax %q", s)
}

// UnsupportedArchitectureError is returned for an instruction set with no
// decoder.
type UnsupportedArchitectureError struct {
	Arch string
}

func (e *UnsupportedArchitectureError) Error() string {
	return fmt.Sprintf("disasm: unsupported architecture %q", e.Arch)
}

// Inst is one decoded instruction.
type Inst struct {
	Addr     uint64
	Raw      []byte
	Size     int
	Mnemonic string
	Operands string
	Text     string

	Branch *BranchInfo // set when the instruction ends a basic block
	Call   bool

	// Target is the direct destination of a branch or call.
	Target    uint64
	HasTarget bool

	Label string // synthetic label_N placed on this instruction
	Ref   string // label or symbol Target resolves to

	// External marks a branch or call whose destination a relocation
	// names; Target is then only the unrelocated placeholder.
	External bool
}

// Word returns the first four bytes as a little-endian word. Only
// meaningful for fixed-width encodings.
func (i Inst) Word() uint32 {
	if len(i.Raw) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(i.Raw)
}

// SymbolLookup resolves an address to a symbolic name. Returns ("", false) if unknown.
type SymbolLookup func(addr uint64) (name string, ok bool)

// RelocLookup names the symbol a relocation patches into the bytes
// [addr, addr+size). Returns ("", false) if none does.
type RelocLookup func(addr uint64, size int) (name string, ok bool)

// Options controls disassembly behavior.
type Options struct {
	BaseAddr uint64 // VA of the first byte in data
	Arch     Arch
	Syntax   Syntax
	MaxSteps int          // maximum instructions to decode; 0 = 10M
	Symbols  SymbolLookup // optional symbol resolver
	Relocs   RelocLookup  // optional, for relocatable objects
}

const defaultMaxSteps = 10_000_000

func (o Options) effectiveMax() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return defaultMaxSteps
}

func (o Options) lookup(addr uint64) (string, bool) {
	if o.Symbols == nil {
		return "", false
	}
	return o.Symbols(addr)
}

// Disassemble decodes data as the code of one symbol starting at
// opts.BaseAddr. Direct branch targets inside the range get label_N names
// in address order; other targets are named through opts.Symbols.
// Undecodable bytes become .byte (x86) or .word (arm64) pseudo
// instructions so the listing stays complete.
func Disassemble(data []byte, opts Options) ([]Inst, error) {
	var (
		insts []Inst
		err   error
	)
	switch opts.Arch {
	case ArchX86_64:
		insts = decodeX86(data, 64, opts)
	case ArchX86:
		insts = decodeX86(data, 32, opts)
	case ArchAArch64:
		insts = decodeARM64(data, opts)
	default:
		err = &UnsupportedArchitectureError{Arch: string(opts.Arch)}
	}
	if err != nil {
		return nil, err
	}
	applyRelocs(insts, opts)
	assignLabels(insts, opts.BaseAddr, opts.BaseAddr+uint64(len(data)))
	format(insts, opts)
	return insts, nil
}

var endbr = map[byte]string{0xfa: "endbr64", 0xfb: "endbr32"}

func decodeX86(data []byte, mode int, opts Options) []Inst {
	maxSteps := opts.effectiveMax()
	var result []Inst
	for off := 0; off < len(data) && len(result) < maxSteps; {
		addr := opts.BaseAddr + uint64(off)

		// x86asm does not know the CET landing pads.
		if off+4 <= len(data) && data[off] == 0xf3 && data[off+1] == 0x0f && data[off+2] == 0x1e {
			if name, ok := endbr[data[off+3]]; ok {
				result = append(result, Inst{Addr: addr, Raw: data[off : off+4], Size: 4, Text: name})
				off += 4
				continue
			}
		}

		inst, err := x86asm.Decode(data[off:], mode)
		if err != nil || inst.Len == 0 {
			result = append(result, Inst{
				Addr: addr,
				Raw:  data[off : off+1],
				Size: 1,
				Text: fmt.Sprintf(".byte 0x%02x", data[off]),
			})
			off++
			continue
		}
		rec := Inst{Addr: addr, Raw: data[off : off+inst.Len], Size: inst.Len}
		classifyX86(&rec, inst)
		result = append(result, rec)
		off += inst.Len
	}
	return result
}

func decodeARM64(data []byte, opts Options) []Inst {
	maxSteps := opts.effectiveMax()
	n := len(data) / 4
	if n > maxSteps {
		n = maxSteps
	}

	result := make([]Inst, 0, n)
	for i := 0; i < n; i++ {
		off := i * 4
		rec := Inst{Addr: opts.BaseAddr + uint64(off), Raw: data[off : off+4], Size: 4}
		raw := rec.Word()
		if bi := DecodeBranch(raw, rec.Addr); bi != nil {
			rec.Branch = bi
			if !bi.IsRet && !bi.Indirect {
				rec.Target, rec.HasTarget = bi.Target, true
			}
		} else if target, call, ok := DecodeCall(raw, rec.Addr); call {
			rec.Call = true
			rec.Target, rec.HasTarget = target, ok
		}
		result = append(result, rec)
	}
	return result
}

// applyRelocs names instructions whose bytes a relocation patches. Direct
// branches and calls, and calls through a relocated slot, become External
// so they count as leaving the function.
func applyRelocs(insts []Inst, opts Options) {
	if opts.Relocs == nil {
		return
	}
	for i := range insts {
		in := &insts[i]
		name, ok := opts.Relocs(in.Addr, in.Size)
		if !ok {
			continue
		}
		in.Ref = name
		switch {
		case in.Call:
			in.External = true
		case in.Branch != nil && !in.Branch.IsRet && (in.HasTarget || !in.Branch.Cond):
			in.External = true
		}
	}
}

// assignLabels names the in-range branch targets that land on an
// instruction boundary. A branch to the next instruction needs no label.
func assignLabels(insts []Inst, start, end uint64) {
	at := make(map[uint64]int, len(insts))
	for i := range insts {
		at[insts[i].Addr] = i
	}
	targets := make(map[uint64]bool)
	for i := range insts {
		in := &insts[i]
		if in.Branch == nil || in.Branch.Indirect || !in.HasTarget || in.External {
			continue
		}
		if in.Target < start || in.Target >= end || in.Target == in.Addr+uint64(in.Size) {
			continue
		}
		if _, ok := at[in.Target]; ok {
			targets[in.Target] = true
		}
	}
	n := 0
	for i := range insts {
		if targets[insts[i].Addr] {
			insts[i].Label = fmt.Sprintf("label_%d", n)
			n++
		}
	}
	for i := range insts {
		in := &insts[i]
		if in.Branch == nil || in.Branch.Indirect || !in.HasTarget || in.External {
			continue
		}
		if idx, ok := at[in.Target]; ok && insts[idx].Label != "" {
			in.Ref = insts[idx].Label
		}
	}
}

// format renders operand text once labels are known, since x86 operands
// print branch targets through symname.
func format(insts []Inst, opts Options) {
	labels := make(map[uint64]string)
	for _, in := range insts {
		if in.Label != "" {
			labels[in.Addr] = in.Label
		}
	}
	symname := func(addr uint64) (string, uint64) {
		if l, ok := labels[addr]; ok {
			return l, addr
		}
		if s, ok := opts.lookup(addr); ok {
			return s, addr
		}
		return "", 0
	}

	for i := range insts {
		in := &insts[i]
		if in.Text == "" {
			in.Text = render(in, opts, symname)
		}
		if in.External && in.HasTarget {
			// The encoded displacement is a placeholder.
			mnemonic, _ := splitText(in.Text)
			in.Text = mnemonic + " " + in.Ref
		}
		if in.HasTarget && in.Ref == "" {
			if name, ok := opts.lookup(in.Target); ok {
				in.Ref = name
			}
		}
		if in.Ref != "" && !strings.Contains(in.Text, in.Ref) {
			in.Text += " # " + in.Ref
		}
		in.Mnemonic, in.Operands = splitText(in.Text)
	}
}

func render(in *Inst, opts Options, symname x86asm.SymLookup) string {
	if opts.Arch == ArchX86_64 || opts.Arch == ArchX86 {
		mode := 64
		if opts.Arch == ArchX86 {
			mode = 32
		}
		inst, err := x86asm.Decode(in.Raw, mode)
		if err != nil {
			return fmt.Sprintf(".byte 0x%02x", in.Raw[0])
		}
		if opts.Syntax == SyntaxATT {
			return x86asm.GNUSyntax(inst, in.Addr, symname)
		}
		return x86asm.IntelSyntax(inst, in.Addr, symname)
	}
	inst, err := arm64asm.Decode(in.Raw)
	if err != nil {
		return fmt.Sprintf(".word 0x%08x", in.Word())
	}
	return inst.String()
}

func splitText(text string) (string, string) {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		return text[:i], strings.TrimSpace(text[i+1:])
	}
	return text, ""
}

// HexBytes prints raw as space separated pairs, padded to width bytes.
func HexBytes(raw []byte, width int) string {
	var b strings.Builder
	for i := 0; i < width; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i < len(raw) {
			fmt.Fprintf(&b, "%02x", raw[i])
		} else {
			b.WriteString("  ")
		}
	}
	return b.String()
}
