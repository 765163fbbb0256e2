package objfile

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
)

func elfArch(m elf.Machine) string {
	switch m {
	case elf.EM_X86_64:
		return "x86_64"
	case elf.EM_386:
		return "x86"
	case elf.EM_AARCH64:
		return "aarch64"
	}
	return m.String()
}

func parseELF(data []byte) (*object, error) {
	ef, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	defer ef.Close()

	syms, err := ef.Symbols()
	static := err == nil && len(syms) > 0
	if errors.Is(err, elf.ErrNoSymbols) || (err == nil && len(syms) == 0) {
		syms, err = ef.DynamicSymbols()
		if errors.Is(err, elf.ErrNoSymbols) {
			syms, err = nil, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("objfile: elf symbols: %w", err)
	}

	obj := &object{arch: elfArch(ef.Machine), sections: make(map[string]*section)}
	var out []Symbol
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Section == elf.SHN_UNDEF || int(s.Section) >= len(ef.Sections) {
			continue
		}
		sec := ef.Sections[s.Section]
		if sec.Type != elf.SHT_PROGBITS || sec.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		if _, ok := obj.sections[sec.Name]; !ok {
			b, err := sec.Data()
			if err != nil {
				return nil, fmt.Errorf("objfile: elf section %s: %w", sec.Name, err)
			}
			obj.sections[sec.Name] = &section{name: sec.Name, addr: sec.Addr, data: b}
		}
		// In relocatable objects sections sit at address 0 and values are
		// section offsets, so Addr stays consistent with section.addr.
		out = append(out, Symbol{Name: s.Name, Section: sec.Name, Addr: s.Value, Size: s.Size})
	}
	obj.finish(out)
	if static {
		if err := readELFRelocs(ef, syms, obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// readELFRelocs reads the REL and RELA sections that patch the code
// sections already in obj. Symbol indices count from the null symbol,
// which ef.Symbols omits.
func readELFRelocs(ef *elf.File, syms []elf.Symbol, obj *object) error {
	name := func(idx uint32) string {
		if idx == 0 || int(idx) > len(syms) {
			return ""
		}
		s := syms[idx-1]
		if elf.ST_TYPE(s.Info) == elf.STT_SECTION && int(s.Section) < len(ef.Sections) {
			return ef.Sections[s.Section].Name
		}
		return s.Name
	}
	for _, rs := range ef.Sections {
		// Allocated relocation sections are dynamic ones for the loader.
		if rs.Type != elf.SHT_RELA && rs.Type != elf.SHT_REL || rs.Flags&elf.SHF_ALLOC != 0 {
			continue
		}
		if int(rs.Info) >= len(ef.Sections) || obj.sections[ef.Sections[rs.Info].Name] == nil {
			continue
		}
		// Linked files (--emit-relocs) use virtual addresses.
		var base uint64
		if ef.Type != elf.ET_REL {
			base = ef.Sections[rs.Info].Addr
		}
		b, err := rs.Data()
		if err != nil {
			return fmt.Errorf("objfile: elf section %s: %w", rs.Name, err)
		}
		var relocs []Reloc
		for _, e := range decodeELFRelocs(ef, rs.Type == elf.SHT_RELA, b) {
			if n := name(e.sym); n != "" && e.off >= base {
				relocs = append(relocs, Reloc{Offset: e.off - base, Symbol: n, Addend: e.addend})
			}
		}
		obj.addRelocs(ef.Sections[rs.Info].Name, relocs)
	}
	return nil
}

type elfReloc struct {
	off    uint64
	sym    uint32
	addend int64
}

func decodeELFRelocs(ef *elf.File, rela bool, b []byte) []elfReloc {
	bo := ef.ByteOrder
	var out []elfReloc
	switch {
	case ef.Class == elf.ELFCLASS64 && rela:
		for ; len(b) >= 24; b = b[24:] {
			out = append(out, elfReloc{off: bo.Uint64(b), sym: elf.R_SYM64(bo.Uint64(b[8:])), addend: int64(bo.Uint64(b[16:]))})
		}
	case ef.Class == elf.ELFCLASS64:
		for ; len(b) >= 16; b = b[16:] {
			out = append(out, elfReloc{off: bo.Uint64(b), sym: elf.R_SYM64(bo.Uint64(b[8:]))})
		}
	case rela:
		for ; len(b) >= 12; b = b[12:] {
			out = append(out, elfReloc{off: uint64(bo.Uint32(b)), sym: elf.R_SYM32(bo.Uint32(b[4:])), addend: int64(int32(bo.Uint32(b[8:])))})
		}
	default:
		for ; len(b) >= 8; b = b[8:] {
			out = append(out, elfReloc{off: uint64(bo.Uint32(b)), sym: elf.R_SYM32(bo.Uint32(b[4:]))})
		}
	}
	return out
}
