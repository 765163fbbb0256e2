package objfile

import (
	"bytes"
	"debug/pe"
	"fmt"
)

const (
	peCntCode      = 0x00000020 // IMAGE_SCN_CNT_CODE
	peFunctionType = 0x20       // IMAGE_SYM_DTYPE_FUNCTION << 4
	peClassExtern  = 2          // IMAGE_SYM_CLASS_EXTERNAL
)

func peArch(m uint16) string {
	switch m {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "x86_64"
	case pe.IMAGE_FILE_MACHINE_I386:
		return "x86"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "aarch64"
	}
	return fmt.Sprintf("pe-machine-0x%x", m)
}

// parsePE reads images and bare COFF objects. Addresses are RVAs.
func parsePE(data []byte) (*object, error) {
	pf, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	defer pf.Close()

	obj := &object{arch: peArch(pf.Machine), sections: make(map[string]*section)}
	var out []Symbol
	for _, s := range pf.Symbols {
		if s.SectionNumber <= 0 || int(s.SectionNumber) > len(pf.Sections) {
			continue
		}
		sec := pf.Sections[s.SectionNumber-1]
		if sec.Characteristics&peCntCode == 0 {
			continue
		}
		// Static section symbols (.text, .text$mn) share the code section
		// but are not functions.
		if s.Type&0xf0 != peFunctionType && s.StorageClass != peClassExtern {
			continue
		}
		if _, ok := obj.sections[sec.Name]; !ok {
			b, err := sec.Data()
			if err != nil {
				return nil, fmt.Errorf("objfile: pe section %s: %w", sec.Name, err)
			}
			obj.sections[sec.Name] = &section{name: sec.Name, addr: uint64(sec.VirtualAddress), data: b}
		}
		out = append(out, Symbol{Name: s.Name, Section: sec.Name, Addr: uint64(sec.VirtualAddress) + uint64(s.Value)})
	}
	obj.finish(out)
	for _, sec := range pf.Sections {
		if obj.sections[sec.Name] != nil {
			obj.addRelocs(sec.Name, peRelocs(pf, sec))
		}
	}
	return obj, nil
}

// peRelocs names the targets of sec's COFF relocations. Symbol indices
// count auxiliary records, which COFFSymbols keeps.
func peRelocs(pf *pe.File, sec *pe.Section) []Reloc {
	var out []Reloc
	for _, r := range sec.Relocs {
		if int(r.SymbolTableIndex) >= len(pf.COFFSymbols) || r.VirtualAddress < sec.VirtualAddress {
			continue
		}
		name, err := pf.COFFSymbols[r.SymbolTableIndex].FullName(pf.StringTable)
		if err != nil || name == "" {
			continue
		}
		out = append(out, Reloc{Offset: uint64(r.VirtualAddress - sec.VirtualAddress), Symbol: name})
	}
	return out
}
