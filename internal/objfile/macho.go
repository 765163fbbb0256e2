package objfile

import (
	"bytes"
	"debug/macho"
	"fmt"
)

const (
	machoNType          = 0x0e
	machoNSect          = 0x0e
	machoNStab          = 0xe0
	machoPureInstrFlags = 0x80000000
)

func machoArch(c macho.Cpu) string {
	switch c {
	case macho.CpuAmd64:
		return "x86_64"
	case macho.Cpu386:
		return "x86"
	case macho.CpuArm64:
		return "aarch64"
	}
	return c.String()
}

func parseMachO(data []byte) (*object, error) {
	r := bytes.NewReader(data)
	mf, err := macho.NewFile(r)
	if err != nil {
		// Universal binaries: take the first slice.
		fat, ferr := macho.NewFatFile(r)
		if ferr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
		}
		defer fat.Close()
		if len(fat.Arches) == 0 {
			return nil, fmt.Errorf("%w: empty universal binary", ErrNotObject)
		}
		mf = fat.Arches[0].File
	} else {
		defer mf.Close()
	}

	obj := &object{arch: machoArch(mf.Cpu), sections: make(map[string]*section)}
	if mf.Symtab == nil {
		return obj, nil
	}
	var out []Symbol
	for _, s := range mf.Symtab.Syms {
		if s.Type&machoNStab != 0 || s.Type&machoNType != machoNSect || s.Sect == 0 || int(s.Sect) > len(mf.Sections) {
			continue
		}
		sec := mf.Sections[s.Sect-1]
		if sec.Flags&machoPureInstrFlags == 0 && sec.Name != "__text" {
			continue
		}
		name := sec.Seg + "," + sec.Name
		if _, ok := obj.sections[name]; !ok {
			b, err := sec.Data()
			if err != nil {
				return nil, fmt.Errorf("objfile: macho section %s: %w", name, err)
			}
			obj.sections[name] = &section{name: name, addr: sec.Addr, data: b}
		}
		out = append(out, Symbol{Name: s.Name, Section: name, Addr: s.Value})
	}
	obj.finish(out)
	for _, sec := range mf.Sections {
		name := sec.Seg + "," + sec.Name
		if obj.sections[name] != nil {
			obj.addRelocs(name, machoRelocs(mf, sec))
		}
	}
	return obj, nil
}

// machoRelocs names the targets of sec's relocations. External entries
// index the symbol table, the rest are 1-based section ordinals.
func machoRelocs(mf *macho.File, sec *macho.Section) []Reloc {
	var out []Reloc
	for _, r := range sec.Relocs {
		if r.Scattered {
			continue
		}
		if mf.Cpu == macho.CpuArm64 && macho.RelocTypeARM64(r.Type) == macho.ARM64_RELOC_ADDEND {
			continue
		}
		var name string
		switch {
		case r.Extern && int(r.Value) < len(mf.Symtab.Syms):
			name = mf.Symtab.Syms[r.Value].Name
		case !r.Extern && r.Value > 0 && int(r.Value) <= len(mf.Sections):
			name = mf.Sections[r.Value-1].Name
		}
		if name != "" {
			out = append(out, Reloc{Offset: uint64(r.Addr), Symbol: name})
		}
	}
	return out
}
