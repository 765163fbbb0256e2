// Package objfile reads function symbols and code bytes from compiled
// artifacts: ELF, Mach-O and PE/COFF files and ar archives of them.
package objfile

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
)

var (
	ErrNotObject    = errors.New("objfile: not an object file")
	ErrNoSection    = errors.New("objfile: symbol section has no data")
	ErrNoMember     = errors.New("objfile: archive member not found")
	ErrSymbolNoSize = errors.New("objfile: symbol has zero size")
)

// SymbolTableMissingError reports an artifact with no function symbols,
// usually a stripped binary.
type SymbolTableMissingError struct {
	Path string
}

func (e *SymbolTableMissingError) Error() string {
	return fmt.Sprintf("objfile: %s has no function symbols; it may be stripped, rebuild it with symbols or disassemble an object file instead", e.Path)
}

// Format identifies the container.
type Format string

const (
	FormatELF     Format = "elf"
	FormatMachO   Format = "macho"
	FormatPE      Format = "pe"
	FormatArchive Format = "archive"
)

// Symbol is one function in the symbol table.
type Symbol struct {
	Name    string `json:"name"`
	Section string `json:"section"`
	Addr    uint64 `json:"addr"`
	Size    uint64 `json:"size"`
	Member  string `json:"member,omitempty"`

	obj *object
}

type section struct {
	name   string
	addr   uint64
	data   []byte
	relocs []Reloc // sorted by Offset
}

// Reloc is a relocation against code: the bytes at Offset (relative to
// the section start) are patched with the address of Symbol at link time.
type Reloc struct {
	Offset uint64
	Symbol string
	Addend int64
}

// object is one parsed container: the file itself or an archive member.
type object struct {
	member   string
	arch     string
	sections map[string]*section
	byAddr   []Symbol
}

// File is an opened artifact. Symbols are in address order per object,
// objects in archive order.
type File struct {
	Path    string
	Format  Format
	Arch    string
	Symbols []Symbol

	objects []*object
}

// Open reads path. For archives, member selects one member by name; an
// empty member reads every object member.
func Open(path, member string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("objfile: open: %w", err)
	}
	return Parse(path, data, member)
}

// Parse is Open on bytes already in memory.
func Parse(path string, data []byte, member string) (*File, error) {
	f := &File{Path: path}
	if isArchive(data) {
		f.Format = FormatArchive
		members, err := readArchive(data)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if member != "" && m.name != member {
				continue
			}
			_, obj, err := parseObject(m.data)
			if err != nil {
				if member != "" {
					return nil, fmt.Errorf("objfile: member %s: %w", m.name, err)
				}
				continue // metadata members such as lib.rmeta
			}
			obj.member = m.name
			f.add(obj)
		}
		if member != "" && len(f.objects) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoMember, member)
		}
	} else {
		format, obj, err := parseObject(data)
		if err != nil {
			return nil, err
		}
		f.Format = format
		f.add(obj)
	}
	if len(f.Symbols) == 0 {
		return nil, &SymbolTableMissingError{Path: path}
	}
	return f, nil
}

func (f *File) add(obj *object) {
	if f.Arch == "" {
		f.Arch = obj.arch
	}
	f.objects = append(f.objects, obj)
	for _, s := range obj.byAddr {
		s.Member = obj.member
		f.Symbols = append(f.Symbols, s)
	}
}

// Code slices the owning section at the symbol's range.
func (f *File) Code(s Symbol) ([]byte, error) {
	if s.obj == nil {
		return nil, fmt.Errorf("objfile: symbol %s does not belong to %s", s.Name, f.Path)
	}
	if s.Size == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNoSize, s.Name)
	}
	sec, ok := s.obj.sections[s.Section]
	if !ok || sec.data == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoSection, s.Name, s.Section)
	}
	if s.Addr < sec.addr || s.Addr-sec.addr+s.Size > uint64(len(sec.data)) {
		return nil, fmt.Errorf("objfile: symbol %s [0x%x, +0x%x) outside section %s", s.Name, s.Addr, s.Size, s.Section)
	}
	off := s.Addr - sec.addr
	return sec.data[off : off+s.Size], nil
}

// Resolver names addresses within the object s came from. Only
// same-section targets resolve; in relocatable objects cross-section
// references are named by Relocations instead.
func (f *File) Resolver(s Symbol) func(addr uint64) (string, bool) {
	obj := s.obj
	return func(addr uint64) (string, bool) {
		if obj == nil {
			return "", false
		}
		i := sort.Search(len(obj.byAddr), func(i int) bool { return obj.byAddr[i].Addr >= addr })
		for ; i < len(obj.byAddr) && obj.byAddr[i].Addr == addr; i++ {
			if obj.byAddr[i].Section == s.Section {
				return obj.byAddr[i].Name, true
			}
		}
		return "", false
	}
}

// Relocations returns a lookup over the relocations patching s's code. It
// reports the target symbol of the first relocation whose offset falls in
// [addr, addr+size), with addr in the same address space as s.Addr.
func (f *File) Relocations(s Symbol) func(addr uint64, size int) (string, bool) {
	var relocs []Reloc
	var base uint64
	if s.obj != nil {
		if sec := s.obj.sections[s.Section]; sec != nil {
			relocs, base = sec.relocs, sec.addr
		}
	}
	return func(addr uint64, size int) (string, bool) {
		if addr < base {
			return "", false
		}
		lo := addr - base
		i := sort.Search(len(relocs), func(i int) bool { return relocs[i].Offset >= lo })
		if i < len(relocs) && relocs[i].Offset < lo+uint64(size) {
			return relocs[i].Symbol, true
		}
		return "", false
	}
}

// addRelocs attaches relocs to the named section, if it holds code.
func (o *object) addRelocs(name string, relocs []Reloc) {
	sec := o.sections[name]
	if sec == nil || len(relocs) == 0 {
		return
	}
	sec.relocs = append(sec.relocs, relocs...)
	sort.SliceStable(sec.relocs, func(i, j int) bool { return sec.relocs[i].Offset < sec.relocs[j].Offset })
}

func parseObject(data []byte) (Format, *object, error) {
	switch {
	case bytes.HasPrefix(data, []byte(elf.ELFMAG)):
		obj, err := parseELF(data)
		return FormatELF, obj, err
	case isMachO(data):
		obj, err := parseMachO(data)
		return FormatMachO, obj, err
	case bytes.HasPrefix(data, []byte("MZ")) || isCOFF(data):
		obj, err := parsePE(data)
		return FormatPE, obj, err
	}
	return "", nil, ErrNotObject
}

func isMachO(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	switch binary.BigEndian.Uint32(data) {
	case macho.Magic32, macho.Magic64, macho.MagicFat, 0xcefaedfe, 0xcffaedfe:
		return true
	}
	return false
}

// isCOFF recognizes bare COFF objects by their machine field.
func isCOFF(data []byte) bool {
	if len(data) < 20 {
		return false
	}
	switch binary.LittleEndian.Uint16(data) {
	case pe.IMAGE_FILE_MACHINE_AMD64, pe.IMAGE_FILE_MACHINE_I386, pe.IMAGE_FILE_MACHINE_ARM64:
		return true
	}
	return false
}

func (o *object) sectionAddr(name string) uint64 {
	if sec := o.sections[name]; sec != nil {
		return sec.addr
	}
	return 0
}

// finish sorts symbols by address and fills missing sizes from the next
// symbol in the same section, or the section end.
func (o *object) finish(syms []Symbol) {
	sort.SliceStable(syms, func(i, j int) bool {
		if syms[i].Section != syms[j].Section {
			ai, aj := o.sectionAddr(syms[i].Section), o.sectionAddr(syms[j].Section)
			if ai != aj {
				return ai < aj
			}
			return syms[i].Section < syms[j].Section
		}
		return syms[i].Addr < syms[j].Addr
	})
	for i := range syms {
		syms[i].obj = o
		if syms[i].Size != 0 {
			continue
		}
		end := uint64(0)
		if sec := o.sections[syms[i].Section]; sec != nil {
			end = sec.addr + uint64(len(sec.data))
		}
		for j := i + 1; j < len(syms) && syms[j].Section == syms[i].Section; j++ {
			if syms[j].Addr > syms[i].Addr {
				end = syms[j].Addr
				break
			}
		}
		if end > syms[i].Addr {
			syms[i].Size = end - syms[i].Addr
		}
	}
	o.byAddr = syms
	// Address lookups binary search over one flat order.
	sort.SliceStable(o.byAddr, func(i, j int) bool { return o.byAddr[i].Addr < o.byAddr[j].Addr })
}
