package linker

import "debug/elf"

// Object is the read-only view of a parsed relocatable object that the
// linker passes work against.
type Object interface {
	Sections() []*Section
	// Symbols returns the symbol table in table order, including the
	// null symbol at index 0.
	Symbols() []Symbol
	SymbolByIndex(idx uint32) (Symbol, bool)
	// Relocations returns the entries applying to s in table order.
	Relocations(s *Section) []Relocation
}

type Section struct {
	Index int
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	Size  uint64
	Data  []byte
}

type Symbol struct {
	Index int
	Name  string
	Value uint64
	Size  uint64
	Info  uint8
	Shndx uint16
}

// SectionIndex is the index of the section defining the symbol. Undefined,
// absolute and common symbols have none.
func (s Symbol) SectionIndex() (int, bool) {
	if s.Shndx == uint16(elf.SHN_UNDEF) || s.Shndx >= uint16(elf.SHN_LORESERVE) {
		return 0, false
	}
	return int(s.Shndx), true
}

func (s Symbol) Type() elf.SymType {
	return elf.ST_TYPE(s.Info)
}

func (s Symbol) Bind() elf.SymBind {
	return elf.ST_BIND(s.Info)
}

type Relocation struct {
	Offset uint64
	Type   R_BPF
	Sym    uint32
	Addend int64
}

// Symbol returns the target symbol index. Entries with symbol index 0 are
// not symbol-relative.
func (r Relocation) Symbol() (uint32, bool) {
	return r.Sym, r.Sym != 0
}
