package linker

import (
	"debug/elf"

	"github.com/pkg/errors"

	"sbpfld/pkg/utils"
)

// ObjectFile is an ELF64 little-endian relocatable object. It implements
// Object.
type ObjectFile struct {
	InputFile

	SymtabSection *SectionHeader

	sections    []*Section
	symbols     []Symbol
	relocations map[int][]Relocation
}

func NewObjectFile(file *File) (*ObjectFile, error) {
	input, err := NewInputFile(file)
	if err != nil {
		return nil, &ObjectParseError{Err: err}
	}

	o := &ObjectFile{InputFile: input, relocations: make(map[int][]Relocation)}
	if err := o.Parse(); err != nil {
		return nil, &ObjectParseError{Err: err}
	}
	return o, nil
}

func (o *ObjectFile) Parse() error {
	o.SymtabSection = o.FindSection(elf.SHT_SYMTAB)
	if o.SymtabSection != nil {
		if err := o.FillUpElfSyms(o.SymtabSection); err != nil {
			return errors.Wrap(err, "reading symbol table")
		}
		strtab, err := o.GetBytesFromIndex(uint64(o.SymtabSection.Link))
		if err != nil {
			return errors.Wrap(err, "reading symbol name table")
		}
		o.SymbolStrtab = strtab
	}

	if err := o.initializeSections(); err != nil {
		return err
	}
	o.initializeSymbols()
	return o.initializeRelocations()
}

func (o *ObjectFile) initializeSections() error {
	o.sections = make([]*Section, 0, len(o.ElfSections))
	for i := range o.ElfSections {
		shdr := &o.ElfSections[i]
		name := GetNameFromTable(o.ShStrtab, shdr.Name)
		data, err := o.GetBytesFromShdr(shdr)
		if err != nil {
			return errors.Wrapf(err, "section %d (%s)", i, name)
		}
		o.sections = append(o.sections, &Section{
			Index: i,
			Name:  name,
			Type:  elf.SectionType(shdr.Type),
			Flags: elf.SectionFlag(shdr.Flags),
			Addr:  shdr.Addr,
			Size:  shdr.Size,
			Data:  data,
		})
	}
	return nil
}

func (o *ObjectFile) initializeSymbols() {
	o.symbols = make([]Symbol, 0, len(o.ElfSyms))
	for i, esym := range o.ElfSyms {
		o.symbols = append(o.symbols, Symbol{
			Index: i,
			Name:  GetNameFromTable(o.SymbolStrtab, esym.Name),
			Value: esym.Value,
			Size:  esym.Size,
			Info:  esym.Info,
			Shndx: esym.Shndx,
		})
	}
}

func (o *ObjectFile) initializeRelocations() error {
	for i := range o.ElfSections {
		shdr := &o.ElfSections[i]
		ty := elf.SectionType(shdr.Type)
		if ty != elf.SHT_REL && ty != elf.SHT_RELA {
			continue
		}

		target := int(shdr.Info)
		if target <= 0 || target >= len(o.ElfSections) {
			return errors.Errorf("relocation section %d applies to missing section %d", i, shdr.Info)
		}

		contents, err := o.GetBytesFromShdr(shdr)
		if err != nil {
			return errors.Wrapf(err, "relocation section %d", i)
		}

		entSize := uint64(RelSize)
		if ty == elf.SHT_RELA {
			entSize = uint64(RelaSize)
		}
		if uint64(len(contents))%entSize != 0 {
			return errors.Errorf("relocation section %d size %d is not a multiple of %d", i, len(contents), entSize)
		}

		for off := uint64(0); off < uint64(len(contents)); off += entSize {
			var rel Relocation
			if ty == elf.SHT_RELA {
				r, err := utils.Read[Rela64](contents[off:])
				if err != nil {
					return err
				}
				rel = Relocation{Offset: r.Off, Type: R_BPF(elf.R_TYPE64(r.Info)), Sym: elf.R_SYM64(r.Info), Addend: r.Addend}
			} else {
				r, err := utils.Read[Rel64](contents[off:])
				if err != nil {
					return err
				}
				rel = Relocation{Offset: r.Off, Type: R_BPF(elf.R_TYPE64(r.Info)), Sym: elf.R_SYM64(r.Info)}
			}
			o.relocations[target] = append(o.relocations[target], rel)
		}
	}
	return nil
}

func (o *ObjectFile) Sections() []*Section {
	return o.sections
}

func (o *ObjectFile) Symbols() []Symbol {
	return o.symbols
}

func (o *ObjectFile) SymbolByIndex(idx uint32) (Symbol, bool) {
	if uint64(idx) >= uint64(len(o.symbols)) {
		return Symbol{}, false
	}
	return o.symbols[idx], true
}

func (o *ObjectFile) Relocations(s *Section) []Relocation {
	if s == nil {
		return nil
	}
	return o.relocations[s.Index]
}
