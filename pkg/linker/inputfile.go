package linker

import (
	"debug/elf"

	"github.com/pkg/errors"

	"sbpfld/pkg/utils"
)

type InputFile struct {
	File         *File
	ElfSections  []SectionHeader
	ElfSyms      []Sym64
	ShStrtab     []byte
	SymbolStrtab []byte
}

func NewInputFile(file *File) (InputFile, error) {
	f := InputFile{File: file}

	if len(file.Contents) < int(ELFHeaderSize) {
		return f, errors.New("file too small")
	}

	if !CheckMagic(file.Contents) {
		return f, errors.New("not an ELF file")
	}

	if elf.Class(file.Contents[elf.EI_CLASS]) != elf.ELFCLASS64 {
		return f, errors.Errorf("unsupported ELF class %s", elf.Class(file.Contents[elf.EI_CLASS]))
	}

	if elf.Data(file.Contents[elf.EI_DATA]) != elf.ELFDATA2LSB {
		return f, errors.Errorf("unsupported byte order %s", elf.Data(file.Contents[elf.EI_DATA]))
	}

	ehdr, err := utils.Read[Header64](file.Contents)
	if err != nil {
		return f, errors.Wrap(err, "reading ELF header")
	}

	if ehdr.Shoff == 0 {
		return f, nil
	}
	if ehdr.Shoff >= uint64(len(file.Contents)) {
		return f, errors.Errorf("section header table offset %#x is out of range", ehdr.Shoff)
	}

	contents := file.Contents[ehdr.Shoff:]
	shdr, err := utils.Read[SectionHeader](contents)
	if err != nil {
		return f, errors.Wrap(err, "reading section header 0")
	}

	numSections := uint64(ehdr.Shnum)
	if numSections == 0 {
		numSections = shdr.Size
	}
	if numSections > uint64(len(contents))/uint64(SectionHeaderSize) {
		return f, errors.Errorf("section header table with %d entries is out of range", numSections)
	}

	f.ElfSections = make([]SectionHeader, 0, numSections)
	for i := uint64(0); i < numSections; i++ {
		shdr, err := utils.Read[SectionHeader](contents[i*uint64(SectionHeaderSize):])
		if err != nil {
			return f, errors.Wrapf(err, "reading section header %d", i)
		}
		f.ElfSections = append(f.ElfSections, shdr)
	}

	if len(f.ElfSections) == 0 {
		return f, errors.New("section header table is empty")
	}

	shstrndx := uint64(ehdr.Shstrndx)
	if shstrndx == uint64(elf.SHN_XINDEX) {
		shstrndx = uint64(f.ElfSections[0].Link)
	}

	f.ShStrtab, err = f.GetBytesFromIndex(shstrndx)
	if err != nil {
		return f, errors.Wrap(err, "reading section name table")
	}

	return f, nil
}

func (f *InputFile) GetBytesFromShdr(hdr *SectionHeader) ([]byte, error) {
	if elf.SectionType(hdr.Type) == elf.SHT_NOBITS {
		return nil, nil
	}

	start := hdr.Offset
	end := hdr.Offset + hdr.Size
	if end < start || uint64(len(f.File.Contents)) < end {
		return nil, errors.Errorf("section contents [%#x, %#x) are out of range", start, end)
	}
	return f.File.Contents[start:end], nil
}

func (f *InputFile) GetBytesFromIndex(idx uint64) ([]byte, error) {
	if idx >= uint64(len(f.ElfSections)) {
		return nil, errors.Errorf("section index %d is out of range", idx)
	}
	return f.GetBytesFromShdr(&f.ElfSections[idx])
}

func (f *InputFile) FindSection(ty elf.SectionType) *SectionHeader {
	for i := 0; i < len(f.ElfSections); i++ {
		shdr := &f.ElfSections[i]
		if elf.SectionType(shdr.Type) == ty {
			return shdr
		}
	}

	return nil
}

func (f *InputFile) FillUpElfSyms(s *SectionHeader) error {
	contents, err := f.GetBytesFromShdr(s)
	if err != nil {
		return err
	}
	if uint64(len(contents))%uint64(SymbolSize) != 0 {
		return errors.Errorf("symbol table size %d is not a multiple of %d", len(contents), SymbolSize)
	}

	numSyms := len(contents) / int(SymbolSize)
	f.ElfSyms = make([]Sym64, 0, numSyms)
	for i := 0; i < numSyms; i++ {
		sym, err := utils.Read[Sym64](contents[i*int(SymbolSize):])
		if err != nil {
			return err
		}
		f.ElfSyms = append(f.ElfSyms, sym)
	}

	return nil
}
