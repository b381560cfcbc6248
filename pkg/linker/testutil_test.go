package linker

import (
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"sbpfld/pkg/sbpf"
	"sbpfld/pkg/utils"
)

func put[T any](t testing.TB, buf []byte, val T) {
	t.Helper()
	require.NoError(t, utils.Write(buf, val))
}

func insn(op sbpf.Opcode, dst, src uint8, off int16, imm int32) []byte {
	b := make([]byte, 8)
	b[0] = uint8(op)
	b[1] = src<<4 | dst&0xf
	binary.LittleEndian.PutUint16(b[2:], uint16(off))
	binary.LittleEndian.PutUint32(b[4:], uint32(imm))
	return b
}

func lddw(dst uint8, imm uint64) []byte {
	b := insn(sbpf.Lddw, dst, 0, 0, int32(uint32(imm)))
	hi := make([]byte, 8)
	binary.LittleEndian.PutUint32(hi[4:], uint32(imm>>32))
	return append(b, hi...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

const (
	inText   = "text"
	inRodata = "rodata"
	absolute = "abs"
)

type testSym struct {
	name    string
	section string
	value   uint64
	size    uint64
	typ     elf.SymType
}

type testReloc struct {
	offset uint64
	// sym is the symbol table index; 0 is the null symbol.
	sym uint32
	typ R_BPF
}

// testObject describes a relocatable object the tests assemble into real
// ELF bytes. Symbol table index i+1 is syms[i].
type testObject struct {
	machine elf.Machine
	text    []byte
	noText  bool
	rodata  []byte
	// rodataNames defaults to a single ".rodata" when rodata is set.
	rodataNames []string
	syms        []testSym
	relocs      []testReloc
	rela        bool
}

type builtSection struct {
	name string
	hdr  SectionHeader
	data []byte
}

func (o testObject) build(t testing.TB) []byte {
	t.Helper()

	machine := o.machine
	if machine == elf.EM_NONE {
		machine = elf.EM_BPF
	}

	sections := []*builtSection{{}}
	add := func(s *builtSection) uint16 {
		sections = append(sections, s)
		return uint16(len(sections) - 1)
	}

	var textIdx, rodataIdx uint16
	if !o.noText {
		textIdx = add(&builtSection{name: ".text", data: o.text, hdr: SectionHeader{
			Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR), Addralign: 8,
		}})
	}
	names := o.rodataNames
	if len(names) == 0 && o.rodata != nil {
		names = []string{".rodata"}
	}
	for i, name := range names {
		idx := add(&builtSection{name: name, data: o.rodata, hdr: SectionHeader{
			Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC), Addralign: 1,
		}})
		if i == 0 {
			rodataIdx = idx
		}
	}

	strtab := []byte{0}
	symtab := make([]byte, SymbolSize)
	for _, s := range o.syms {
		sym := Sym64{
			Name:  uint32(len(strtab)),
			Info:  elf.ST_INFO(elf.STB_GLOBAL, s.typ),
			Value: s.value,
			Size:  s.size,
		}
		strtab = append(append(strtab, s.name...), 0)
		switch s.section {
		case inText:
			sym.Shndx = textIdx
		case inRodata:
			sym.Shndx = rodataIdx
		case absolute:
			sym.Shndx = uint16(elf.SHN_ABS)
		}
		buf := make([]byte, SymbolSize)
		put(t, buf, sym)
		symtab = append(symtab, buf...)
	}

	symtabIdx := add(&builtSection{name: ".symtab", data: symtab, hdr: SectionHeader{
		Type: uint32(elf.SHT_SYMTAB), Info: 1, Addralign: 8, Entsize: uint64(SymbolSize),
	}})
	strtabIdx := add(&builtSection{name: ".strtab", data: strtab, hdr: SectionHeader{Type: uint32(elf.SHT_STRTAB), Addralign: 1}})
	sections[symtabIdx].hdr.Link = uint32(strtabIdx)

	if len(o.relocs) > 0 {
		var data []byte
		for _, r := range o.relocs {
			info := elf.R_INFO(r.sym, uint32(r.typ))
			if o.rela {
				buf := make([]byte, RelaSize)
				put(t, buf, Rela64{Off: r.offset, Info: info})
				data = append(data, buf...)
			} else {
				buf := make([]byte, RelSize)
				put(t, buf, Rel64{Off: r.offset, Info: info})
				data = append(data, buf...)
			}
		}
		name, ty, ent := ".rel.text", elf.SHT_REL, uint64(RelSize)
		if o.rela {
			name, ty, ent = ".rela.text", elf.SHT_RELA, uint64(RelaSize)
		}
		add(&builtSection{name: name, data: data, hdr: SectionHeader{
			Type: uint32(ty), Link: uint32(symtabIdx), Info: uint32(textIdx), Addralign: 8, Entsize: ent,
		}})
	}

	shstrtab := &builtSection{name: ".shstrtab", hdr: SectionHeader{Type: uint32(elf.SHT_STRTAB), Addralign: 1}}
	shstrndx := add(shstrtab)
	shstrtab.data = []byte{0}
	for _, s := range sections[1:] {
		s.hdr.Name = uint32(len(shstrtab.data))
		shstrtab.data = append(append(shstrtab.data, s.name...), 0)
	}

	out := make([]byte, ELFHeaderSize)
	for _, s := range sections[1:] {
		off := utils.AlignTo(uint64(len(out)), max(s.hdr.Addralign, 1))
		out = append(out, make([]byte, off-uint64(len(out)))...)
		s.hdr.Offset = off
		s.hdr.Size = uint64(len(s.data))
		out = append(out, s.data...)
	}

	shoff := utils.AlignTo(uint64(len(out)), 8)
	out = append(out, make([]byte, shoff-uint64(len(out)))...)
	for _, s := range sections {
		buf := make([]byte, SectionHeaderSize)
		put(t, buf, s.hdr)
		out = append(out, buf...)
	}

	ehdr := Header64{
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shoff,
		Ehsize:    uint16(ELFHeaderSize),
		Shentsize: uint16(SectionHeaderSize),
		Shnum:     uint16(len(sections)),
		Shstrndx:  shstrndx,
	}
	WriteMagic(ehdr.Ident[:])
	ehdr.Ident[elf.EI_CLASS] = uint8(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = uint8(elf.ELFDATA2LSB)
	ehdr.Ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)
	put(t, out, ehdr)

	return out
}

func (o testObject) parse(t testing.TB) *ObjectFile {
	t.Helper()
	obj, err := NewObjectFile(&File{Name: t.Name(), Contents: o.build(t)})
	require.NoError(t, err)
	return obj
}

// msgObject holds one 4-byte rodata symbol MSG at 0x10 and two
// instructions, the second of which loads MSG's address.
func msgObject() testObject {
	rodata := make([]byte, 0x14)
	copy(rodata[0x10:], "hey!")
	return testObject{
		text: concat(
			insn(sbpf.Mov64Imm, 0, 0, 0, 0),
			insn(sbpf.Mov64Imm, 1, 0, 0, 0x10),
		),
		rodata: rodata,
		syms: []testSym{
			{name: "MSG", section: inRodata, value: 0x10, size: 4, typ: elf.STT_OBJECT},
		},
		relocs: []testReloc{{offset: 8, sym: 1, typ: R_BPF_64_64}},
	}
}
