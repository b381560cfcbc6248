package linker

import (
	"debug/elf"

	"sbpfld/pkg/utils"
)

type OutputEhdr struct {
	Chunk
}

func NewOutputEhdr() *OutputEhdr {
	return &OutputEhdr{
		Chunk{
			Shdr: SectionHeader{
				Flags:     uint64(elf.SHF_ALLOC),
				Size:      uint64(ELFHeaderSize),
				Addralign: 8,
			},
		},
	}
}

func (o *OutputEhdr) CopyBuf(ctx *Context) {
	ehdr := &Header64{}
	WriteMagic(ehdr.Ident[:])
	ehdr.Ident[elf.EI_CLASS] = uint8(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = uint8(elf.ELFDATA2LSB)
	ehdr.Ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)
	ehdr.Ident[elf.EI_OSABI] = 0
	ehdr.Ident[elf.EI_ABIVERSION] = 0

	// The runtime loads programs as shared objects.
	ehdr.Type = uint16(elf.ET_DYN)
	ehdr.Machine = uint16(elf.EM_BPF)
	ehdr.Version = uint32(elf.EV_CURRENT)
	ehdr.Entry = GetEntryAddress(ctx)
	ehdr.Phoff = ctx.Phdr.Shdr.Offset
	ehdr.Shoff = ctx.Shdr.Shdr.Offset
	ehdr.Ehsize = uint16(ELFHeaderSize)
	ehdr.Phentsize = uint16(ProgramHeaderSize)
	ehdr.Phnum = uint16(ctx.Phdr.Shdr.Size / uint64(ProgramHeaderSize))
	ehdr.Shentsize = uint16(SectionHeaderSize)
	ehdr.Shnum = uint16(ctx.Shdr.Shdr.Size / uint64(SectionHeaderSize))
	ehdr.Shstrndx = uint16(ctx.Shstrtab.Shndx)

	if err := utils.Write(ctx.Buf[o.Shdr.Offset:], ehdr); err != nil {
		ctx.AddError(o.Shdr.Offset, err)
	}
}

func GetEntryAddress(ctx *Context) uint64 {
	if ctx.Text == nil {
		return 0
	}
	return ctx.Text.Shdr.Addr + ctx.Program.EntryOffset
}
