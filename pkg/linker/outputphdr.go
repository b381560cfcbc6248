package linker

import (
	"debug/elf"

	"github.com/samber/lo"

	"sbpfld/pkg/utils"
)

type OutputPhdr struct {
	Chunk

	Phdrs []ProgramHeader
}

func NewOutputPhdr() *OutputPhdr {
	o := &OutputPhdr{
		Chunk: NewChunk(),
	}

	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.Addralign = 8

	return o
}

func ToPhdrFlags(chunk Chunker) uint32 {
	ret := uint32(elf.PF_R)
	write := chunk.GetShdr().Flags&uint64(elf.SHF_WRITE) != 0
	if write {
		ret |= uint32(elf.PF_W)
	}
	if chunk.GetShdr().Flags&uint64(elf.SHF_EXECINSTR) != 0 {
		ret |= uint32(elf.PF_X)
	}
	return ret
}

// CreatePhdr emits PT_PHDR followed by one PT_LOAD per run of allocated
// chunks sharing the same permissions.
func CreatePhdr(ctx *Context) []ProgramHeader {
	vec := make([]ProgramHeader, 0)

	define := func(typ, flags uint64, minAlign uint64, chunk Chunker) {
		vec = append(vec, ProgramHeader{})
		phdr := &vec[len(vec)-1]
		phdr.Type = uint32(typ)
		phdr.Flags = uint32(flags)
		phdr.Align = max(minAlign, chunk.GetShdr().Addralign)
		phdr.Offset = chunk.GetShdr().Offset
		phdr.FileSize = chunk.GetShdr().Size
		phdr.VAddr = chunk.GetShdr().Addr
		phdr.PAddr = chunk.GetShdr().Addr
		phdr.MemSize = chunk.GetShdr().Size
	}

	push := func(chunk Chunker) {
		phdr := &vec[len(vec)-1]
		phdr.Align = max(phdr.Align, chunk.GetShdr().Addralign)
		phdr.FileSize = chunk.GetShdr().Addr + chunk.GetShdr().Size - phdr.VAddr
		phdr.MemSize = phdr.FileSize
	}

	define(uint64(elf.PT_PHDR), uint64(elf.PF_R), 8, ctx.Phdr)

	// The file and ELF headers are mapped too but belong to no segment.
	chunks := lo.Filter(ctx.Chunks, func(chunk Chunker, _ int) bool {
		return chunk.GetShndx() > 0 && chunk.GetShdr().Flags&uint64(elf.SHF_ALLOC) != 0
	})

	end := len(chunks)
	for i := 0; i < end; {
		first := chunks[i]
		i++

		flags := ToPhdrFlags(first)
		define(uint64(elf.PT_LOAD), uint64(flags), PageSize, first)

		for i < end && ToPhdrFlags(chunks[i]) == flags {
			push(chunks[i])
			i++
		}
	}

	return vec
}

func (o *OutputPhdr) UpdateShdr(ctx *Context) {
	o.Phdrs = CreatePhdr(ctx)
	o.Shdr.Size = uint64(len(o.Phdrs)) * uint64(ProgramHeaderSize)
}

func (o *OutputPhdr) CopyBuf(ctx *Context) {
	if err := utils.Write(ctx.Buf[o.Shdr.Offset:], o.Phdrs); err != nil {
		ctx.AddError(o.Shdr.Offset, err)
	}
}
