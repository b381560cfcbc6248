package linker

import "sbpfld/pkg/utils"

type OutputShdr struct {
	Chunk
}

func NewOutputShdr() *OutputShdr {
	o := &OutputShdr{
		Chunk: NewChunk(),
	}
	o.Shdr.Addralign = 8
	return o
}

func (o *OutputShdr) UpdateShdr(ctx *Context) {
	n := int64(0)
	for _, chunk := range ctx.Chunks {
		if chunk.GetShndx() > n {
			n = chunk.GetShndx()
		}
	}

	o.Shdr.Size = uint64(n+1) * uint64(SectionHeaderSize)
}

func (o *OutputShdr) CopyBuf(ctx *Context) {
	base := ctx.Buf[o.Shdr.Offset:]
	if err := utils.Write[SectionHeader](base, SectionHeader{}); err != nil {
		ctx.AddError(o.Shdr.Offset, err)
	}

	for _, chunk := range ctx.Chunks {
		if chunk.GetShndx() > 0 {
			off := chunk.GetShndx() * int64(SectionHeaderSize)
			if err := utils.Write[SectionHeader](base[off:], *chunk.GetShdr()); err != nil {
				ctx.AddError(o.Shdr.Offset+uint64(off), err)
			}
		}
	}
}
