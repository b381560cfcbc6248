package linker

// ElfAssembler emits a loadable SBPF shared object:
//
//	ELF header | program headers | .text | .rodata | .shstrtab | section headers
//
// .text and .rodata share one read-only mapping layout where every virtual
// address equals its file offset.
type ElfAssembler struct{}

func NewElfAssembler() *ElfAssembler {
	return &ElfAssembler{}
}

func (a *ElfAssembler) Assemble(p *ResolvedProgram) ([]byte, error) {
	ctx := NewContext(p)

	CreateSyntheticSections(ctx)
	AssignSectionIndices(ctx)
	CheckProgram(ctx)

	for _, chunk := range ctx.Chunks {
		chunk.UpdateShdr(ctx)
	}

	fileSize := SetOutputSectionOffsets(ctx)

	DefineLabels(ctx)
	PatchText(ctx)

	ctx.Buf = make([]byte, fileSize)
	for _, chunk := range ctx.Chunks {
		chunk.CopyBuf(ctx)
	}

	if err := ctx.Errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return ctx.Buf, nil
}
