package linker

import (
	"debug/elf"

	"github.com/pkg/errors"

	"sbpfld/pkg/sbpf"
	"sbpfld/pkg/utils"
)

func CreateSyntheticSections(ctx *Context) {
	push := func(chunk Chunker) Chunker {
		ctx.Chunks = append(ctx.Chunks, chunk)
		return chunk
	}

	ctx.Ehdr = push(NewOutputEhdr()).(*OutputEhdr)
	ctx.Phdr = push(NewOutputPhdr()).(*OutputPhdr)
	ctx.Text = push(NewTextSection(ctx.Program.Instructions)).(*TextSection)
	if ctx.Program.RodataSize > 0 || len(ctx.Program.Rodata) > 0 {
		ctx.Rodata = push(NewRodataSection(ctx.Program.Rodata)).(*RodataSection)
	}
	ctx.Shstrtab = push(NewShstrtabSection()).(*ShstrtabSection)
	ctx.Shdr = push(NewOutputShdr()).(*OutputShdr)
}

// AssignSectionIndices numbers every named chunk and records its name in
// .shstrtab. Headers stay at index 0.
func AssignSectionIndices(ctx *Context) {
	shndx := int64(1)
	for _, chunk := range ctx.Chunks {
		if chunk.GetName() == "" {
			continue
		}
		switch c := chunk.(type) {
		case *TextSection:
			c.Shndx = shndx
		case *RodataSection:
			c.Shndx = shndx
		case *ShstrtabSection:
			c.Shndx = shndx
		default:
			continue
		}
		chunk.GetShdr().Name = ctx.Shstrtab.AddName(chunk.GetName())
		shndx++
	}
}

// CheckProgram validates the program against the layout it claims. Every
// problem is recorded, so one run reports them all.
func CheckProgram(ctx *Context) {
	p := ctx.Program

	starts := make(map[uint64]struct{}, len(p.Instructions))
	next := uint64(0)
	for _, rec := range p.Instructions {
		if rec.Offset != next {
			ctx.AddError(rec.Offset, errors.Wrapf(ErrSizeMismatch, "instruction expected at %#x", next))
		}
		starts[rec.Offset] = struct{}{}
		next = rec.Offset + uint64(rec.Instruction.Size())
	}
	if next != p.TextSize {
		ctx.AddError(next, errors.Wrapf(ErrSizeMismatch, "instructions span %d bytes, text size is %d", next, p.TextSize))
	}

	for _, rec := range p.Instructions {
		if !rec.Instruction.Kind().IsJump() {
			continue
		}
		last, ok := rec.Instruction.LastOperand()
		if !ok {
			continue
		}
		off, ok := last.Int()
		if !ok {
			continue
		}
		target := int64(rec.Offset) + sbpf.InstructionSize + off*sbpf.InstructionSize
		if target < 0 || uint64(target) >= p.TextSize {
			ctx.AddError(rec.Offset, errors.Wrapf(ErrJumpOutOfRange, "%s lands at %#x", rec.Instruction, target))
			continue
		}
		if _, ok := starts[uint64(target)]; !ok {
			ctx.AddError(rec.Offset, errors.Wrapf(ErrJumpOutOfRange, "%s lands inside an instruction at %#x", rec.Instruction, target))
		}
	}

	seen := make(map[string]struct{}, len(p.Rodata))
	for _, entry := range p.Rodata {
		if _, ok := seen[entry.Name]; ok {
			ctx.AddError(entry.Offset, errors.Wrapf(ErrDuplicateLabel, "%q", entry.Name))
		}
		seen[entry.Name] = struct{}{}
		if entry.Offset+entry.Size() > p.RodataSize {
			ctx.AddError(entry.Offset, errors.Wrapf(ErrSizeMismatch, "rodata entry %q ends past %d", entry.Name, p.RodataSize))
		}
	}
}

// SetOutputSectionOffsets lays allocated chunks out from address 0 so that
// every address equals its file offset. The VM maps the image at
// ProgramStart.
func SetOutputSectionOffsets(ctx *Context) uint64 {
	addr := uint64(0)
	for _, chunk := range ctx.Chunks {
		if chunk.GetShdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}

		addr = utils.AlignTo(addr, chunk.GetShdr().Addralign)
		chunk.GetShdr().Addr = addr
		addr += chunk.GetShdr().Size
	}

	i := 0
	first := ctx.Chunks[0]
	for {
		shdr := ctx.Chunks[i].GetShdr()
		shdr.Offset = shdr.Addr - first.GetShdr().Addr
		i++

		if i >= len(ctx.Chunks) ||
			ctx.Chunks[i].GetShdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
			break
		}
	}

	lastShdr := ctx.Chunks[i-1].GetShdr()
	fileoff := lastShdr.Offset + lastShdr.Size

	for ; i < len(ctx.Chunks); i++ {
		shdr := ctx.Chunks[i].GetShdr()
		fileoff = utils.AlignTo(fileoff, shdr.Addralign)
		shdr.Offset = fileoff
		fileoff += shdr.Size
	}

	ctx.Phdr.UpdateShdr(ctx)
	return fileoff
}

// DefineLabels gives each rodata entry the address it has once loaded.
func DefineLabels(ctx *Context) {
	if ctx.Rodata == nil {
		return
	}
	for _, entry := range ctx.Rodata.Entries {
		ctx.Labels[entry.Name] = ProgramStart + ctx.Rodata.Shdr.Addr + entry.Offset
	}
}

// PatchText replaces label operands with the addresses DefineLabels
// assigned.
func PatchText(ctx *Context) {
	for i := range ctx.Text.Records {
		rec := &ctx.Text.Records[i]
		for j, op := range rec.Instruction.Operands {
			if op.Kind != sbpf.OperandIdentifier {
				continue
			}
			// A failed operand becomes 0 so the error is reported once
			// and not again by the encoder.
			addr, ok := ctx.Labels[op.Name]
			switch {
			case rec.Instruction.Opcode != sbpf.Lddw:
				ctx.AddError(rec.Offset, errors.Wrapf(ErrLabelOperand, "%s", rec.Instruction))
				addr = 0
			case !ok:
				ctx.AddError(rec.Offset, errors.Wrapf(ErrUndefinedLabel, "%q", op.Name))
			}
			rec.Instruction.Operands[j] = sbpf.Immediate(int64(addr))
		}
	}
}
