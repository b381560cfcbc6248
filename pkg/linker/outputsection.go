package linker

import (
	"bytes"
	"debug/elf"

	"sbpfld/pkg/sbpf"
)

// TextSection holds the program's instructions. PatchText swaps label
// operands for addresses in place before CopyBuf encodes them.
type TextSection struct {
	Chunk

	Records []InstructionRecord
}

func NewTextSection(records []InstructionRecord) *TextSection {
	t := &TextSection{Chunk: NewChunk()}
	t.Name = TextSectionName
	t.Shdr.Type = uint32(elf.SHT_PROGBITS)
	t.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR)
	t.Shdr.Addralign = 8

	// Operand slices are copied so patching never reaches the caller's
	// program.
	t.Records = make([]InstructionRecord, len(records))
	for i, rec := range records {
		ops := make([]sbpf.Operand, len(rec.Instruction.Operands))
		copy(ops, rec.Instruction.Operands)
		t.Records[i] = InstructionRecord{
			Instruction: sbpf.Instruction{Opcode: rec.Instruction.Opcode, Operands: ops},
			Offset:      rec.Offset,
		}
	}
	return t
}

func (t *TextSection) UpdateShdr(ctx *Context) {
	t.Shdr.Size = ctx.Program.TextSize
}

func (t *TextSection) CopyBuf(ctx *Context) {
	base := ctx.Buf[t.Shdr.Offset : t.Shdr.Offset+t.Shdr.Size]
	for _, rec := range t.Records {
		out := &bytes.Buffer{}
		if _, err := rec.Instruction.Encode(out); err != nil {
			ctx.AddError(rec.Offset, err)
			continue
		}
		if rec.Offset+uint64(out.Len()) > uint64(len(base)) {
			// CheckProgram has already reported the size mismatch.
			continue
		}
		copy(base[rec.Offset:], out.Bytes())
	}
}

// RodataSection lays the cataloged rodata entries out at their assigned
// offsets.
type RodataSection struct {
	Chunk

	Entries []RodataEntry
}

func NewRodataSection(entries []RodataEntry) *RodataSection {
	r := &RodataSection{Chunk: NewChunk(), Entries: entries}
	r.Name = RodataSectionPrefix
	r.Shdr.Type = uint32(elf.SHT_PROGBITS)
	r.Shdr.Flags = uint64(elf.SHF_ALLOC)
	return r
}

func (r *RodataSection) UpdateShdr(ctx *Context) {
	r.Shdr.Size = ctx.Program.RodataSize
}

func (r *RodataSection) CopyBuf(ctx *Context) {
	base := ctx.Buf[r.Shdr.Offset : r.Shdr.Offset+r.Shdr.Size]
	for _, entry := range r.Entries {
		if entry.Offset+entry.Size() > uint64(len(base)) {
			continue
		}
		copy(base[entry.Offset:], entry.Data)
	}
}
