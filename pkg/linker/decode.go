package linker

import (
	"sbpfld/pkg/sbpf"
)

type InstructionRecord struct {
	Instruction sbpf.Instruction
	// Offset is the byte position of the instruction in the input .text.
	Offset uint64
}

// Text is the decoded code section. Records stay in input order; index
// maps a byte offset to the record's position so passes can patch records
// in place without holding pointers into the slice.
type Text struct {
	Records []InstructionRecord
	Size    uint64

	index map[uint64]int
}

func NewText(records []InstructionRecord, size uint64) *Text {
	t := &Text{Records: records, Size: size, index: make(map[uint64]int, len(records))}
	for i, rec := range records {
		t.index[rec.Offset] = i
	}
	return t
}

// At returns the position of the record starting at offset.
func (t *Text) At(offset uint64) (int, bool) {
	i, ok := t.index[offset]
	return i, ok
}

// DecodeText splits the code section into instructions. lddw takes 16
// bytes and every other opcode 8; a section that does not end exactly on
// an instruction boundary fails at its last record.
func DecodeText(data []byte) (*Text, error) {
	var records []InstructionRecord

	for offset := 0; offset < len(data); {
		ins, err := sbpf.Decode(data[offset:])
		if err != nil {
			return nil, &InstructionDecodeError{Offset: uint64(offset), Opcode: data[offset], Err: err}
		}
		records = append(records, InstructionRecord{Instruction: ins, Offset: uint64(offset)})
		offset += ins.Size()
	}

	return NewText(records, uint64(len(data))), nil
}
