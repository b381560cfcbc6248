package linker

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbpfld/pkg/sbpf"
)

func TestDecodeText(t *testing.T) {
	data := concat(
		lddw(1, 0x1_0000_0010),
		insn(sbpf.Mov64Imm, 2, 0, 0, 3),
		insn(sbpf.JneImm, 2, 0, -2, 0),
		lddw(3, 0x20),
		insn(sbpf.Exit, 0, 0, 0, 0),
	)

	text, err := DecodeText(data)
	require.NoError(t, err)
	require.Len(t, text.Records, 5)

	wantOffsets := []uint64{0, 16, 24, 32, 48}
	wantOps := []sbpf.Opcode{sbpf.Lddw, sbpf.Mov64Imm, sbpf.JneImm, sbpf.Lddw, sbpf.Exit}
	for i, rec := range text.Records {
		assert.Equal(t, wantOffsets[i], rec.Offset)
		assert.Equal(t, wantOps[i], rec.Instruction.Opcode)

		pos, ok := text.At(rec.Offset)
		require.True(t, ok)
		assert.Equal(t, i, pos)
	}
	assert.Equal(t, uint64(len(data)), text.Size)

	// The second half of a lddw is not an instruction boundary.
	_, ok := text.At(8)
	assert.False(t, ok)

	last, ok := text.Records[0].Instruction.LastOperand()
	require.True(t, ok)
	assert.Equal(t, sbpf.Immediate(0x1_0000_0010), last)
}

// Offsets start at 0, advance by the size of each record and end exactly
// at the section size.
func TestDecodeTextTotality(t *testing.T) {
	for _, tc := range [][]byte{
		nil,
		insn(sbpf.Exit, 0, 0, 0, 0),
		concat(lddw(0, 1), lddw(1, 2), lddw(2, 3)),
		concat(insn(sbpf.Ldxw, 1, 2, 4, 0), lddw(0, 1), insn(sbpf.Call, 0, 0, 0, -1), insn(sbpf.Exit, 0, 0, 0, 0)),
	} {
		text, err := DecodeText(tc)
		require.NoError(t, err)

		next := uint64(0)
		for _, rec := range text.Records {
			assert.Equal(t, next, rec.Offset)
			next += uint64(rec.Instruction.Size())
		}
		assert.Equal(t, uint64(len(tc)), next)
	}
}

func TestDecodeTextErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		data   []byte
		offset uint64
		opcode uint8
		err    error
	}{
		{
			name:   "truncated lddw",
			data:   concat(insn(sbpf.Exit, 0, 0, 0, 0), lddw(1, 5)[:8]),
			offset: 8,
			opcode: uint8(sbpf.Lddw),
			err:    sbpf.ErrTruncated,
		},
		{
			name:   "trailing bytes",
			data:   concat(insn(sbpf.Exit, 0, 0, 0, 0), []byte{0x95, 0, 0}),
			offset: 8,
			opcode: uint8(sbpf.Exit),
			err:    sbpf.ErrTruncated,
		},
		{
			name:   "unknown opcode",
			data:   concat(insn(sbpf.Exit, 0, 0, 0, 0), insn(sbpf.Exit, 0, 0, 0, 0), []byte{0xff, 0, 0, 0, 0, 0, 0, 0}),
			offset: 16,
			opcode: 0xff,
			err:    sbpf.ErrUnknownOpcode,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeText(tc.data)
			var derr *InstructionDecodeError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tc.offset, derr.Offset)
			assert.Equal(t, tc.opcode, derr.Opcode)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

// Decoding, re-encoding and decoding again gives the same instructions.
func TestDecodeTextIdempotent(t *testing.T) {
	data := concat(
		lddw(1, 0xdeadbeef_00000010),
		insn(sbpf.Ldxw, 2, 1, 4, 0),
		insn(sbpf.JneImm, 2, 0, 1, 7),
		insn(sbpf.Mov64Imm, 0, 0, 0, -1),
		insn(sbpf.Exit, 0, 0, 0, 0),
	)

	first, err := DecodeText(data)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	for _, rec := range first.Records {
		n, err := rec.Instruction.Encode(buf)
		require.NoError(t, err)
		assert.Equal(t, rec.Instruction.Size(), n)
	}
	encoded := buf.Bytes()
	assert.Equal(t, data, encoded)

	second, err := DecodeText(encoded)
	require.NoError(t, err)
	assert.Equal(t, first.Records, second.Records)
}
