package linker

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbpfld/pkg/sbpf"
)

func TestLinkerResolveMSG(t *testing.T) {
	p, err := NewLinker(log.NewNopLogger()).Resolve(msgObject().build(t))
	require.NoError(t, err)

	require.Len(t, p.Instructions, 2)
	last, ok := p.Instructions[1].Instruction.LastOperand()
	require.True(t, ok)
	assert.Equal(t, sbpf.Identifier("MSG"), last)

	require.Len(t, p.Rodata, 1)
	assert.Equal(t, "MSG", p.Rodata[0].Name)
	assert.Equal(t, uint64(0), p.Rodata[0].Offset)
	assert.Equal(t, uint64(4), p.Rodata[0].Size())
	assert.Equal(t, uint64(16), p.TextSize)
	assert.Equal(t, uint64(4), p.RodataSize)
}

func lddwObject() testObject {
	return testObject{
		text: concat(
			insn(sbpf.Mov64Imm, 0, 0, 0, 0),
			lddw(1, 0x10),
			insn(sbpf.Mov64Imm, 2, 0, 0, 4),
			insn(sbpf.Call, 0, 0, 0, -1),
			insn(sbpf.Exit, 0, 0, 0, 0),
		),
		rodata: append(make([]byte, 0x10), "hey!"...),
		syms: []testSym{
			{name: "MSG", section: inRodata, value: 0x10, size: 4, typ: elf.STT_OBJECT},
			{name: EntrypointSymbol, section: inText, value: 0, typ: elf.STT_FUNC},
			{name: "sol_log_", typ: elf.STT_NOTYPE},
		},
		relocs: []testReloc{
			{offset: 8, sym: 1, typ: R_BPF_64_64},
			{offset: 32, sym: 3, typ: R_BPF_64_32},
		},
	}
}

func TestLinkerLink(t *testing.T) {
	out, err := NewLinker(nil).Link(lddwObject().build(t))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, elf.EM_BPF, f.Machine)
	assert.Equal(t, elf.ET_DYN, f.Type)

	text := f.Section(".text")
	require.NotNil(t, text)
	rodata := f.Section(".rodata")
	require.NotNil(t, rodata)
	assert.Equal(t, text.Addr, f.Entry)

	data, err := rodata.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("hey!"), data)

	code, err := text.Data()
	require.NoError(t, err)
	decoded, err := DecodeText(code)
	require.NoError(t, err)
	require.Len(t, decoded.Records, 5)
	assert.Equal(t, sbpf.Lddw, decoded.Records[1].Instruction.Opcode)
	addr, _ := decoded.Records[1].Instruction.LastOperand()
	assert.Equal(t, sbpf.Immediate(int64(ProgramStart+rodata.Addr)), addr)
	call, _ := decoded.Records[3].Instruction.LastOperand()
	assert.Equal(t, sbpf.Immediate(-1), call)
}

func TestLinkerLinkAssemblyError(t *testing.T) {
	// mov64 cannot carry a 64-bit rodata address.
	_, err := NewLinker(nil).Link(msgObject().build(t))

	var aerr *AssemblyError
	require.ErrorAs(t, err, &aerr)
	require.Len(t, aerr.Errors, 1)
	assert.ErrorIs(t, err, ErrLabelOperand)
	assert.Contains(t, err.Error(), "1 error(s)")
}

func TestLinkerAssemblerBoundary(t *testing.T) {
	var got *ResolvedProgram
	l := NewLinker(nil)
	l.Assembler = AssemblerFunc(func(p *ResolvedProgram) ([]byte, error) {
		got = p
		return []byte("bytecode"), nil
	})

	out, err := l.Link(msgObject().build(t))
	require.NoError(t, err)
	assert.Equal(t, []byte("bytecode"), out)
	require.NotNil(t, got)
	assert.Equal(t, uint64(16), got.TextSize)
}

func TestLinkerLinkFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "program.o")
	require.NoError(t, os.WriteFile(input, lddwObject().build(t), 0o644))

	out, err := NewLinker(nil).LinkFile(input)
	require.NoError(t, err)
	assert.Equal(t, FileTypeExecutable, GetFileType(out))

	_, err = NewLinker(nil).LinkFile(filepath.Join(dir, "missing.o"))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(input, []byte("garbage"), 0o644))
	_, err = NewLinker(nil).LinkFile(input)
	var perr *ObjectParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, err.Error(), input)
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "program.so"), DefaultOutputPath(filepath.Join("out", "program.o")))
	assert.Equal(t, "program.so", DefaultOutputPath("program"))
}

func TestZeroLinker(t *testing.T) {
	var l Linker
	out, err := l.Link(lddwObject().build(t))
	require.NoError(t, err)
	assert.Equal(t, FileTypeExecutable, GetFileType(out))

	p, err := (&Linker{}).Resolve(msgObject().build(t))
	require.NoError(t, err)
	assert.Len(t, p.Instructions, 2)
}
