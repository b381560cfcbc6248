package linker

// ProgramStart is where the VM maps the program image (text and rodata).
const ProgramStart uint64 = 0x1_0000_0000

// ResolvedProgram is everything the assembler needs to emit bytecode. It
// is built once per link and not shared.
type ResolvedProgram struct {
	Instructions []InstructionRecord
	Rodata       []RodataEntry
	TextSize     uint64
	RodataSize   uint64
	// EntryOffset is the .text offset execution starts at.
	EntryOffset uint64
}

// Assembler turns a resolved program into final bytecode. It may report
// several problems at once by returning a *multierror.Error.
type Assembler interface {
	Assemble(p *ResolvedProgram) ([]byte, error)
}

type AssemblerFunc func(p *ResolvedProgram) ([]byte, error)

func (f AssemblerFunc) Assemble(p *ResolvedProgram) ([]byte, error) {
	return f(p)
}
