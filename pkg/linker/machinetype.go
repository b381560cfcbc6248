package linker

import (
	"debug/elf"

	"sbpfld/pkg/utils"
)

type MachineType = uint8

const (
	MachineTypeNone MachineType = iota
	MachineTypeBPF
	MachineTypeSBPF
)

// GetMachineTypeFromContents accepts only 64-bit little-endian objects;
// the VM has no other flavour.
func GetMachineTypeFromContents(contents []byte) MachineType {
	if GetFileType(contents) != FileTypeObject || len(contents) < int(ELFHeaderSize) {
		return MachineTypeNone
	}
	if elf.Class(contents[elf.EI_CLASS]) != elf.ELFCLASS64 ||
		elf.Data(contents[elf.EI_DATA]) != elf.ELFDATA2LSB {
		return MachineTypeNone
	}

	machine, err := utils.Read[uint16](contents[18:])
	if err != nil {
		return MachineTypeNone
	}
	switch elf.Machine(machine) {
	case elf.EM_BPF:
		return MachineTypeBPF
	case EM_SBPF:
		return MachineTypeSBPF
	}

	return MachineTypeNone
}

type MachineTypeStringer struct {
	MachineType
}

func (m MachineTypeStringer) String() string {
	switch m.MachineType {
	case MachineTypeBPF:
		return "bpf"
	case MachineTypeSBPF:
		return "sbpf"
	}

	utils.Assert(m.MachineType == MachineTypeNone)
	return "none"
}
