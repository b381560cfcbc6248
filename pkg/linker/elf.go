package linker

import (
	"bytes"
	"debug/elf"
	"strconv"
	"unsafe"
)

// EM_SBPF is the machine number newer SBPF toolchains stamp on objects.
const EM_SBPF elf.Machine = 263

const PageSize = 4096

type Header64 struct {
	Ident     [16]byte /* File identification. */
	Type      uint16   /* File type. */
	Machine   uint16   /* Machine architecture. */
	Version   uint32   /* ELF format version. */
	Entry     uint64   /* Entry point. */
	Phoff     uint64   /* Program header file offset. */
	Shoff     uint64   /* Section header file offset. */
	Flags     uint32   /* Architecture-specific flags. */
	Ehsize    uint16   /* Size of ELF header in bytes. */
	Phentsize uint16   /* Size of program header entry. */
	Phnum     uint16   /* Number of program header entries. */
	Shentsize uint16   /* Size of section header entry. */
	Shnum     uint16   /* Number of section header entries. */
	Shstrndx  uint16   /* Section name strings section. */
}

type SectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

type ProgramHeader struct {
	Type     uint32
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

type Sym64 struct {
	Name  uint32 /* String table index of name. */
	Info  uint8  /* Type and binding information. */
	Other uint8  /* Reserved (not used). */
	Shndx uint16 /* Section index of symbol. */
	Value uint64 /* Symbol value. */
	Size  uint64 /* Size of associated object. */
}

type Rel64 struct {
	Off  uint64
	Info uint64
}

type Rela64 struct {
	Off    uint64
	Info   uint64
	Addend int64
}

const ELFHeaderSize = unsafe.Sizeof(Header64{})
const SectionHeaderSize = unsafe.Sizeof(SectionHeader{})
const ProgramHeaderSize = unsafe.Sizeof(ProgramHeader{})
const SymbolSize = unsafe.Sizeof(Sym64{})
const RelSize = unsafe.Sizeof(Rel64{})
const RelaSize = unsafe.Sizeof(Rela64{})

var elfMagic = []byte("\177ELF")

func CheckMagic(contents []byte) bool {
	return bytes.HasPrefix(contents, elfMagic)
}

func WriteMagic(contents []byte) {
	copy(contents, elfMagic)
}

// GetNameFromTable reads a NUL-terminated name; out-of-range offsets
// yield an empty name.
func GetNameFromTable(strTable []byte, offset uint32) string {
	if uint64(offset) >= uint64(len(strTable)) {
		return ""
	}
	length := bytes.IndexByte(strTable[offset:], 0)
	if length < 0 {
		length = len(strTable) - int(offset)
	}
	return string(strTable[offset : int(offset)+length])
}

func writeString(buf []byte, str string) uint64 {
	copy(buf, str)
	buf[len(str)] = 0
	return uint64(len(str)) + 1
}

// R_BPF is a BPF relocation type. debug/elf has no table for it.
type R_BPF uint32

const (
	R_BPF_NONE        R_BPF = 0
	R_BPF_64_64       R_BPF = 1
	R_BPF_64_ABS64    R_BPF = 2
	R_BPF_64_ABS32    R_BPF = 3
	R_BPF_64_NODYLD32 R_BPF = 4
	R_BPF_64_32       R_BPF = 10
)

var rBPFNames = map[R_BPF]string{
	R_BPF_NONE:        "R_BPF_NONE",
	R_BPF_64_64:       "R_BPF_64_64",
	R_BPF_64_ABS64:    "R_BPF_64_ABS64",
	R_BPF_64_ABS32:    "R_BPF_64_ABS32",
	R_BPF_64_NODYLD32: "R_BPF_64_NODYLD32",
	R_BPF_64_32:       "R_BPF_64_32",
}

func (r R_BPF) String() string {
	if name, ok := rBPFNames[r]; ok {
		return name
	}
	return "R_BPF(" + strconv.FormatUint(uint64(r), 10) + ")"
}
