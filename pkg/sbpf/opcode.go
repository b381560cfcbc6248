// Package sbpf describes the SBPF instruction set: the opcode table, a
// structured instruction form with typed operands, and the 8/16-byte wire
// encoding shared with eBPF.
package sbpf

import (
	"fmt"

	"github.com/cilium/ebpf/asm"
)

// InstructionSize is the width of one instruction slot. Only lddw spans
// two slots.
const InstructionSize = asm.InstructionSize

type Opcode uint8

// Kind groups opcodes that share an operand layout.
type Kind uint8

const (
	KindInvalid   Kind = iota
	KindLoadImm64      // lddw dst, imm64
	KindLoadMem        // ldx dst, [src+off]
	KindStoreImm       // st [dst+off], imm
	KindStoreReg       // stx [dst+off], src
	KindBinaryImm      // alu dst, imm
	KindBinaryReg      // alu dst, src
	KindUnary          // neg dst
	KindEndian         // le/be dst, width
	KindJump           // ja off
	KindJumpImm        // jcc dst, imm, off
	KindJumpReg        // jcc dst, src, off
	KindCallImm        // call imm
	KindCallReg        // callx reg
	KindExit           // exit
)

const (
	Lddw  Opcode = 0x18
	Ldxb  Opcode = 0x71
	Ldxh  Opcode = 0x69
	Ldxw  Opcode = 0x61
	Ldxdw Opcode = 0x79
	Stb   Opcode = 0x72
	Sth   Opcode = 0x6a
	Stw   Opcode = 0x62
	Stdw  Opcode = 0x7a
	Stxb  Opcode = 0x73
	Stxh  Opcode = 0x6b
	Stxw  Opcode = 0x63
	Stxdw Opcode = 0x7b

	Add32Imm  Opcode = 0x04
	Add32Reg  Opcode = 0x0c
	Sub32Imm  Opcode = 0x14
	Sub32Reg  Opcode = 0x1c
	Mul32Imm  Opcode = 0x24
	Mul32Reg  Opcode = 0x2c
	Div32Imm  Opcode = 0x34
	Div32Reg  Opcode = 0x3c
	Or32Imm   Opcode = 0x44
	Or32Reg   Opcode = 0x4c
	And32Imm  Opcode = 0x54
	And32Reg  Opcode = 0x5c
	Lsh32Imm  Opcode = 0x64
	Lsh32Reg  Opcode = 0x6c
	Rsh32Imm  Opcode = 0x74
	Rsh32Reg  Opcode = 0x7c
	Neg32     Opcode = 0x84
	Mod32Imm  Opcode = 0x94
	Mod32Reg  Opcode = 0x9c
	Xor32Imm  Opcode = 0xa4
	Xor32Reg  Opcode = 0xac
	Mov32Imm  Opcode = 0xb4
	Mov32Reg  Opcode = 0xbc
	Arsh32Imm Opcode = 0xc4
	Arsh32Reg Opcode = 0xcc
	Le        Opcode = 0xd4
	Be        Opcode = 0xdc

	Add64Imm  Opcode = 0x07
	Add64Reg  Opcode = 0x0f
	Sub64Imm  Opcode = 0x17
	Sub64Reg  Opcode = 0x1f
	Mul64Imm  Opcode = 0x27
	Mul64Reg  Opcode = 0x2f
	Div64Imm  Opcode = 0x37
	Div64Reg  Opcode = 0x3f
	Or64Imm   Opcode = 0x47
	Or64Reg   Opcode = 0x4f
	And64Imm  Opcode = 0x57
	And64Reg  Opcode = 0x5f
	Lsh64Imm  Opcode = 0x67
	Lsh64Reg  Opcode = 0x6f
	Rsh64Imm  Opcode = 0x77
	Rsh64Reg  Opcode = 0x7f
	Neg64     Opcode = 0x87
	Mod64Imm  Opcode = 0x97
	Mod64Reg  Opcode = 0x9f
	Xor64Imm  Opcode = 0xa7
	Xor64Reg  Opcode = 0xaf
	Mov64Imm  Opcode = 0xb7
	Mov64Reg  Opcode = 0xbf
	Arsh64Imm Opcode = 0xc7
	Arsh64Reg Opcode = 0xcf
	Hor64Imm  Opcode = 0xf7

	// Product/quotient/remainder class introduced with SBPF v2.
	Uhmul64Imm Opcode = 0x36
	Uhmul64Reg Opcode = 0x3e
	Udiv32Imm  Opcode = 0x46
	Udiv32Reg  Opcode = 0x4e
	Udiv64Imm  Opcode = 0x56
	Udiv64Reg  Opcode = 0x5e
	Urem32Imm  Opcode = 0x66
	Urem32Reg  Opcode = 0x6e
	Urem64Imm  Opcode = 0x76
	Urem64Reg  Opcode = 0x7e
	Lmul32Imm  Opcode = 0x86
	Lmul32Reg  Opcode = 0x8e
	Lmul64Imm  Opcode = 0x96
	Lmul64Reg  Opcode = 0x9e
	Shmul64Imm Opcode = 0xb6
	Shmul64Reg Opcode = 0xbe
	Sdiv32Imm  Opcode = 0xc6
	Sdiv32Reg  Opcode = 0xce
	Sdiv64Imm  Opcode = 0xd6
	Sdiv64Reg  Opcode = 0xde
	Srem32Imm  Opcode = 0xe6
	Srem32Reg  Opcode = 0xee
	Srem64Imm  Opcode = 0xf6
	Srem64Reg  Opcode = 0xfe

	Ja      Opcode = 0x05
	JeqImm  Opcode = 0x15
	JeqReg  Opcode = 0x1d
	JgtImm  Opcode = 0x25
	JgtReg  Opcode = 0x2d
	JgeImm  Opcode = 0x35
	JgeReg  Opcode = 0x3d
	JsetImm Opcode = 0x45
	JsetReg Opcode = 0x4d
	JneImm  Opcode = 0x55
	JneReg  Opcode = 0x5d
	JsgtImm Opcode = 0x65
	JsgtReg Opcode = 0x6d
	JsgeImm Opcode = 0x75
	JsgeReg Opcode = 0x7d
	JltImm  Opcode = 0xa5
	JltReg  Opcode = 0xad
	JleImm  Opcode = 0xb5
	JleReg  Opcode = 0xbd
	JsltImm Opcode = 0xc5
	JsltReg Opcode = 0xcd
	JsleImm Opcode = 0xd5
	JsleReg Opcode = 0xdd
	Call    Opcode = 0x85
	Callx   Opcode = 0x8d
	Exit    Opcode = 0x95
)

type opcodeInfo struct {
	name string
	kind Kind
}

var opcodes = map[Opcode]opcodeInfo{
	Lddw:  {"lddw", KindLoadImm64},
	Ldxb:  {"ldxb", KindLoadMem},
	Ldxh:  {"ldxh", KindLoadMem},
	Ldxw:  {"ldxw", KindLoadMem},
	Ldxdw: {"ldxdw", KindLoadMem},
	Stb:   {"stb", KindStoreImm},
	Sth:   {"sth", KindStoreImm},
	Stw:   {"stw", KindStoreImm},
	Stdw:  {"stdw", KindStoreImm},
	Stxb:  {"stxb", KindStoreReg},
	Stxh:  {"stxh", KindStoreReg},
	Stxw:  {"stxw", KindStoreReg},
	Stxdw: {"stxdw", KindStoreReg},

	Add32Imm:  {"add32", KindBinaryImm},
	Add32Reg:  {"add32", KindBinaryReg},
	Sub32Imm:  {"sub32", KindBinaryImm},
	Sub32Reg:  {"sub32", KindBinaryReg},
	Mul32Imm:  {"mul32", KindBinaryImm},
	Mul32Reg:  {"mul32", KindBinaryReg},
	Div32Imm:  {"div32", KindBinaryImm},
	Div32Reg:  {"div32", KindBinaryReg},
	Or32Imm:   {"or32", KindBinaryImm},
	Or32Reg:   {"or32", KindBinaryReg},
	And32Imm:  {"and32", KindBinaryImm},
	And32Reg:  {"and32", KindBinaryReg},
	Lsh32Imm:  {"lsh32", KindBinaryImm},
	Lsh32Reg:  {"lsh32", KindBinaryReg},
	Rsh32Imm:  {"rsh32", KindBinaryImm},
	Rsh32Reg:  {"rsh32", KindBinaryReg},
	Neg32:     {"neg32", KindUnary},
	Mod32Imm:  {"mod32", KindBinaryImm},
	Mod32Reg:  {"mod32", KindBinaryReg},
	Xor32Imm:  {"xor32", KindBinaryImm},
	Xor32Reg:  {"xor32", KindBinaryReg},
	Mov32Imm:  {"mov32", KindBinaryImm},
	Mov32Reg:  {"mov32", KindBinaryReg},
	Arsh32Imm: {"arsh32", KindBinaryImm},
	Arsh32Reg: {"arsh32", KindBinaryReg},
	Le:        {"le", KindEndian},
	Be:        {"be", KindEndian},

	Add64Imm:  {"add64", KindBinaryImm},
	Add64Reg:  {"add64", KindBinaryReg},
	Sub64Imm:  {"sub64", KindBinaryImm},
	Sub64Reg:  {"sub64", KindBinaryReg},
	Mul64Imm:  {"mul64", KindBinaryImm},
	Mul64Reg:  {"mul64", KindBinaryReg},
	Div64Imm:  {"div64", KindBinaryImm},
	Div64Reg:  {"div64", KindBinaryReg},
	Or64Imm:   {"or64", KindBinaryImm},
	Or64Reg:   {"or64", KindBinaryReg},
	And64Imm:  {"and64", KindBinaryImm},
	And64Reg:  {"and64", KindBinaryReg},
	Lsh64Imm:  {"lsh64", KindBinaryImm},
	Lsh64Reg:  {"lsh64", KindBinaryReg},
	Rsh64Imm:  {"rsh64", KindBinaryImm},
	Rsh64Reg:  {"rsh64", KindBinaryReg},
	Neg64:     {"neg64", KindUnary},
	Mod64Imm:  {"mod64", KindBinaryImm},
	Mod64Reg:  {"mod64", KindBinaryReg},
	Xor64Imm:  {"xor64", KindBinaryImm},
	Xor64Reg:  {"xor64", KindBinaryReg},
	Mov64Imm:  {"mov64", KindBinaryImm},
	Mov64Reg:  {"mov64", KindBinaryReg},
	Arsh64Imm: {"arsh64", KindBinaryImm},
	Arsh64Reg: {"arsh64", KindBinaryReg},
	Hor64Imm:  {"hor64", KindBinaryImm},

	Uhmul64Imm: {"uhmul64", KindBinaryImm},
	Uhmul64Reg: {"uhmul64", KindBinaryReg},
	Udiv32Imm:  {"udiv32", KindBinaryImm},
	Udiv32Reg:  {"udiv32", KindBinaryReg},
	Udiv64Imm:  {"udiv64", KindBinaryImm},
	Udiv64Reg:  {"udiv64", KindBinaryReg},
	Urem32Imm:  {"urem32", KindBinaryImm},
	Urem32Reg:  {"urem32", KindBinaryReg},
	Urem64Imm:  {"urem64", KindBinaryImm},
	Urem64Reg:  {"urem64", KindBinaryReg},
	Lmul32Imm:  {"lmul32", KindBinaryImm},
	Lmul32Reg:  {"lmul32", KindBinaryReg},
	Lmul64Imm:  {"lmul64", KindBinaryImm},
	Lmul64Reg:  {"lmul64", KindBinaryReg},
	Shmul64Imm: {"shmul64", KindBinaryImm},
	Shmul64Reg: {"shmul64", KindBinaryReg},
	Sdiv32Imm:  {"sdiv32", KindBinaryImm},
	Sdiv32Reg:  {"sdiv32", KindBinaryReg},
	Sdiv64Imm:  {"sdiv64", KindBinaryImm},
	Sdiv64Reg:  {"sdiv64", KindBinaryReg},
	Srem32Imm:  {"srem32", KindBinaryImm},
	Srem32Reg:  {"srem32", KindBinaryReg},
	Srem64Imm:  {"srem64", KindBinaryImm},
	Srem64Reg:  {"srem64", KindBinaryReg},

	Ja:      {"ja", KindJump},
	JeqImm:  {"jeq", KindJumpImm},
	JeqReg:  {"jeq", KindJumpReg},
	JgtImm:  {"jgt", KindJumpImm},
	JgtReg:  {"jgt", KindJumpReg},
	JgeImm:  {"jge", KindJumpImm},
	JgeReg:  {"jge", KindJumpReg},
	JsetImm: {"jset", KindJumpImm},
	JsetReg: {"jset", KindJumpReg},
	JneImm:  {"jne", KindJumpImm},
	JneReg:  {"jne", KindJumpReg},
	JsgtImm: {"jsgt", KindJumpImm},
	JsgtReg: {"jsgt", KindJumpReg},
	JsgeImm: {"jsge", KindJumpImm},
	JsgeReg: {"jsge", KindJumpReg},
	JltImm:  {"jlt", KindJumpImm},
	JltReg:  {"jlt", KindJumpReg},
	JleImm:  {"jle", KindJumpImm},
	JleReg:  {"jle", KindJumpReg},
	JsltImm: {"jslt", KindJumpImm},
	JsltReg: {"jslt", KindJumpReg},
	JsleImm: {"jsle", KindJumpImm},
	JsleReg: {"jsle", KindJumpReg},
	Call:    {"call", KindCallImm},
	Callx:   {"callx", KindCallReg},
	Exit:    {"exit", KindExit},
}

func (op Opcode) Valid() bool {
	_, ok := opcodes[op]
	return ok
}

func (op Opcode) Kind() Kind {
	return opcodes[op].kind
}

// Size is the encoded length in bytes, decided by the opcode alone.
func (op Opcode) Size() int {
	if asm.OpCode(op).IsDWordLoad() {
		return 2 * InstructionSize
	}
	return InstructionSize
}

func (op Opcode) String() string {
	if info, ok := opcodes[op]; ok {
		return info.name
	}
	return fmt.Sprintf("op(%#02x)", uint8(op))
}

// IsJump reports whether the last operand is a pc-relative slot offset.
func (k Kind) IsJump() bool {
	return k == KindJump || k == KindJumpImm || k == KindJumpReg
}
