package sbpf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/cilium/ebpf/asm"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var (
	ErrUnknownOpcode        = errors.New("unknown opcode")
	ErrTruncated            = errors.New("truncated instruction")
	ErrUnresolvedIdentifier = errors.New("unresolved identifier")
	ErrOperandMismatch      = errors.New("operands do not match opcode")
)

type OperandKind uint8

const (
	OperandRegister OperandKind = iota + 1
	OperandImmediate
	OperandIdentifier
)

// Operand is one slot of an instruction as written in assembly: a
// register, an integer, or a symbolic label the assembler resolves.
type Operand struct {
	Kind  OperandKind
	Value int64
	Name  string
}

func Register(r uint8) Operand {
	return Operand{Kind: OperandRegister, Value: int64(r)}
}

func Immediate(v int64) Operand {
	return Operand{Kind: OperandImmediate, Value: v}
}

func Identifier(name string) Operand {
	return Operand{Kind: OperandIdentifier, Name: name}
}

// Int returns the integer payload of an immediate operand.
func (o Operand) Int() (int64, bool) {
	if o.Kind != OperandImmediate {
		return 0, false
	}
	return o.Value, true
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandRegister:
		return fmt.Sprintf("r%d", o.Value)
	case OperandImmediate:
		if o.Value < 0 {
			return fmt.Sprintf("-%#x", uint64(-o.Value))
		}
		return fmt.Sprintf("%#x", o.Value)
	case OperandIdentifier:
		return o.Name
	}
	return "?"
}

type field uint8

const (
	fieldDst field = iota
	fieldSrc
	fieldOff
	fieldImm
)

type slot struct {
	kind  OperandKind
	field field
}

var layouts = map[Kind][]slot{
	KindLoadImm64: {{OperandRegister, fieldDst}, {OperandImmediate, fieldImm}},
	KindLoadMem:   {{OperandRegister, fieldDst}, {OperandRegister, fieldSrc}, {OperandImmediate, fieldOff}},
	KindStoreImm:  {{OperandRegister, fieldDst}, {OperandImmediate, fieldOff}, {OperandImmediate, fieldImm}},
	KindStoreReg:  {{OperandRegister, fieldDst}, {OperandImmediate, fieldOff}, {OperandRegister, fieldSrc}},
	KindBinaryImm: {{OperandRegister, fieldDst}, {OperandImmediate, fieldImm}},
	KindBinaryReg: {{OperandRegister, fieldDst}, {OperandRegister, fieldSrc}},
	KindUnary:     {{OperandRegister, fieldDst}},
	KindEndian:    {{OperandRegister, fieldDst}, {OperandImmediate, fieldImm}},
	KindJump:      {{OperandImmediate, fieldOff}},
	KindJumpImm:   {{OperandRegister, fieldDst}, {OperandImmediate, fieldImm}, {OperandImmediate, fieldOff}},
	KindJumpReg:   {{OperandRegister, fieldDst}, {OperandRegister, fieldSrc}, {OperandImmediate, fieldOff}},
	KindCallImm:   {{OperandImmediate, fieldImm}},
	// SBPF v1 callx carries the target register in the immediate.
	KindCallReg: {{OperandRegister, fieldImm}},
	KindExit:    {},
}

type Instruction struct {
	Opcode   Opcode
	Operands []Operand
}

func (ins Instruction) Kind() Kind {
	return ins.Opcode.Kind()
}

func (ins Instruction) Size() int {
	return ins.Opcode.Size()
}

func (ins Instruction) LastOperand() (Operand, bool) {
	if len(ins.Operands) == 0 {
		return Operand{}, false
	}
	return ins.Operands[len(ins.Operands)-1], true
}

// SetLastOperand replaces the final operand in place. It reports false
// for operand-less instructions such as exit.
func (ins *Instruction) SetLastOperand(o Operand) bool {
	if len(ins.Operands) == 0 {
		return false
	}
	ins.Operands[len(ins.Operands)-1] = o
	return true
}

func (ins Instruction) String() string {
	if len(ins.Operands) == 0 {
		return ins.Opcode.String()
	}
	ops := lo.Map(ins.Operands, func(o Operand, _ int) string { return o.String() })
	return ins.Opcode.String() + " " + strings.Join(ops, ", ")
}

// Decode decodes the instruction at the head of data. The opcode byte
// alone decides how many bytes are consumed.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, ErrTruncated
	}

	op := Opcode(data[0])
	if !op.Valid() {
		return Instruction{}, errors.Wrapf(ErrUnknownOpcode, "%#02x", data[0])
	}

	size := op.Size()
	if len(data) < size {
		return Instruction{}, errors.Wrapf(ErrTruncated, "%s needs %d bytes, have %d", op, size, len(data))
	}

	var raw asm.Instruction
	if _, err := raw.Unmarshal(bytes.NewReader(data[:size]), binary.LittleEndian); err != nil {
		return Instruction{}, errors.Wrapf(err, "decoding %s", op)
	}

	layout := layouts[op.Kind()]
	ins := Instruction{Opcode: op, Operands: make([]Operand, 0, len(layout))}
	for _, s := range layout {
		var v int64
		switch s.field {
		case fieldDst:
			v = int64(raw.Dst)
		case fieldSrc:
			v = int64(raw.Src)
		case fieldOff:
			v = int64(raw.Offset)
		case fieldImm:
			v = raw.Constant
		}
		if s.kind == OperandRegister {
			ins.Operands = append(ins.Operands, Register(uint8(v)))
		} else {
			ins.Operands = append(ins.Operands, Immediate(v))
		}
	}

	return ins, nil
}

// Encode writes the wire form of ins. Identifier operands must have been
// replaced by their values beforehand.
func (ins Instruction) Encode(w io.Writer) (int, error) {
	layout, ok := layouts[ins.Kind()]
	if !ok || !ins.Opcode.Valid() {
		return 0, errors.Wrapf(ErrUnknownOpcode, "%#02x", uint8(ins.Opcode))
	}
	if len(layout) != len(ins.Operands) {
		return 0, errors.Wrapf(ErrOperandMismatch, "%s takes %d operands, got %d", ins.Opcode, len(layout), len(ins.Operands))
	}

	raw := asm.Instruction{OpCode: asm.OpCode(ins.Opcode)}
	for i, s := range layout {
		o := ins.Operands[i]
		if o.Kind == OperandIdentifier {
			return 0, errors.Wrapf(ErrUnresolvedIdentifier, "%s operand %d: %s", ins.Opcode, i, o.Name)
		}
		if o.Kind != s.kind {
			return 0, errors.Wrapf(ErrOperandMismatch, "%s operand %d: %s", ins.Opcode, i, o)
		}

		switch s.field {
		case fieldDst, fieldSrc:
			if o.Value < 0 || o.Value > 0xf {
				return 0, errors.Wrapf(ErrOperandMismatch, "%s: no such register %s", ins.Opcode, o)
			}
			if s.field == fieldDst {
				raw.Dst = asm.Register(o.Value)
			} else {
				raw.Src = asm.Register(o.Value)
			}
		case fieldOff:
			if o.Value < math.MinInt16 || o.Value > math.MaxInt16 {
				return 0, errors.Wrapf(ErrOperandMismatch, "%s: offset %d out of range", ins.Opcode, o.Value)
			}
			raw.Offset = int16(o.Value)
		case fieldImm:
			if ins.Opcode != Lddw && (o.Value < math.MinInt32 || o.Value > math.MaxUint32) {
				return 0, errors.Wrapf(ErrOperandMismatch, "%s: immediate %d out of range", ins.Opcode, o.Value)
			}
			raw.Constant = o.Value
		}
	}

	n, err := raw.Marshal(w, binary.LittleEndian)
	return int(n), err
}
