package linker

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ObjectParseError reports input that is not a usable BPF relocatable
// object.
type ObjectParseError struct {
	Err error
}

func (e *ObjectParseError) Error() string {
	return fmt.Sprintf("malformed object: %v", e.Err)
}

func (e *ObjectParseError) Unwrap() error { return e.Err }

type MultipleRodataSectionsError struct {
	Names []string
}

func (e *MultipleRodataSectionsError) Error() string {
	return fmt.Sprintf("multiple rodata sections are not supported: %s", strings.Join(e.Names, ", "))
}

type InstructionDecodeError struct {
	Offset uint64
	Opcode uint8
	Err    error
}

func (e *InstructionDecodeError) Error() string {
	return fmt.Sprintf("failed to decode instruction %#02x at offset %#x: %v", e.Opcode, e.Offset, e.Err)
}

func (e *InstructionDecodeError) Unwrap() error { return e.Err }

type RelocationTargetUnresolvedError struct {
	Offset  uint64
	Address uint64
	Reason  string
}

func (e *RelocationTargetUnresolvedError) Error() string {
	return fmt.Sprintf("relocation at offset %#x (address %#x): %s", e.Offset, e.Address, e.Reason)
}

type RelocationWithoutRodataError struct {
	Count int
}

func (e *RelocationWithoutRodataError) Error() string {
	return fmt.Sprintf("code section has %d relocation(s) but the object has no rodata section", e.Count)
}

type DuplicateRodataAddressError struct {
	Address  uint64
	Existing string
	Name     string
}

func (e *DuplicateRodataAddressError) Error() string {
	return fmt.Sprintf("rodata symbols %q and %q share address %#x", e.Existing, e.Name, e.Address)
}

// CompileError is a single problem found while assembling the resolved
// program.
type CompileError struct {
	Offset uint64
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("offset %#x: %v", e.Offset, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// AssemblyError carries every error the assembler reported, not just the
// first.
type AssemblyError struct {
	Errors []error
}

func newAssemblyError(err error) *AssemblyError {
	if merr, ok := err.(*multierror.Error); ok {
		return &AssemblyError{Errors: merr.WrappedErrors()}
	}
	return &AssemblyError{Errors: []error{err}}
}

func (e *AssemblyError) Error() string {
	lines := make([]string, 0, len(e.Errors)+1)
	lines = append(lines, fmt.Sprintf("failed to build program: %d error(s)", len(e.Errors)))
	for _, err := range e.Errors {
		lines = append(lines, "\t* "+err.Error())
	}
	return strings.Join(lines, "\n")
}

func (e *AssemblyError) Unwrap() []error { return e.Errors }

var (
	ErrUndefinedLabel = errors.New("undefined label")
	ErrLabelOperand   = errors.New("label operands are only allowed in lddw")
	ErrJumpOutOfRange = errors.New("jump target out of range")
	ErrSizeMismatch   = errors.New("size mismatch")
	ErrDuplicateLabel = errors.New("duplicate label")
)
