package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

func Fatal(v any) {
	fmt.Fprintf(os.Stderr, "sbpfld:\n\t\033[0;1;31mfatal\033[0m: %v\n", v)
	os.Exit(1)
}

func MustNo(err error) {
	if err != nil {
		Fatal(err.Error())
	}
}

// Read decodes a little-endian T from the head of data. Input files are
// untrusted, so a short buffer is an error rather than a crash.
func Read[T any](data []byte) (val T, err error) {
	size := binary.Size(val)
	if size < 0 {
		return val, errors.Errorf("type %T has no fixed size", val)
	}
	if len(data) < size {
		return val, errors.Wrapf(io.ErrUnexpectedEOF, "need %d bytes, have %d", size, len(data))
	}

	err = binary.Read(bytes.NewReader(data[:size]), binary.LittleEndian, &val)
	return val, err
}

// Write encodes val little-endian into the head of buf.
func Write[T any](buf []byte, val T) error {
	out := &bytes.Buffer{}
	if err := binary.Write(out, binary.LittleEndian, val); err != nil {
		return errors.Wrapf(err, "encoding %T", val)
	}
	if out.Len() > len(buf) {
		return errors.Wrapf(io.ErrShortBuffer, "%T needs %d bytes, have %d", val, out.Len(), len(buf))
	}
	copy(buf, out.Bytes())
	return nil
}

func Assert(condition bool) {
	if !condition {
		panic("assert failed")
	}
}

func AlignTo(val, align uint64) uint64 {
	if align == 0 {
		return val
	}
	return (val + align - 1) / align * align
}
