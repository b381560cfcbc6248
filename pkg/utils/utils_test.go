package utils

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type pair struct {
	A uint16
	B uint32
}

func TestRead(t *testing.T) {
	v, err := Read[pair]([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0xff})
	require.NoError(t, err)
	require.Equal(t, pair{A: 0x0201, B: 0x06050403}, v)

	_, err = Read[pair]([]byte{0x01, 0x02})
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestWrite(t *testing.T) {
	buf := make([]byte, 8)
	require.NoError(t, Write(buf[1:], pair{A: 0x0201, B: 0x06050403}))
	require.Equal(t, []byte{0, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0}, buf)

	err := Write(buf[:2], pair{})
	require.ErrorIs(t, err, io.ErrShortBuffer)
	require.Equal(t, []byte{0, 0x01}, buf[:2])

	require.Error(t, Write(buf, []int{1}))
}

func TestAlignTo(t *testing.T) {
	require.Equal(t, uint64(0), AlignTo(0, 8))
	require.Equal(t, uint64(8), AlignTo(1, 8))
	require.Equal(t, uint64(16), AlignTo(16, 8))
	require.Equal(t, uint64(5), AlignTo(5, 0))
}
