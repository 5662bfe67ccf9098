package encoding

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/wavefst/errs"
)

func TestUvarint_RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 14, 1<<21 - 1, 1 << 42, math.MaxUint64}

	for _, v := range values {
		buf := AppendUvarint(nil, v)
		require.Equal(t, UvarintLen(v), len(buf))

		got, n, err := Uvarint(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestUvarint_Truncated(t *testing.T) {
	buf := AppendUvarint(nil, 1<<42)

	_, _, err := Uvarint(buf[:len(buf)-1])
	require.ErrorIs(t, err, errs.ErrUnexpectedEOF)

	_, _, err = Uvarint(nil)
	require.ErrorIs(t, err, errs.ErrUnexpectedEOF)
}

func TestUvarint_Overflow(t *testing.T) {
	buf := bytes.Repeat([]byte{0xFF}, 10)
	buf = append(buf, 0x01)

	_, _, err := Uvarint(buf)
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestSvarint_RoundTrip(t *testing.T) {
	values := []int64{
		0, 1, -1, 63, 64, -64, -65, 127, 128, -128,
		1 << 20, -(1 << 20), math.MaxInt64, math.MinInt64,
	}

	for _, v := range values {
		buf := AppendSvarint(nil, v)

		got, n, err := Svarint(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestSvarint_Encoding(t *testing.T) {
	// Sign extension keeps small negatives in one byte and preserves the
	// value's low bit in the first byte.
	require.Equal(t, []byte{0x7F}, AppendSvarint(nil, -1))
	require.Equal(t, []byte{0x01}, AppendSvarint(nil, 1))
	require.Equal(t, []byte{0x40}, AppendSvarint(nil, -64))
	require.Equal(t, []byte{0xBF, 0x7F}, AppendSvarint(nil, -65))
	require.Len(t, AppendSvarint(nil, math.MinInt64), 10)
}

func TestSvarint_Truncated(t *testing.T) {
	buf := AppendSvarint(nil, 1<<40)

	_, _, err := Svarint(buf[:2])
	require.ErrorIs(t, err, errs.ErrUnexpectedEOF)

	_, _, err = Svarint(nil)
	require.ErrorIs(t, err, errs.ErrUnexpectedEOF)
}

func TestSvarint_Overflow(t *testing.T) {
	buf := bytes.Repeat([]byte{0xFF}, 11)

	_, _, err := Svarint(buf)
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestReadUvarint(t *testing.T) {
	buf := AppendUvarint(nil, 987654321)

	v, err := ReadUvarint(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, uint64(987654321), v)

	_, err = ReadUvarint(bytes.NewReader(buf[:1]))
	require.ErrorIs(t, err, errs.ErrUnexpectedEOF)

	over := bytes.Repeat([]byte{0xFF}, 10)
	over = append(over, 0x01)
	_, err = ReadUvarint(bytes.NewReader(over))
	require.ErrorIs(t, err, errs.ErrCorruptData)
}
