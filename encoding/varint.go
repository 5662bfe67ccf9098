package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/wavefst/errs"
)

// MaxVarintLen is the maximum encoded size of a 64-bit varint.
const MaxVarintLen = binary.MaxVarintLen64

// AppendUvarint appends the LEB128 encoding of v to dst and returns the
// extended slice.
func AppendUvarint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

// AppendSvarint appends the sign-extended LEB128 encoding of v to dst and
// returns the extended slice.
//
// Unlike zigzag, sign extension preserves the low bit of the value in the
// low bit of the first byte, which the dynamic-alias chain index relies on
// to tell signed entries apart from unsigned ones.
func AppendSvarint(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// Uvarint decodes an unsigned varint from the beginning of buf, returning the
// value and the number of bytes consumed.
//
// Truncated input yields errs.ErrUnexpectedEOF; an encoding longer than
// MaxVarintLen bytes yields errs.ErrCorruptData.
func Uvarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	switch {
	case n > 0:
		return v, n, nil
	case n == 0:
		return 0, 0, fmt.Errorf("%w: truncated varint", errs.ErrUnexpectedEOF)
	default:
		return 0, 0, fmt.Errorf("%w: varint exceeds 64-bit capacity", errs.ErrCorruptData)
	}
}

// Svarint decodes a sign-extended LEB128 varint from the beginning of buf,
// returning the value and the number of bytes consumed.
func Svarint(buf []byte) (int64, int, error) {
	var v int64
	var shift uint
	for i, b := range buf {
		if i >= MaxVarintLen {
			return 0, 0, fmt.Errorf("%w: varint exceeds 64-bit capacity", errs.ErrCorruptData)
		}
		v |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				v |= -1 << shift
			}

			return v, i + 1, nil
		}
	}

	return 0, 0, fmt.Errorf("%w: truncated varint", errs.ErrUnexpectedEOF)
}

// ReadUvarint decodes an unsigned varint from r.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("%w: truncated varint", errs.ErrUnexpectedEOF)
	}
	// binary.ReadUvarint reports overflow through a plain errors.New; fold it
	// into the corrupt-data class.
	if err.Error() == "binary: varint overflows a 64-bit integer" {
		return 0, fmt.Errorf("%w: varint exceeds 64-bit capacity", errs.ErrCorruptData)
	}

	return 0, err
}

// UvarintLen returns the encoded size of v in bytes.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}

	return n
}
