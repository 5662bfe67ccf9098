package section

import (
	"fmt"
	"math"

	"github.com/arloliu/wavefst/compress"
	"github.com/arloliu/wavefst/encoding"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

// Chain record markers pack the time-index delta together with shape flags
// in a single varint:
//
//	single bit '0'/'1':  delta<<2 | bit<<1
//	single bit special:  delta<<4 | index<<1 | 1   (index into SpecialBitChars)
//	vector, packed:      delta<<1                  followed by packed bytes
//	vector, ASCII:       delta<<1 | 1              followed by width chars
//	real:                delta<<1 | 1              followed by 8 bytes LE
//	variable length:     delta<<1                  followed by varint length + bytes

// AppendBitChange appends a single-bit change record. ch must be '0', '1' or
// one of the special states in format.SpecialBitChars.
func AppendBitChange(dst []byte, delta uint64, ch byte) ([]byte, error) {
	switch ch {
	case '0':
		return encoding.AppendUvarint(dst, delta<<2), nil
	case '1':
		return encoding.AppendUvarint(dst, delta<<2|0b10), nil
	default:
		idx, ok := format.SpecialBitIndex(ch)
		if !ok {
			return nil, fmt.Errorf("%w: bit state %q", errs.ErrInvalidValue, ch)
		}

		return encoding.AppendUvarint(dst, delta<<4|uint64(idx)<<1|1), nil
	}
}

// AppendPackedChange appends a fixed-width vector change in packed form.
// packed must hold format.PackedLen(width) bytes.
func AppendPackedChange(dst []byte, delta uint64, packed []byte) []byte {
	dst = encoding.AppendUvarint(dst, delta<<1)

	return append(dst, packed...)
}

// AppendVectorChange appends a fixed-width vector change in ASCII form.
func AppendVectorChange(dst []byte, delta uint64, chars []byte) []byte {
	dst = encoding.AppendUvarint(dst, delta<<1|1)

	return append(dst, chars...)
}

// AppendRealChange appends a real-valued change as 8 little-endian bytes.
func AppendRealChange(dst []byte, delta uint64, value float64) []byte {
	dst = encoding.AppendUvarint(dst, delta<<1|1)

	return littleEndian.AppendUint64(dst, math.Float64bits(value))
}

// AppendVarLenChange appends a variable-length change record.
func AppendVarLenChange(dst []byte, delta uint64, data []byte) []byte {
	dst = encoding.AppendUvarint(dst, delta<<1)
	dst = encoding.AppendUvarint(dst, uint64(len(data)))

	return append(dst, data...)
}

// EncodeChainPayload compresses one handle's chain bytes according to the
// pack type.
//
// The returned stored length is the raw byte count when compression was
// applied and zero when the chain is stored raw, mirroring the per-chain
// length prefix in the block.
func EncodeChainPayload(data []byte, packType format.Compression) (uint64, []byte, error) {
	if len(data) == 0 || packType == format.CompressionNone {
		return 0, data, nil
	}

	codec, err := compress.GetCodec(packType)
	if err != nil {
		return 0, nil, err
	}
	compressed, err := codec.Compress(data)
	if err != nil {
		return 0, nil, err
	}
	if len(compressed) < len(data) {
		return uint64(len(data)), compressed, nil
	}

	return 0, data, nil
}

// AppendChain appends the length prefix and payload of one chain to the
// chain buffer under construction.
func AppendChain(dst []byte, storedLen uint64, payload []byte) []byte {
	dst = encoding.AppendUvarint(dst, storedLen)

	return append(dst, payload...)
}

// DecodeChainData expands one chain slice from the chain buffer: a varint
// stored length (zero meaning raw) followed by the payload.
func DecodeChainData(slice []byte, packType format.Compression) ([]byte, error) {
	storedLen, n, err := encoding.Uvarint(slice)
	if err != nil {
		return nil, fmt.Errorf("chain length prefix: %w", err)
	}
	payload := slice[n:]
	if storedLen == 0 {
		return payload, nil
	}

	expanded, err := DecodedLen(storedLen, len(payload))
	if err != nil {
		return nil, err
	}
	codec, err := compress.GetCodec(packType)
	if err != nil {
		return nil, err
	}

	return codec.Decompress(payload, expanded)
}

// ChainCursor walks one handle's decoded chain, yielding time-index deltas
// and values.
//
// The schedule-driven reader first calls NextDelta to learn when the next
// change fires, then ReadValue once that time index is reached.
type ChainCursor struct {
	data []byte
	geom format.Geometry
	pos  int

	timeIndex int
	marker    uint64
	hasMarker bool
}

// NewChainCursor creates a cursor over decoded (uncompressed) chain bytes.
func NewChainCursor(data []byte, geom format.Geometry) *ChainCursor {
	return &ChainCursor{data: data, geom: geom}
}

// NextDelta decodes the next record's marker and returns its time-index
// delta. ok is false once the chain is exhausted.
func (c *ChainCursor) NextDelta() (delta uint64, ok bool, err error) {
	if c.hasMarker {
		return c.deltaFromMarker(c.marker), true, nil
	}
	if c.pos >= len(c.data) {
		return 0, false, nil
	}

	marker, n, err := encoding.Uvarint(c.data[c.pos:])
	if err != nil {
		return 0, false, fmt.Errorf("chain marker: %w", err)
	}
	c.pos += n
	c.marker = marker
	c.hasMarker = true

	return c.deltaFromMarker(marker), true, nil
}

// TimeIndex returns the absolute time index of the record most recently
// consumed by ReadValue.
func (c *ChainCursor) TimeIndex() int {
	return c.timeIndex
}

// ReadValue consumes the pending record's payload and returns its value.
// expectedTimeIndex guards the schedule: a mismatch means the chain and the
// block's time table disagree.
func (c *ChainCursor) ReadValue(expectedTimeIndex int) (format.SignalValue, error) {
	if !c.hasMarker {
		return format.SignalValue{}, fmt.Errorf("%w: ReadValue without pending marker", errs.ErrInvalidState)
	}
	marker := c.marker
	c.hasMarker = false

	c.timeIndex += int(c.deltaFromMarker(marker))
	if c.timeIndex != expectedTimeIndex {
		return format.SignalValue{}, fmt.Errorf("%w: chain scheduling mismatch", errs.ErrCorruptData)
	}

	switch {
	case c.geom.Kind == format.GeomFixed && c.geom.Width == 1:
		if marker&1 == 0 {
			return format.BitValue('0' + byte(marker>>1&1)), nil
		}
		idx := int(marker >> 1 & 7)

		return format.BitValue(format.SpecialBitChars[idx]), nil

	case c.geom.Kind == format.GeomFixed:
		width := int(c.geom.Width)
		if marker&1 == 0 {
			packed, err := c.take(format.PackedLen(c.geom.Width))
			if err != nil {
				return format.SignalValue{}, err
			}

			return format.PackedValue(c.geom.Width, packed), nil
		}
		chars, err := c.take(width)
		if err != nil {
			return format.SignalValue{}, err
		}

		return format.VectorValue(chars), nil

	case c.geom.Kind == format.GeomReal:
		if marker&1 == 0 {
			// Degenerate single-byte form some producers emit for reals.
			packed, err := c.take(1)
			if err != nil {
				return format.SignalValue{}, err
			}

			return format.PackedValue(8, packed), nil
		}
		raw, err := c.take(8)
		if err != nil {
			return format.SignalValue{}, err
		}

		return format.RealValue(math.Float64frombits(littleEndian.Uint64(raw))), nil

	default: // variable length
		length, n, err := encoding.Uvarint(c.data[c.pos:])
		if err != nil {
			return format.SignalValue{}, fmt.Errorf("variable-length payload size: %w", err)
		}
		c.pos += n
		data, err := c.take(int(length))
		if err != nil {
			return format.SignalValue{}, err
		}

		return format.BytesValue(data), nil
	}
}

func (c *ChainCursor) take(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, fmt.Errorf("%w: chain record payload exceeds chain bounds", errs.ErrCorruptData)
	}
	out := c.data[c.pos : c.pos+n]
	c.pos += n

	return out, nil
}

func (c *ChainCursor) deltaFromMarker(marker uint64) uint64 {
	if c.geom.Kind == format.GeomFixed && c.geom.Width == 1 {
		shift := 2 << (marker & 1)

		return marker >> shift
	}

	return marker >> 1
}
