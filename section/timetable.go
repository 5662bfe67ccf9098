package section

import (
	"fmt"

	"github.com/arloliu/wavefst/compress"
	"github.com/arloliu/wavefst/encoding"
	"github.com/arloliu/wavefst/errs"
)

// TimeSection is the encoded time table of a value-change block plus the
// metadata recorded in the block trailer.
type TimeSection struct {
	Payload         []byte
	UncompressedLen uint64
	CompressedLen   uint64
	ItemCount       uint64
}

// EncodeTimeSection serializes block-relative timestamps as a varint delta
// stream, deflating it when useZlib is set and deflation actually saves
// space. The first delta is the first timestamp itself.
func EncodeTimeSection(times []uint64, useZlib bool) (TimeSection, error) {
	data := make([]byte, 0, len(times)*2)
	prev := uint64(0)
	for i, ts := range times {
		if i > 0 && ts < prev {
			return TimeSection{}, fmt.Errorf("%w: timestamps must be non-decreasing",
				errs.ErrInvalidValue)
		}
		data = encoding.AppendUvarint(data, ts-prev)
		prev = ts
	}

	ts := TimeSection{
		UncompressedLen: uint64(len(data)),
		ItemCount:       uint64(len(times)),
	}
	if len(data) == 0 {
		return ts, nil
	}

	if useZlib {
		compressed, err := compress.NewZlibCodec().Compress(data)
		if err != nil {
			return TimeSection{}, err
		}
		if len(compressed) < len(data) {
			ts.Payload = compressed
			ts.CompressedLen = uint64(len(compressed))

			return ts, nil
		}
	}

	ts.Payload = data
	ts.CompressedLen = ts.UncompressedLen

	return ts, nil
}

// DecodeTimeSection expands a time table payload into absolute block-local
// timestamps. The stored compressed length deciding whether the payload is
// deflated is len(data); a mismatch against itemCount is corruption.
func DecodeTimeSection(data []byte, uncompressedLen, itemCount uint64) ([]uint64, error) {
	raw := data
	if uint64(len(data)) != uncompressedLen {
		expanded, err := DecodedLen(uncompressedLen, len(data))
		if err != nil {
			return nil, err
		}
		raw, err = compress.NewZlibCodec().Decompress(data, expanded)
		if err != nil {
			return nil, err
		}
	}

	// Every delta is at least one varint byte.
	if itemCount > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: time section declares %d items in %d bytes",
			errs.ErrCorruptData, itemCount, len(raw))
	}
	timestamps := make([]uint64, itemCount)
	acc := uint64(0)
	offset := 0
	for i := uint64(0); i < itemCount; i++ {
		if offset >= len(raw) {
			return nil, fmt.Errorf("%w: time section item count mismatch", errs.ErrCorruptData)
		}
		delta, n, err := encoding.Uvarint(raw[offset:])
		if err != nil {
			return nil, fmt.Errorf("time delta %d: %w", i, err)
		}
		offset += n
		acc += delta
		timestamps[i] = acc
	}

	return timestamps, nil
}

// AppendTrailer appends the 24-byte trailer that closes a value-change
// block payload.
func (ts TimeSection) AppendTrailer(dst []byte) []byte {
	dst = bigEndian.AppendUint64(dst, ts.UncompressedLen)
	dst = bigEndian.AppendUint64(dst, ts.CompressedLen)

	return bigEndian.AppendUint64(dst, ts.ItemCount)
}

// DecodeTrailer parses the trailing 24 bytes of a value-change block payload.
func DecodeTrailer(tail []byte) (TimeSection, error) {
	if len(tail) != VcTrailerLen {
		return TimeSection{}, fmt.Errorf("%w: trailer is %d bytes, expected %d",
			errs.ErrCorruptData, len(tail), VcTrailerLen)
	}

	return TimeSection{
		UncompressedLen: bigEndian.Uint64(tail[0:8]),
		CompressedLen:   bigEndian.Uint64(tail[8:16]),
		ItemCount:       bigEndian.Uint64(tail[16:24]),
	}, nil
}
