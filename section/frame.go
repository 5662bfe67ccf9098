package section

import (
	"fmt"
	"math"

	"github.com/arloliu/wavefst/compress"
	"github.com/arloliu/wavefst/encoding"
	"github.com/arloliu/wavefst/endian"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

// Real-valued payloads are the one little-endian field in the format.
var littleEndian = endian.GetLittleEndianEngine()

// FrameEncoding carries the serialized initial-value frame plus the lengths
// recorded in the value-change block header.
type FrameEncoding struct {
	Payload         []byte
	UncompressedLen uint64
	CompressedLen   uint64
}

// EncodeFrameSection deflates the raw frame bytes when that saves space.
// An empty frame encodes as zero lengths and no payload.
func EncodeFrameSection(frameRaw []byte) (FrameEncoding, error) {
	fe := FrameEncoding{UncompressedLen: uint64(len(frameRaw))}
	if len(frameRaw) == 0 {
		return fe, nil
	}

	compressed, err := compress.NewZlibCodec().Compress(frameRaw)
	if err != nil {
		return FrameEncoding{}, err
	}
	if len(compressed) < len(frameRaw) {
		fe.Payload = compressed
		fe.CompressedLen = uint64(len(compressed))

		return fe, nil
	}

	fe.Payload = frameRaw
	fe.CompressedLen = fe.UncompressedLen

	return fe, nil
}

// AppendFrameSection appends the frame header varints and payload to a
// value-change block under construction.
func (fe FrameEncoding) AppendFrameSection(dst []byte, frameMaxHandle uint64) []byte {
	dst = encoding.AppendUvarint(dst, fe.UncompressedLen)
	dst = encoding.AppendUvarint(dst, fe.CompressedLen)
	dst = encoding.AppendUvarint(dst, frameMaxHandle)

	return append(dst, fe.Payload...)
}

// DecodeFrameSection parses the frame portion at the start of a value-change
// block payload (after the three leading time/memory fields) and returns the
// uncompressed frame bytes, the frame max handle and the bytes consumed.
func DecodeFrameSection(data []byte) ([]byte, uint64, int, error) {
	offset := 0
	uncompressedLen, err := readUvarintAt(data, &offset)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("frame uncompressed length: %w", err)
	}
	compressedLen, err := readUvarintAt(data, &offset)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("frame compressed length: %w", err)
	}
	frameMaxHandle, err := readUvarintAt(data, &offset)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("frame max handle: %w", err)
	}

	if uint64(len(data)-offset) < compressedLen {
		return nil, 0, 0, fmt.Errorf("%w: frame payload exceeds block bounds", errs.ErrCorruptData)
	}
	stored := data[offset : offset+int(compressedLen)]
	offset += int(compressedLen)

	frame := stored
	if compressedLen != uncompressedLen {
		expanded, err := DecodedLen(uncompressedLen, len(stored))
		if err != nil {
			return nil, 0, 0, err
		}
		frame, err = compress.NewZlibCodec().Decompress(stored, expanded)
		if err != nil {
			return nil, 0, 0, err
		}
	}

	return frame, frameMaxHandle, offset, nil
}

// BuildFrameBytes serializes per-handle initial values into the raw frame
// layout: one ASCII character per single-bit signal, width characters per
// vector, 8 little-endian bytes per real. Variable-length signals occupy no
// frame space.
//
// values is indexed by handle-1 and must align with geoms.
func BuildFrameBytes(values []format.SignalValue, geoms []format.Geometry) ([]byte, error) {
	if len(values) != len(geoms) {
		return nil, fmt.Errorf("%w: frame has %d values for %d geometries",
			errs.ErrInvalidValue, len(values), len(geoms))
	}

	var out []byte
	for i, g := range geoms {
		v := values[i]
		switch g.Kind {
		case format.GeomFixed:
			if g.Width == 1 {
				ch := byte('x')
				if v.Kind == format.KindBit {
					ch = v.Bit
				}
				out = append(out, ch)

				continue
			}
			switch v.Kind {
			case format.KindVector, format.KindBytes:
				if uint32(len(v.Data)) != g.Width {
					return nil, fmt.Errorf("%w: frame vector for handle %d is %d chars, geometry wants %d",
						errs.ErrInvalidValue, i+1, len(v.Data), g.Width)
				}
				out = append(out, v.Data...)
			default:
				for j := uint32(0); j < g.Width; j++ {
					out = append(out, 'x')
				}
			}
		case format.GeomReal:
			bits := math.Float64bits(math.NaN())
			if v.Kind == format.KindReal {
				bits = math.Float64bits(v.Real)
			}
			out = littleEndian.AppendUint64(out, bits)
		case format.GeomVariable:
			// No frame entry.
		}
	}

	return out, nil
}

// DecodeFrameValues splits raw frame bytes into per-handle initial values
// following the geometry table. The result is indexed by handle-1; handles
// past frameMaxHandle and variable-length handles are left as zero values.
func DecodeFrameValues(frame []byte, geoms []format.Geometry, frameMaxHandle uint64) ([]format.SignalValue, error) {
	values := make([]format.SignalValue, len(geoms))
	if len(frame) == 0 {
		return values, nil
	}

	offset := 0
	for i, g := range geoms {
		if uint64(i) >= frameMaxHandle {
			break
		}
		switch g.Kind {
		case format.GeomFixed:
			width := int(g.Width)
			if offset+width > len(frame) {
				return nil, fmt.Errorf("%w: frame data ends inside handle %d", errs.ErrCorruptData, i+1)
			}
			if width == 1 {
				values[i] = format.BitValue(frame[offset])
			} else {
				values[i] = format.VectorValue(frame[offset : offset+width])
			}
			offset += width
		case format.GeomReal:
			if offset+8 > len(frame) {
				return nil, fmt.Errorf("%w: frame data ends inside handle %d", errs.ErrCorruptData, i+1)
			}
			values[i] = format.RealValue(math.Float64frombits(littleEndian.Uint64(frame[offset : offset+8])))
			offset += 8
		case format.GeomVariable:
			// Variable-length signals carry no initial value.
		}
	}

	return values, nil
}
