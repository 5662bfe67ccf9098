package section

import (
	"fmt"

	"github.com/arloliu/wavefst/compress"
	"github.com/arloliu/wavefst/encoding"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

// EncodeGeometryBlock serializes the per-handle geometry table into a
// geometry block payload.
//
// Each entry is one varint: zero for a real, VariableWidthSentinel for a
// variable-length value, anything else the fixed bit width. The varint data
// is deflated when that actually saves space.
func EncodeGeometryBlock(geoms []format.Geometry) ([]byte, error) {
	data := make([]byte, 0, len(geoms)*2)
	for i, g := range geoms {
		switch g.Kind {
		case format.GeomReal:
			data = encoding.AppendUvarint(data, 0)
		case format.GeomVariable:
			data = encoding.AppendUvarint(data, VariableWidthSentinel)
		case format.GeomFixed:
			if g.Width == 0 {
				return nil, fmt.Errorf("%w: zero-width geometry for handle %d",
					errs.ErrInvalidValue, i+1)
			}
			data = encoding.AppendUvarint(data, uint64(g.Width))
		default:
			return nil, fmt.Errorf("%w: geometry kind %d", errs.ErrInvalidValue, g.Kind)
		}
	}

	stored := data
	if compressed, err := compress.NewZlibCodec().Compress(data); err == nil && len(compressed) < len(data) {
		stored = compressed
	}

	payload := make([]byte, GeometryPrefixLen, GeometryPrefixLen+len(stored))
	bigEndian.PutUint64(payload[0:8], uint64(len(data)))
	bigEndian.PutUint64(payload[8:16], uint64(len(geoms)))
	payload = append(payload, stored...)

	return payload, nil
}

// DecodeGeometryBlock parses a geometry block payload into one Geometry per
// handle. Handle h maps to index h-1.
func DecodeGeometryBlock(payload []byte) ([]format.Geometry, error) {
	if len(payload) < GeometryPrefixLen {
		return nil, fmt.Errorf("%w: geometry payload is %d bytes", errs.ErrCorruptData, len(payload))
	}

	uncompressedLen := bigEndian.Uint64(payload[0:8])
	maxHandle := bigEndian.Uint64(payload[8:16])
	stored := payload[GeometryPrefixLen:]

	data := stored
	if uint64(len(stored)) != uncompressedLen {
		expanded, err := DecodedLen(uncompressedLen, len(stored))
		if err != nil {
			return nil, err
		}
		data, err = compress.NewZlibCodec().Decompress(stored, expanded)
		if err != nil {
			return nil, err
		}
	}

	// Every entry is at least one varint byte.
	if maxHandle > uint64(len(data)) {
		return nil, fmt.Errorf("%w: geometry table declares %d handles in %d bytes",
			errs.ErrCorruptData, maxHandle, len(data))
	}
	geoms := make([]format.Geometry, 0, maxHandle)
	for i := uint64(0); i < maxHandle; i++ {
		v, n, err := encoding.Uvarint(data)
		if err != nil {
			return nil, fmt.Errorf("geometry entry %d: %w", i+1, err)
		}
		data = data[n:]

		switch {
		case v == 0:
			geoms = append(geoms, format.RealGeometry())
		case v == VariableWidthSentinel:
			geoms = append(geoms, format.VariableGeometry())
		case v > VariableWidthSentinel:
			return nil, fmt.Errorf("%w: geometry width %d exceeds 32 bits", errs.ErrCorruptData, v)
		default:
			geoms = append(geoms, format.FixedGeometry(uint32(v)))
		}
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after geometry table",
			errs.ErrCorruptData, len(data))
	}

	return geoms, nil
}
