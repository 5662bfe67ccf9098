package section

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

func TestGeometryBlock_RoundTrip(t *testing.T) {
	geoms := []format.Geometry{
		format.FixedGeometry(1),
		format.FixedGeometry(8),
		format.FixedGeometry(32),
		format.RealGeometry(),
		format.VariableGeometry(),
		format.FixedGeometry(1),
	}

	payload, err := EncodeGeometryBlock(geoms)
	require.NoError(t, err)

	decoded, err := DecodeGeometryBlock(payload)
	require.NoError(t, err)
	require.Equal(t, geoms, decoded)
}

func TestGeometryBlock_CompressesLargeTables(t *testing.T) {
	geoms := make([]format.Geometry, 10000)
	for i := range geoms {
		geoms[i] = format.FixedGeometry(1)
	}

	payload, err := EncodeGeometryBlock(geoms)
	require.NoError(t, err)
	// 10000 identical one-byte varints deflate well.
	require.Less(t, len(payload), len(geoms))

	decoded, err := DecodeGeometryBlock(payload)
	require.NoError(t, err)
	require.Equal(t, geoms, decoded)
}

func TestEncodeGeometryBlock_ZeroWidth(t *testing.T) {
	_, err := EncodeGeometryBlock([]format.Geometry{{Kind: format.GeomFixed, Width: 0}})
	require.ErrorIs(t, err, errs.ErrInvalidValue)
}

func TestDecodeGeometryBlock_TrailingBytes(t *testing.T) {
	payload, err := EncodeGeometryBlock([]format.Geometry{format.FixedGeometry(4)})
	require.NoError(t, err)

	payload = append(payload, 0x05)
	bigEndian.PutUint64(payload[0:8], bigEndian.Uint64(payload[0:8])+1)

	_, err = DecodeGeometryBlock(payload)
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestDecodeGeometryBlock_Truncated(t *testing.T) {
	_, err := DecodeGeometryBlock(make([]byte, GeometryPrefixLen-1))
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

// A declared length must be rejected before anything is allocated for it,
// not fed to make.
func TestDecodeGeometryBlock_OversizedDeclaredLengths(t *testing.T) {
	t.Run("uncompressed length", func(t *testing.T) {
		payload := make([]byte, GeometryPrefixLen+1)
		bigEndian.PutUint64(payload[0:8], ^uint64(0))
		bigEndian.PutUint64(payload[8:16], 1)

		_, err := DecodeGeometryBlock(payload)
		require.ErrorIs(t, err, errs.ErrCorruptData)
	})

	t.Run("max handle", func(t *testing.T) {
		payload, err := EncodeGeometryBlock([]format.Geometry{format.FixedGeometry(4)})
		require.NoError(t, err)
		bigEndian.PutUint64(payload[8:16], ^uint64(0))

		_, err = DecodeGeometryBlock(payload)
		require.ErrorIs(t, err, errs.ErrCorruptData)
	})
}
