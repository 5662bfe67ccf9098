package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

func allCompressions() []format.Compression {
	return []format.Compression{
		format.CompressionNone,
		format.CompressionZlib,
		format.CompressionLz4,
		format.CompressionFastLz,
	}
}

// repetitiveChainData mimics a value-change chain payload: lots of small
// varint markers with repeating patterns.
func repetitiveChainData(n int) []byte {
	data := make([]byte, 0, n)
	pattern := []byte{0x04, 0x06, 0x02, 0x31, 0x30, 0x31, 0x30, 0x08}
	for len(data) < n {
		data = append(data, pattern...)
	}

	return data[:n]
}

// pseudoRandomData generates deterministic poorly-compressible bytes.
func pseudoRandomData(n int) []byte {
	data := make([]byte, n)
	state := uint32(0x9e3779b9)
	for i := range data {
		state = state*1664525 + 1013904223
		data[i] = byte(state >> 24)
	}

	return data
}

func TestGetCodec(t *testing.T) {
	for _, compression := range allCompressions() {
		codec, err := GetCodec(compression)
		require.NoError(t, err)
		require.NotNil(t, codec)
	}

	_, err := GetCodec(format.Compression(0xFF))
	require.ErrorIs(t, err, errs.ErrUnsupportedCompression)
}

func TestCreateCodec_ErrorMentionsTarget(t *testing.T) {
	_, err := CreateCodec(format.Compression(0xFF), "value-change chains")
	require.ErrorIs(t, err, errs.ErrUnsupportedCompression)
	require.Contains(t, err.Error(), "value-change chains")
}

func TestAllCodecs_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "single byte", data: []byte{0x42}},
		{name: "short text", data: []byte("clk posedge at 1250ps")},
		{name: "repetitive chain", data: repetitiveChainData(4096)},
		{name: "incompressible", data: pseudoRandomData(2048)},
		{name: "all zeros", data: make([]byte, 1024)},
	}

	for _, compression := range allCompressions() {
		codec, err := GetCodec(compression)
		require.NoError(t, err)

		for _, tt := range tests {
			t.Run(compression.String()+"/"+tt.name, func(t *testing.T) {
				compressed, err := codec.Compress(tt.data)
				require.NoError(t, err)

				restored, err := codec.Decompress(compressed, len(tt.data))
				require.NoError(t, err)
				if len(tt.data) == 0 {
					require.Empty(t, restored)
				} else {
					require.Equal(t, tt.data, restored)
				}
			})
		}
	}
}

func TestAllCodecs_CompressesRepetitiveData(t *testing.T) {
	data := repetitiveChainData(8192)
	for _, compression := range allCompressions() {
		if compression == format.CompressionNone {
			continue
		}
		codec, err := GetCodec(compression)
		require.NoError(t, err)

		compressed, err := codec.Compress(data)
		require.NoError(t, err)
		require.Less(t, len(compressed), len(data),
			"%s should shrink repetitive chain data", compression)
	}
}

func TestNoOpCodec_LengthMismatch(t *testing.T) {
	codec := NewNoOpCodec()
	_, err := codec.Decompress([]byte{1, 2, 3}, 5)
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestZlibCodec_InvalidStream(t *testing.T) {
	codec := NewZlibCodec()

	_, err := codec.Decompress([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 16)
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestZlibCodec_TruncatedStream(t *testing.T) {
	codec := NewZlibCodec()
	data := repetitiveChainData(1024)

	compressed, err := codec.Compress(data)
	require.NoError(t, err)
	require.Greater(t, len(compressed), 4)

	_, err = codec.Decompress(compressed[:len(compressed)/2], len(data))
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestZlibCodec_LengthMismatch(t *testing.T) {
	codec := NewZlibCodec()
	data := repetitiveChainData(1024)

	compressed, err := codec.Compress(data)
	require.NoError(t, err)

	// Claiming a shorter uncompressed length must fail: the stream keeps
	// producing bytes past the expected end.
	_, err = codec.Decompress(compressed, len(data)-1)
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestLZ4Codec_InvalidBlock(t *testing.T) {
	codec := NewLZ4Codec()

	// A match referencing data before the start of the block.
	_, err := codec.Decompress([]byte{0x10, 0xFF, 0xFF, 0xFF}, 64)
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestLZ4Codec_IncompressibleFallback(t *testing.T) {
	codec := NewLZ4Codec()
	data := pseudoRandomData(512)

	compressed, err := codec.Compress(data)
	require.NoError(t, err)
	require.NotEmpty(t, compressed)

	restored, err := codec.Decompress(compressed, len(data))
	require.NoError(t, err)
	require.Equal(t, data, restored)
}

func TestFastLZCodec_Level2Unsupported(t *testing.T) {
	codec := NewFastLZCodec()

	// Top three bits of the first byte carry the level marker; 1 means
	// a level-2 stream.
	_, err := codec.Decompress([]byte{1 << 5, 0x00}, 4)
	require.ErrorIs(t, err, errs.ErrUnsupportedFeature)
}

func TestFastLZCodec_CorruptStreams(t *testing.T) {
	codec := NewFastLZCodec()

	tests := []struct {
		name string
		data []byte
		ulen int
	}{
		{name: "empty with nonzero length", data: nil, ulen: 8},
		{name: "truncated literal run", data: []byte{0x05, 0x41}, ulen: 6},
		{name: "match before start", data: []byte{0x00, 0x41, 0x40, 0x10}, ulen: 8},
		{name: "short output", data: []byte{0x00, 0x41}, ulen: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decompress(tt.data, tt.ulen)
			require.ErrorIs(t, err, errs.ErrCorruptData)
		})
	}
}

func TestFastLZCodec_OverlappingMatch(t *testing.T) {
	codec := NewFastLZCodec()

	// Run-length style data forces matches that overlap their own output.
	data := bytes.Repeat([]byte{0xAB}, 300)
	compressed, err := codec.Compress(data)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(data))

	restored, err := codec.Decompress(compressed, len(data))
	require.NoError(t, err)
	require.Equal(t, data, restored)
}

func TestFastLZCodec_LongMatches(t *testing.T) {
	codec := NewFastLZCodec()

	// A long repeated region exercises the extended match opcode and the
	// match splitting at the 264-byte cap.
	base := repetitiveChainData(64)
	var data []byte
	for range 40 {
		data = append(data, base...)
	}

	compressed, err := codec.Compress(data)
	require.NoError(t, err)

	restored, err := codec.Decompress(compressed, len(data))
	require.NoError(t, err)
	require.Equal(t, data, restored)
}

func TestAllCodecs_ConcurrentUsage(t *testing.T) {
	data := repetitiveChainData(2048)

	for _, compression := range allCompressions() {
		codec, err := GetCodec(compression)
		require.NoError(t, err)

		t.Run(compression.String(), func(t *testing.T) {
			done := make(chan error, 8)
			for range 8 {
				go func() {
					for range 16 {
						compressed, err := codec.Compress(data)
						if err != nil {
							done <- err
							return
						}
						restored, err := codec.Decompress(compressed, len(data))
						if err != nil {
							done <- err
							return
						}
						if !bytes.Equal(data, restored) {
							done <- errs.ErrCorruptData
							return
						}
					}
					done <- nil
				}()
			}
			for range 8 {
				require.NoError(t, <-done)
			}
		})
	}
}
