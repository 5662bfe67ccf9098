package compress

import (
	"fmt"

	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

// Compressor compresses section payloads before they are written to a block.
type Compressor interface {
	// Compress compresses the input data and returns the compressed result.
	//
	// Memory management:
	//   - Returned slice is newly allocated and owned by the caller
	//   - Input slice is not modified
	//   - Internal buffers may be reused for efficiency
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores section payloads read from a block.
//
// The container records the uncompressed byte count next to every compressed
// payload, so Decompress receives the exact expected output size and treats
// any mismatch as corruption.
type Decompressor interface {
	// Decompress decompresses data into exactly uncompressedLen bytes.
	//
	// Error conditions:
	//   - errs.ErrCorruptData when the stream is malformed or the output
	//     length disagrees with uncompressedLen
	//   - errs.ErrUnsupportedCompression when the algorithm is unavailable
	//
	// Memory management:
	//   - Returned slice is newly allocated and owned by the caller
	//   - Input slice is not modified
	Decompress(data []byte, uncompressedLen int) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.Compression]Codec{
	format.CompressionNone:   NewNoOpCodec(),
	format.CompressionZlib:   NewZlibCodec(),
	format.CompressionLz4:    NewLZ4Codec(),
	format.CompressionFastLz: NewFastLZCodec(),
}

// GetCodec retrieves the built-in Codec for the specified compression choice.
func GetCodec(compression format.Compression) (Codec, error) {
	if codec, ok := builtinCodecs[compression]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedCompression, compression)
}

// CreateCodec is a factory function that creates a Codec based on the
// specified compression choice.
//
// Parameters:
//   - compression: Algorithm selector (None, Zlib, Lz4, or FastLz)
//   - target: Description of target usage (for error messages)
//
// Returns:
//   - Codec: Codec instance for the specified algorithm
//   - error: Unsupported compression error
func CreateCodec(compression format.Compression, target string) (Codec, error) {
	codec, err := GetCodec(compression)
	if err != nil {
		return nil, fmt.Errorf("%w for %s", err, target)
	}

	return codec, nil
}
