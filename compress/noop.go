package compress

import (
	"fmt"

	"github.com/arloliu/wavefst/errs"
)

// NoOpCodec stores payloads verbatim.
//
// The container uses it whenever a section's stored length equals its
// uncompressed length, and for writers configured without compression.
type NoOpCodec struct{}

var _ Codec = (*NoOpCodec)(nil)

// NewNoOpCodec creates a codec that bypasses data without compression.
func NewNoOpCodec() NoOpCodec {
	return NoOpCodec{}
}

// Compress returns the input slice as-is without copying.
//
// Note: The returned slice shares the same underlying memory as the input.
func (c NoOpCodec) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns the input slice as-is after validating its length
// against uncompressedLen.
func (c NoOpCodec) Decompress(data []byte, uncompressedLen int) ([]byte, error) {
	if len(data) != uncompressedLen {
		return nil, fmt.Errorf("%w: raw payload is %d bytes, expected %d",
			errs.ErrCorruptData, len(data), uncompressedLen)
	}

	return data, nil
}
