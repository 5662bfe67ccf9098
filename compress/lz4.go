package compress

import (
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/wavefst/errs"
)

// lz4CompressorPool pools lz4.Compressor instances for reuse.
// The lz4.Compressor maintains internal state that benefits from reuse.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Codec implements the raw LZ4 block format without length framing,
// matching the payloads produced by the reference tools for hierarchy blocks
// and '4'-marked value-change chains.
type LZ4Codec struct{}

var _ Codec = (*LZ4Codec)(nil)

// NewLZ4Codec creates a new LZ4 block codec.
func NewLZ4Codec() LZ4Codec {
	return LZ4Codec{}
}

// Compress compresses the input data as one LZ4 block.
//
// Uses a pooled lz4.Compressor for better performance. An incompressible
// input may come back larger than the original; the section writers handle
// that by storing raw instead.
func (c LZ4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 {
		// CompressBlock signals "incompressible" with n == 0; callers expect
		// a usable stream either way, so fall back to a literal-only block.
		return appendLZ4Literals(dst[:0], data), nil
	}

	return dst[:n], nil
}

// Decompress expands one LZ4 block into exactly uncompressedLen bytes.
func (c LZ4Codec) Decompress(data []byte, uncompressedLen int) ([]byte, error) {
	if uncompressedLen == 0 && len(data) == 0 {
		return nil, nil
	}

	out := make([]byte, uncompressedLen)
	n, err := lz4.UncompressBlock(data, out)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid lz4 block: %v", errs.ErrCorruptData, err)
	}
	if n != uncompressedLen {
		return nil, fmt.Errorf("%w: lz4 block expands to %d bytes, expected %d",
			errs.ErrCorruptData, n, uncompressedLen)
	}

	return out, nil
}

// appendLZ4Literals encodes data as a sequence of pure literal runs, the
// degenerate but always-valid LZ4 block form.
func appendLZ4Literals(dst, data []byte) []byte {
	for len(data) > 0 {
		run := data
		// A literal-only sequence has no match part, which is only legal for
		// the final sequence of a block, so emit everything in one sequence.
		n := len(run)
		token := byte(15)
		if n < 15 {
			token = byte(n)
		}
		dst = append(dst, token<<4)
		if n >= 15 {
			rest := n - 15
			for rest >= 255 {
				dst = append(dst, 255)
				rest -= 255
			}
			dst = append(dst, byte(rest))
		}
		dst = append(dst, run...)
		data = nil
	}

	return dst
}
