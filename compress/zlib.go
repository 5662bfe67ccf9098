package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/arloliu/wavefst/errs"
)

// zlibWriterPool pools zlib writers; Reset avoids rebuilding the deflate
// state tables on every payload.
var zlibWriterPool = sync.Pool{
	New: func() any {
		w, _ := zlib.NewWriterLevel(io.Discard, zlib.DefaultCompression)
		return w
	},
}

// ZlibCodec implements RFC 1950 deflate streams.
//
// Zlib is the workhorse of the container: geometry tables, hierarchy token
// streams, initial-value frames, time tables and (optionally) value-change
// chains all use it.
type ZlibCodec struct{}

var _ Codec = (*ZlibCodec)(nil)

// NewZlibCodec creates a new zlib codec.
func NewZlibCodec() ZlibCodec {
	return ZlibCodec{}
}

// Compress deflates the input data into a zlib stream.
func (c ZlibCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(data)/2 + 64)

	zw, _ := zlibWriterPool.Get().(*zlib.Writer)
	defer zlibWriterPool.Put(zw)
	zw.Reset(&buf)

	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates the zlib stream into exactly uncompressedLen bytes.
func (c ZlibCodec) Decompress(data []byte, uncompressedLen int) ([]byte, error) {
	if uncompressedLen == 0 && len(data) == 0 {
		return nil, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid zlib stream: %v", errs.ErrCorruptData, err)
	}
	defer zr.Close()

	out := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("%w: zlib stream shorter than %d bytes: %v",
			errs.ErrCorruptData, uncompressedLen, err)
	}

	// The stream must end exactly at the expected length.
	var probe [1]byte
	if n, _ := zr.Read(probe[:]); n != 0 {
		return nil, fmt.Errorf("%w: zlib stream longer than %d bytes",
			errs.ErrCorruptData, uncompressedLen)
	}

	return out, nil
}
