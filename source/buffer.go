package source

import (
	"fmt"
	"io"
)

// Buffer is a growable in-memory byte sink that supports seeking, which the
// writer needs to back-patch block lengths and header fields after the fact.
//
// The zero value is ready to use. Buffer is not safe for concurrent use.
type Buffer struct {
	data []byte
	off  int64
}

var (
	_ io.WriteSeeker = (*Buffer)(nil)
	_ io.ReaderAt    = (*Buffer)(nil)
)

// Write writes p at the current offset, extending the buffer as needed.
func (b *Buffer) Write(p []byte) (int, error) {
	end := b.off + int64(len(p))
	if end > int64(len(b.data)) {
		b.grow(end)
	}
	copy(b.data[b.off:end], p)
	b.off = end

	return len(p), nil
}

// Seek repositions the write offset. Seeking past the end is allowed; the
// gap is zero-filled on the next write.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.off + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("source.Buffer.Seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("source.Buffer.Seek: negative position %d", abs)
	}
	b.off = abs

	return abs, nil
}

// ReadAt reads from the buffered bytes at off.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("source.Buffer.ReadAt: negative offset %d", off)
	}
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// Bytes returns the written bytes. The slice aliases the buffer's storage
// and is only valid until the next write.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Size returns Len as an int64, satisfying the ByteSource size contract.
func (b *Buffer) Size() int64 {
	return int64(len(b.data))
}

// Close is a no-op so a Buffer can stand in for a file-backed source.
func (b *Buffer) Close() error {
	return nil
}

// Reset discards all written bytes and rewinds the offset.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.off = 0
}

func (b *Buffer) grow(size int64) {
	if int64(cap(b.data)) >= size {
		b.data = b.data[:size]

		return
	}
	grown := make([]byte, size, max(size, int64(cap(b.data))*2))
	copy(grown, b.data)
	b.data = grown
}
