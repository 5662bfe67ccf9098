// Package source provides the byte sources and sinks the reader and writer
// operate on: plain files, memory-mapped files and in-memory buffers.
package source

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

// ByteSource is a random-access view of an encoded trace.
//
// Sources returned by this package are safe for concurrent ReadAt calls,
// which the reader relies on when decompressing chains in parallel.
type ByteSource interface {
	io.ReaderAt
	io.Closer

	// Size returns the total number of bytes in the source.
	Size() int64
}

// OpenFile opens path as a regular file-backed source.
func OpenFile(path string) (ByteSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("stat trace file: %w", err)
	}

	return &fileSource{f: f, size: info.Size()}, nil
}

type fileSource struct {
	f    *os.File
	size int64
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Close() error                            { return s.f.Close() }
func (s *fileSource) Size() int64                             { return s.size }

// OpenMmap memory-maps path read-only. Random access never touches the
// filesystem after the initial map, which makes it the fastest option for
// repeated block scans over large traces.
func OpenMmap(path string) (ByteSource, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap trace file: %w", err)
	}

	return &mmapSource{r: r}, nil
}

type mmapSource struct {
	r *mmap.ReaderAt
}

func (s *mmapSource) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }
func (s *mmapSource) Close() error                            { return s.r.Close() }
func (s *mmapSource) Size() int64                             { return int64(s.r.Len()) }

// FromBytes wraps an in-memory encoded trace. Close is a no-op.
func FromBytes(data []byte) ByteSource {
	return &bytesSource{r: bytes.NewReader(data), size: int64(len(data))}
}

type bytesSource struct {
	r    *bytes.Reader
	size int64
}

func (s *bytesSource) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }
func (s *bytesSource) Close() error                            { return nil }
func (s *bytesSource) Size() int64                             { return s.size }

// SectionOf returns a sequential reader over [off, off+n) of src.
func SectionOf(src ByteSource, off, n int64) *io.SectionReader {
	return io.NewSectionReader(src, off, n)
}
