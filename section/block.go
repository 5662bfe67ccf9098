package section

import (
	"fmt"
	"io"
	"math"

	"github.com/arloliu/wavefst/endian"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

var bigEndian = endian.GetBigEndianEngine()

// ReadEnvelope reads a block envelope and returns the block type and the
// payload length that follows.
//
// The stored section length counts its own 8 bytes, so the payload length is
// section length minus LengthFieldLen.
func ReadEnvelope(r io.Reader) (format.BlockType, uint64, error) {
	var buf [EnvelopeLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, 0, fmt.Errorf("%w: truncated block envelope", errs.ErrUnexpectedEOF)
		}

		return 0, 0, err
	}

	blockType := format.BlockType(buf[0])
	sectionLength := bigEndian.Uint64(buf[1:])
	if sectionLength < LengthFieldLen {
		return 0, 0, fmt.Errorf("%w: section length %d below envelope minimum",
			errs.ErrCorruptData, sectionLength)
	}

	return blockType, sectionLength - LengthFieldLen, nil
}

// DecodedLen validates a declared uncompressed byte count before anything
// is allocated for it. Deflate tops out near a 1032:1 expansion ratio and
// the LZ4/FastLZ block forms stay well below that, so a declared length past
// the bound (or past the int range) is corrupt input, not a large payload.
func DecodedLen(declared uint64, storedLen int) (int, error) {
	const maxExpansion = 2048
	if declared > math.MaxInt || declared > uint64(storedLen)*maxExpansion+64 {
		return 0, fmt.Errorf("%w: declared length %d not expandable from %d stored bytes",
			errs.ErrCorruptData, declared, storedLen)
	}

	return int(declared), nil
}

// WriteBlock writes a complete block: type tag, section length and payload.
func WriteBlock(w io.Writer, blockType format.BlockType, payload []byte) error {
	var buf [EnvelopeLen]byte
	buf[0] = byte(blockType)
	bigEndian.PutUint64(buf[1:], uint64(len(payload))+LengthFieldLen)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}

	return nil
}

// BlockWriter streams a block whose payload length is unknown up front.
//
// Begin writes the type tag and a zero length placeholder; End seeks back
// and patches the real section length, then restores the write position.
type BlockWriter struct {
	w       io.WriteSeeker
	lenPos  int64
	written uint64
}

// BeginBlock starts a streamed block of the given type on w.
func BeginBlock(w io.WriteSeeker, blockType format.BlockType) (*BlockWriter, error) {
	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	var buf [EnvelopeLen]byte
	buf[0] = byte(blockType)
	if _, err := w.Write(buf[:]); err != nil {
		return nil, err
	}

	return &BlockWriter{w: w, lenPos: pos + 1}, nil
}

// Write appends payload bytes to the open block.
func (bw *BlockWriter) Write(p []byte) (int, error) {
	n, err := bw.w.Write(p)
	bw.written += uint64(n)

	return n, err
}

// Written returns the number of payload bytes written so far.
func (bw *BlockWriter) Written() uint64 {
	return bw.written
}

// End patches the section length field and restores the stream position to
// the end of the block.
func (bw *BlockWriter) End() error {
	endPos, err := bw.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := bw.w.Seek(bw.lenPos, io.SeekStart); err != nil {
		return err
	}

	var buf [LengthFieldLen]byte
	bigEndian.PutUint64(buf[:], bw.written+LengthFieldLen)
	if _, err := bw.w.Write(buf[:]); err != nil {
		return err
	}
	if _, err := bw.w.Seek(endPos, io.SeekStart); err != nil {
		return err
	}

	return nil
}
