// Package reader consumes FST streams: block scanning, metadata decoding
// and per-block value-change iteration.
package reader

import (
	"context"
	"fmt"
	"strings"

	"github.com/arloliu/wavefst/compress"
	"github.com/arloliu/wavefst/endian"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
	"github.com/arloliu/wavefst/internal/collision"
	"github.com/arloliu/wavefst/internal/hash"
	"github.com/arloliu/wavefst/internal/options"
	"github.com/arloliu/wavefst/section"
	"github.com/arloliu/wavefst/source"
)

var bigEndian = endian.GetBigEndianEngine()

// Reader decodes an FST stream from a random-access byte source.
//
// Opening a reader scans the whole block sequence once: the header,
// geometry, hierarchy and blackout blocks are decoded eagerly, while
// value-change payloads are only located and parsed on demand through
// NextBlockChanges. Reader is not safe for concurrent use.
type Reader struct {
	src source.ByteSource
	// raw is the source handed to Open; src diverges from it after a zlib
	// envelope is unwrapped.
	raw source.ByteSource
	cfg config

	header    section.Header
	geoms     []format.Geometry
	hier      *section.Hierarchy
	blackouts []format.BlackoutEvent

	vcRefs []vcBlockRef
	next   int
	values []format.SignalValue

	pathIndex map[uint64]format.Handle
	// pathExact backs LookupHandle when the hash index has collisions.
	pathExact map[string]format.Handle
}

// vcBlockRef locates one value-change payload inside the stream.
type vcBlockRef struct {
	blockType format.BlockType
	offset    int64
	length    int64
}

// Open creates a Reader over src and scans the block stream. The reader
// takes ownership of src; Close releases it.
func Open(src source.ByteSource, opts ...Option) (*Reader, error) {
	cfg := defaultConfig()
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	r := &Reader{src: src, raw: src, cfg: cfg}
	if err := r.scan(); err != nil {
		return nil, err
	}
	r.buildPathIndex()

	return r, nil
}

// OpenFile opens path and reads it as an FST stream.
func OpenFile(path string, opts ...Option) (*Reader, error) {
	src, err := source.OpenFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Open(src, opts...)
	if err != nil {
		src.Close()

		return nil, err
	}

	return r, nil
}

// OpenMmap memory-maps path and reads it as an FST stream.
func OpenMmap(path string, opts ...Option) (*Reader, error) {
	src, err := source.OpenMmap(path)
	if err != nil {
		return nil, err
	}
	r, err := Open(src, opts...)
	if err != nil {
		src.Close()

		return nil, err
	}

	return r, nil
}

// OpenBytes reads an in-memory FST stream.
func OpenBytes(data []byte, opts ...Option) (*Reader, error) {
	return Open(source.FromBytes(data), opts...)
}

// Close releases the underlying byte source.
func (r *Reader) Close() error {
	return r.raw.Close()
}

// Header returns the decoded file header.
func (r *Reader) Header() section.Header {
	return r.header
}

// Geometry returns the per-handle geometry table; index i describes
// handle i+1.
func (r *Reader) Geometry() []format.Geometry {
	return r.geoms
}

// Hierarchy returns the decoded design tree, or nil when the stream
// carries no hierarchy block.
func (r *Reader) Hierarchy() *section.Hierarchy {
	return r.hier
}

// Blackout returns the decoded dump-activity events, or nil when the
// stream carries no blackout block.
func (r *Reader) Blackout() []format.BlackoutEvent {
	return r.blackouts
}

// NumBlocks returns the number of value-change blocks in the stream.
func (r *Reader) NumBlocks() int {
	return len(r.vcRefs)
}

// Values returns the signal state at the begin time of the block most
// recently returned by NextBlockChanges, indexed by handle-1. It is nil
// before the first block is opened.
func (r *Reader) Values() []format.SignalValue {
	return r.values
}

// LookupHandle resolves a dot-separated hierarchical path such as
// "top.cpu.clk" to the signal's handle. Alias declarations resolve to the
// canonical handle their chain data lives under.
func (r *Reader) LookupHandle(fullPath string) (format.Handle, bool) {
	if r.pathExact != nil {
		h, ok := r.pathExact[fullPath]

		return h, ok
	}
	h, ok := r.pathIndex[hash.PathID(fullPath)]

	return h, ok
}

// NextBlockChanges parses the next value-change block and returns an
// iterator over its events. It returns nil once all blocks are consumed.
func (r *Reader) NextBlockChanges() (*BlockChanges, error) {
	if r.next >= len(r.vcRefs) {
		return nil, nil
	}
	if len(r.geoms) == 0 {
		return nil, fmt.Errorf("%w: value-change block without a geometry block", errs.ErrCorruptData)
	}

	ref := r.vcRefs[r.next]
	r.next++

	payload, err := r.readAt(ref.offset, uint64(ref.length))
	if err != nil {
		return nil, err
	}
	bc, err := r.parseVcBlock(ref.blockType, payload)
	if err != nil {
		return nil, fmt.Errorf("value-change block %d: %w", r.next-1, err)
	}
	r.values = bc.frame

	return bc, nil
}

// StreamChanges iterates the events of every remaining block on a channel.
// The value channel is closed when the stream is exhausted; a decode error
// or context cancellation is delivered on the error channel before both
// channels close.
func (r *Reader) StreamChanges(ctx context.Context) (<-chan format.ValueChange, <-chan error) {
	out := make(chan format.ValueChange, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		for {
			bc, err := r.NextBlockChanges()
			if err != nil {
				errc <- err

				return
			}
			if bc == nil {
				return
			}
			for vc, err := range bc.All() {
				if err != nil {
					errc <- err

					return
				}
				select {
				case out <- vc:
				case <-ctx.Done():
					errc <- ctx.Err()

					return
				}
			}
		}
	}()

	return out, errc
}

// scan walks the block stream once, decoding metadata blocks and recording
// where the value-change payloads live.
func (r *Reader) scan() error {
	off := int64(0)
	sawHeader := false

	for off < r.src.Size() {
		blockType, payloadLen, err := section.ReadEnvelope(source.SectionOf(r.src, off, section.EnvelopeLen))
		if err != nil {
			return err
		}
		envStart := off
		off += section.EnvelopeLen
		if payloadLen > uint64(r.src.Size()-off) {
			return fmt.Errorf("%w: block declares %d payload bytes with %d remaining",
				errs.ErrUnexpectedEOF, payloadLen, r.src.Size()-off)
		}

		if !sawHeader && blockType != format.BlockHeader && blockType != format.BlockZWrapper {
			return fmt.Errorf("%w: stream starts with %v block instead of the header",
				errs.ErrCorruptData, blockType)
		}

		switch {
		case blockType == format.BlockHeader:
			if sawHeader {
				return fmt.Errorf("%w: duplicate header block", errs.ErrCorruptData)
			}
			payload, err := r.readAt(off, payloadLen)
			if err != nil {
				return err
			}
			r.header, err = section.DecodeHeader(payload)
			if err != nil {
				return err
			}
			sawHeader = true

		case blockType == format.BlockGeometry:
			payload, err := r.readAt(off, payloadLen)
			if err != nil {
				return err
			}
			r.geoms, err = section.DecodeGeometryBlock(payload)
			if err != nil {
				return err
			}

		case blockType.IsHierarchy():
			payload, err := r.readAt(off, payloadLen)
			if err != nil {
				return err
			}
			tokens, err := section.DecodeHierarchyBlock(blockType, payload)
			if err != nil {
				return err
			}
			r.hier, err = section.DecodeHierarchyTokens(tokens)
			if err != nil {
				return err
			}

		case blockType == format.BlockBlackout:
			payload, err := r.readAt(off, payloadLen)
			if err != nil {
				return err
			}
			r.blackouts, err = section.DecodeBlackoutBlock(payload)
			if err != nil {
				return err
			}

		case blockType.IsValueChange():
			r.vcRefs = append(r.vcRefs, vcBlockRef{
				blockType: blockType,
				offset:    off,
				length:    int64(payloadLen),
			})

		case blockType == format.BlockSkip:
			// Padding; nothing to decode.

		case blockType == format.BlockZWrapper:
			if err := r.unwrap(envStart, off, payloadLen); err != nil {
				return err
			}
			// Rescan from the wrapper position on the spliced stream.
			off = envStart

			continue

		default:
			return fmt.Errorf("%w: unknown block type 0x%02x", errs.ErrCorruptData, byte(blockType))
		}

		off += int64(payloadLen)
	}

	if !sawHeader {
		return fmt.Errorf("%w: stream contains no header block", errs.ErrCorruptData)
	}

	return nil
}

// unwrap inflates a zlib envelope block and splices its inner stream in
// place of the wrapper, keeping the already-scanned prefix intact.
func (r *Reader) unwrap(envStart, payloadOff int64, payloadLen uint64) error {
	if payloadLen < 16 {
		return fmt.Errorf("%w: zlib envelope payload is %d bytes", errs.ErrCorruptData, payloadLen)
	}
	payload, err := r.readAt(payloadOff, payloadLen)
	if err != nil {
		return err
	}

	uncompressedLen := bigEndian.Uint64(payload[0:8])
	compressedLen := bigEndian.Uint64(payload[8:16])
	if compressedLen != uint64(len(payload)-16) {
		return fmt.Errorf("%w: zlib envelope declares %d compressed bytes, payload has %d",
			errs.ErrCorruptData, compressedLen, len(payload)-16)
	}

	innerLen, err := section.DecodedLen(uncompressedLen, len(payload)-16)
	if err != nil {
		return err
	}
	inner, err := compress.NewZlibCodec().Decompress(payload[16:], innerLen)
	if err != nil {
		return err
	}

	prefix, err := r.readAt(0, uint64(envStart))
	if err != nil {
		return err
	}
	combined := make([]byte, 0, envStart+int64(len(inner)))
	combined = append(combined, prefix...)
	combined = append(combined, inner...)
	r.src = source.FromBytes(combined)

	return nil
}

// buildPathIndex flattens the hierarchy into a hash index over full signal
// paths. When xxhash collides on two distinct paths the index falls back to
// exact string matching.
func (r *Reader) buildPathIndex() {
	if r.hier == nil {
		return
	}

	type pathEntry struct {
		path   string
		handle format.Handle
	}
	entries := make([]pathEntry, 0, len(r.hier.Vars))

	var stack []string
	for _, item := range r.hier.Items {
		switch item.Kind {
		case section.ItemScopeBegin:
			stack = append(stack, r.hier.Scopes[item.Index].Name)
		case section.ItemScopeEnd:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case section.ItemVar:
			v := r.hier.Vars[item.Index]
			path := v.Name
			if len(stack) > 0 {
				path = strings.Join(stack, ".") + "." + v.Name
			}
			entries = append(entries, pathEntry{path: path, handle: v.Handle})
		}
	}

	tracker := collision.NewTracker()
	r.pathIndex = make(map[uint64]format.Handle, len(entries))
	for _, e := range entries {
		id := hash.PathID(e.path)
		if tracker.Track(id, e.path) {
			r.pathIndex[id] = e.handle
		}
	}
	if tracker.HasCollision() {
		r.pathExact = make(map[string]format.Handle, len(entries))
		for _, e := range entries {
			if _, ok := r.pathExact[e.path]; !ok {
				r.pathExact[e.path] = e.handle
			}
		}
	}
}

func (r *Reader) readAt(off int64, n uint64) ([]byte, error) {
	// Compare in unsigned arithmetic: a declared length near 2^64 must not
	// wrap the sum negative and slip past the bound.
	if off < 0 || off > r.src.Size() || n > uint64(r.src.Size()-off) {
		return nil, fmt.Errorf("%w: block extends past end of input", errs.ErrUnexpectedEOF)
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := r.src.ReadAt(buf, off); err != nil {
		return nil, err
	}

	return buf, nil
}
