// Package wavefst implements a compact binary container for signal traces:
// hierarchical scope/variable declarations, delta-compressed timestamps, and
// per-signal value-change chains.
//
// A trace is a stream of self-describing blocks. The writer batches value
// changes into blocks, packing each signal's changes into an independently
// compressed chain, so readers can decompress only the signals they need.
// Identical chains within a block collapse into aliases.
//
// # Core Features
//
//   - Per-signal chains with selectable compression (zlib, LZ4, FastLZ)
//   - Two-state bit packing with automatic fallback to ASCII for 4/9-state
//   - Hierarchy stream with scopes, variables, attributes, and aliases
//   - Whole-stream zlib wrapping for archival output
//   - File, mmap, and in-memory byte sources
//   - Hash-based signal lookup by full dotted path
//
// # Basic Usage
//
// Writing a trace:
//
//	var buf source.Buffer
//	w, _ := wavefst.NewWriter(&buf, writer.WithTimescale(-9))
//
//	w.BeginScope(format.ScopeModule, "top", "")
//	clk, _ := w.AddVariable(format.VarWire, format.DirInput, "clk", format.FixedGeometry(1))
//	w.EndScope()
//
//	w.WriteHeader()
//	w.EmitChange(0, clk, format.BitValue('1'))
//	w.EmitChange(10, clk, format.BitValue('0'))
//	w.Finish()
//
// Reading it back:
//
//	r, _ := wavefst.OpenBytes(buf.Bytes())
//	defer r.Close()
//
//	for {
//	    bc, err := r.NextBlockChanges()
//	    if err != nil || bc == nil {
//	        break
//	    }
//	    for vc, err := range bc.All() {
//	        _ = err
//	        fmt.Printf("t=%d h=%d %s\n", vc.Time, vc.Handle, vc.Value)
//	    }
//	}
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the writer,
// reader, and snapshot packages, simplifying the most common use cases. For
// fine-grained control, use those packages directly.
package wavefst

import (
	"io"

	"github.com/arloliu/wavefst/internal/hash"
	"github.com/arloliu/wavefst/reader"
	"github.com/arloliu/wavefst/snapshot"
	"github.com/arloliu/wavefst/source"
	"github.com/arloliu/wavefst/writer"
)

// NewWriter creates a trace writer on sink.
//
// The sink must support seeking; the writer patches the header block with
// final counts during Finish. Use a source.Buffer for in-memory output.
//
// Available options:
//   - writer.WithTimescale(exponent) / WithTimeZero(t) / WithStartTime(t)
//   - writer.WithVersion(s) / WithDate(s) / WithFileType(ft)
//   - writer.WithChainCompression(format.CompressionZlib|Lz4|FastLz|None)
//   - writer.WithTimeCompression(bool) / WithFrameCompression(bool)
//   - writer.WithHierarchyCompression(format.HierarchyZlib|Lz4|Lz4Duo|Raw)
//   - writer.WithDynAlias2(bool) for the packed chain-index encoding
//   - writer.WithZWrapper(bool) to zlib-wrap the whole stream on Finish
//   - writer.WithFlushThreshold(n) to cap buffered changes per block
func NewWriter(sink io.WriteSeeker, opts ...writer.Option) (*writer.Writer, error) {
	return writer.New(sink, opts...)
}

// Open creates a reader over an arbitrary byte source.
func Open(src source.ByteSource, opts ...reader.Option) (*reader.Reader, error) {
	return reader.Open(src, opts...)
}

// OpenFile opens a trace file using regular file reads.
func OpenFile(path string, opts ...reader.Option) (*reader.Reader, error) {
	return reader.OpenFile(path, opts...)
}

// OpenMmap opens a trace file through a memory mapping. Preferred for large
// traces read selectively.
func OpenMmap(path string, opts ...reader.Option) (*reader.Reader, error) {
	return reader.OpenMmap(path, opts...)
}

// OpenBytes creates a reader over an in-memory trace.
func OpenBytes(data []byte, opts ...reader.Option) (*reader.Reader, error) {
	return reader.OpenBytes(data, opts...)
}

// Capture drains a reader into a fully owned, JSON-serializable snapshot.
func Capture(r *reader.Reader) (*snapshot.Snapshot, error) {
	return snapshot.Capture(r)
}

// PathID converts a full dotted signal path to its 64-bit hash identifier,
// the same hash Reader.LookupHandle indexes by.
//
// The hash is deterministic, so IDs can be precomputed for frequently
// queried signals. Collisions are detected by the reader, which falls back
// to exact name matching.
func PathID(fullPath string) uint64 {
	return hash.PathID(fullPath)
}
