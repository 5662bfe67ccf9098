// Package section defines the low-level binary structures and codecs for the
// trace container format.
//
// This package provides the foundational types that define the physical
// layout of a trace file. It handles binary serialization and
// deserialization of the block envelope, the fixed-size header, the geometry
// and hierarchy tables, blackout records, per-block time tables and the
// chain index that locates per-handle value-change chains.
//
// # File Structure
//
// A trace file is a sequence of self-describing blocks:
//
//	┌─────────────────────────────────────────────────────────┐
//	│ Header block (type 0, 329-byte section)                 │
//	│  - time range, counts, timescale, version/date strings  │
//	├─────────────────────────────────────────────────────────┤
//	│ Metadata blocks (any order)                             │
//	│  - Geometry (type 3): per-handle value shapes           │
//	│  - Hierarchy (types 4/6/7): scope and variable tree     │
//	│  - Blackout (type 2): dump on/off intervals             │
//	├─────────────────────────────────────────────────────────┤
//	│ Value-change blocks (types 1/5/8), repeated             │
//	│  - initial-value frame, per-handle chains, chain index, │
//	│    time table, 24-byte trailer                          │
//	└─────────────────────────────────────────────────────────┘
//
// Every block opens with a one-byte type tag followed by a big-endian uint64
// section length that counts itself but not the tag. Multi-byte integer
// fields are big-endian; the payload of real-valued changes is the single
// exception and is stored little-endian.
//
// Value-change blocks are parsed back to front: the trailer at the end of
// the block locates the time table, which locates the chain index, which in
// turn locates the per-handle chains.
package section
