// Package format defines the wire-level enumerations and the value data model
// of the FST waveform container.
//
// All multi-byte fixed-width fields in the container are big-endian; variable
// sized integers use unsigned LEB128 (see the encoding package).
package format

import "fmt"

// BlockType identifies the payload carried by a top-level block.
//
// Every block starts with a single type byte followed by a big-endian uint64
// section length that covers the length word itself plus the payload.
type BlockType uint8

const (
	// BlockHeader is the mandatory 329-byte file header.
	BlockHeader BlockType = 0
	// BlockVcData is a value-change block with the basic chain index.
	BlockVcData BlockType = 1
	// BlockBlackout records dump-on/dump-off intervals.
	BlockBlackout BlockType = 2
	// BlockGeometry describes the per-handle signal layout.
	BlockGeometry BlockType = 3
	// BlockHierarchy is a raw or zlib compressed hierarchy token stream.
	BlockHierarchy BlockType = 4
	// BlockVcDataDynAlias is a value-change block whose chain index supports
	// empty-slot runs.
	BlockVcDataDynAlias BlockType = 5
	// BlockHierarchyLz4 is an LZ4 compressed hierarchy token stream.
	BlockHierarchyLz4 BlockType = 6
	// BlockHierarchyLz4Duo is a twice-LZ4 compressed hierarchy token stream
	// with a stage-1 length prefix.
	BlockHierarchyLz4Duo BlockType = 7
	// BlockVcDataDynAlias2 is a value-change block using the signed-varint
	// chain index flavor.
	BlockVcDataDynAlias2 BlockType = 8
	// BlockZWrapper wraps the remainder of the file in one zlib envelope.
	BlockZWrapper BlockType = 254
	// BlockSkip marks a padding block that readers step over.
	BlockSkip BlockType = 255
)

// IsValid reports whether the type byte names a known block type.
func (t BlockType) IsValid() bool {
	switch t {
	case BlockHeader, BlockVcData, BlockBlackout, BlockGeometry, BlockHierarchy,
		BlockVcDataDynAlias, BlockHierarchyLz4, BlockHierarchyLz4Duo,
		BlockVcDataDynAlias2, BlockZWrapper, BlockSkip:
		return true
	default:
		return false
	}
}

// IsValueChange reports whether the block carries value-change data.
func (t BlockType) IsValueChange() bool {
	return t == BlockVcData || t == BlockVcDataDynAlias || t == BlockVcDataDynAlias2
}

// IsHierarchy reports whether the block carries hierarchy data.
func (t BlockType) IsHierarchy() bool {
	return t == BlockHierarchy || t == BlockHierarchyLz4 || t == BlockHierarchyLz4Duo
}

func (t BlockType) String() string {
	switch t {
	case BlockHeader:
		return "header"
	case BlockVcData:
		return "vcdata"
	case BlockBlackout:
		return "blackout"
	case BlockGeometry:
		return "geometry"
	case BlockHierarchy:
		return "hierarchy"
	case BlockVcDataDynAlias:
		return "vcdata-dynalias"
	case BlockHierarchyLz4:
		return "hierarchy-lz4"
	case BlockHierarchyLz4Duo:
		return "hierarchy-lz4duo"
	case BlockVcDataDynAlias2:
		return "vcdata-dynalias2"
	case BlockZWrapper:
		return "zwrapper"
	case BlockSkip:
		return "skip"
	default:
		return fmt.Sprintf("blocktype(%d)", uint8(t))
	}
}

// FileType identifies the source language recorded in the header.
type FileType uint8

const (
	FileTypeVerilog     FileType = 0
	FileTypeVHDL        FileType = 1
	FileTypeVerilogVHDL FileType = 2
)

func (t FileType) String() string {
	switch t {
	case FileTypeVerilog:
		return "verilog"
	case FileTypeVHDL:
		return "vhdl"
	case FileTypeVerilogVHDL:
		return "verilog-vhdl"
	default:
		return fmt.Sprintf("filetype(%d)", uint8(t))
	}
}

// ScopeType classifies a hierarchy scope. The values above 251 double as
// control tags inside the hierarchy token stream.
type ScopeType uint8

const (
	ScopeModule           ScopeType = 0
	ScopeTask             ScopeType = 1
	ScopeFunction         ScopeType = 2
	ScopeBegin            ScopeType = 3
	ScopeFork             ScopeType = 4
	ScopeGenerate         ScopeType = 5
	ScopeStruct           ScopeType = 6
	ScopeUnion            ScopeType = 7
	ScopeClass            ScopeType = 8
	ScopeInterface        ScopeType = 9
	ScopePackage          ScopeType = 10
	ScopeProgram          ScopeType = 11
	ScopeVhdlArchitecture ScopeType = 12
	ScopeVhdlProcedure    ScopeType = 13
	ScopeVhdlFunction     ScopeType = 14
	ScopeVhdlRecord       ScopeType = 15
	ScopeVhdlProcess      ScopeType = 16
	ScopeVhdlBlock        ScopeType = 17
	ScopeVhdlForGenerate  ScopeType = 18
	ScopeVhdlIfGenerate   ScopeType = 19
	ScopeVhdlGenerate     ScopeType = 20
	ScopeVhdlPackage      ScopeType = 21

	// Control tags used by the hierarchy token stream, not real scope types.
	TagAttrBegin ScopeType = 252
	TagAttrEnd   ScopeType = 253
	TagScope     ScopeType = 254
	TagUpscope   ScopeType = 255
)

// IsValid reports whether the byte names a declarable scope type.
func (t ScopeType) IsValid() bool {
	return t <= ScopeVhdlPackage
}

func (t ScopeType) String() string {
	names := [...]string{
		"module", "task", "function", "begin", "fork", "generate", "struct",
		"union", "class", "interface", "package", "program",
		"vhdl-architecture", "vhdl-procedure", "vhdl-function", "vhdl-record",
		"vhdl-process", "vhdl-block", "vhdl-for-generate", "vhdl-if-generate",
		"vhdl-generate", "vhdl-package",
	}
	if int(t) < len(names) {
		return names[t]
	}

	return fmt.Sprintf("scopetype(%d)", uint8(t))
}

// VarType classifies a declared variable.
type VarType uint8

const (
	VarEvent         VarType = 0
	VarInteger       VarType = 1
	VarParameter     VarType = 2
	VarReal          VarType = 3
	VarRealParameter VarType = 4
	VarReg           VarType = 5
	VarSupply0       VarType = 6
	VarSupply1       VarType = 7
	VarTime          VarType = 8
	VarTri           VarType = 9
	VarTriAnd        VarType = 10
	VarTriOr         VarType = 11
	VarTriReg        VarType = 12
	VarTri0          VarType = 13
	VarTri1          VarType = 14
	VarWand          VarType = 15
	VarWire          VarType = 16
	VarWor           VarType = 17
	VarPort          VarType = 18
	VarSparseArray   VarType = 19
	VarRealTime      VarType = 20
	VarGenericString VarType = 21
	VarBit           VarType = 22
	VarLogic         VarType = 23
	VarInt           VarType = 24
	VarShortInt      VarType = 25
	VarLongInt       VarType = 26
	VarByte          VarType = 27
	VarEnum          VarType = 28
	VarShortReal     VarType = 29
)

// IsValid reports whether the byte names a known variable type.
func (t VarType) IsValid() bool {
	return t <= VarShortReal
}

func (t VarType) String() string {
	names := [...]string{
		"event", "integer", "parameter", "real", "real-parameter", "reg",
		"supply0", "supply1", "time", "tri", "triand", "trior", "trireg",
		"tri0", "tri1", "wand", "wire", "wor", "port", "sparse-array",
		"realtime", "string", "bit", "logic", "int", "shortint", "longint",
		"byte", "enum", "shortreal",
	}
	if int(t) < len(names) {
		return names[t]
	}

	return fmt.Sprintf("vartype(%d)", uint8(t))
}

// VarDir records the declared direction of a variable.
type VarDir uint8

const (
	DirImplicit VarDir = 0
	DirInput    VarDir = 1
	DirOutput   VarDir = 2
	DirInOut    VarDir = 3
	DirBuffer   VarDir = 4
	DirLinkage  VarDir = 5
)

// IsValid reports whether the byte names a known direction.
func (d VarDir) IsValid() bool {
	return d <= DirLinkage
}

func (d VarDir) String() string {
	names := [...]string{"implicit", "input", "output", "inout", "buffer", "linkage"}
	if int(d) < len(names) {
		return names[d]
	}

	return fmt.Sprintf("vardir(%d)", uint8(d))
}

// Compression selects a codec for chain payloads and hierarchy blocks.
type Compression uint8

const (
	// CompressionNone stores payloads verbatim.
	CompressionNone Compression = 0
	// CompressionZlib uses a zlib (RFC 1950) deflate stream.
	CompressionZlib Compression = 1
	// CompressionLz4 uses the LZ4 block format without length framing.
	CompressionLz4 Compression = 2
	// CompressionFastLz uses the FastLZ level-1 block format.
	CompressionFastLz Compression = 3
)

// Pack marker bytes stored in value-change blocks. The reference tools also
// emit '!' and '^' for zlib streams, which ParsePackMarker accepts.
const (
	packMarkerNone   byte = 0
	packMarkerZlib   byte = 'Z'
	packMarkerLz4    byte = '4'
	packMarkerFastLz byte = 'F'
)

// PackMarker returns the marker byte written into a value-change block for
// this compression choice.
func (c Compression) PackMarker() byte {
	switch c {
	case CompressionZlib:
		return packMarkerZlib
	case CompressionLz4:
		return packMarkerLz4
	case CompressionFastLz:
		return packMarkerFastLz
	default:
		return packMarkerNone
	}
}

// ParsePackMarker maps a stored marker byte back to a compression choice.
// The second result is false for unknown markers.
//
// Raw chain segments are self-describing (their stored length prefix is
// zero), so the zero marker decodes as CompressionNone while still letting a
// block omit compression entirely.
func ParsePackMarker(marker byte) (Compression, bool) {
	switch marker {
	case packMarkerNone:
		return CompressionNone, true
	case packMarkerZlib, '!', '^':
		return CompressionZlib, true
	case packMarkerLz4:
		return CompressionLz4, true
	case packMarkerFastLz:
		return CompressionFastLz, true
	default:
		return CompressionNone, false
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionLz4:
		return "lz4"
	case CompressionFastLz:
		return "fastlz"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// HierarchyCompression selects the on-disk form of the hierarchy block.
type HierarchyCompression uint8

const (
	// HierarchyRaw stores the token stream verbatim under BlockHierarchy.
	HierarchyRaw HierarchyCompression = 0
	// HierarchyZlib deflates the token stream under BlockHierarchy, falling
	// back to raw when compression does not shrink it.
	HierarchyZlib HierarchyCompression = 1
	// HierarchyLz4 stores one LZ4 pass under BlockHierarchyLz4.
	HierarchyLz4 HierarchyCompression = 2
	// HierarchyLz4Duo stores two LZ4 passes under BlockHierarchyLz4Duo.
	HierarchyLz4Duo HierarchyCompression = 3
)

func (c HierarchyCompression) String() string {
	switch c {
	case HierarchyRaw:
		return "raw"
	case HierarchyZlib:
		return "zlib"
	case HierarchyLz4:
		return "lz4"
	case HierarchyLz4Duo:
		return "lz4duo"
	default:
		return fmt.Sprintf("hierarchy-compression(%d)", uint8(c))
	}
}
