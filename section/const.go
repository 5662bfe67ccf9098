package section

const (
	// LengthFieldLen is the size of the section length field. The stored
	// length counts these 8 bytes but not the preceding type tag.
	LengthFieldLen = 8
	// EnvelopeLen is the size of a block envelope: type tag plus length.
	EnvelopeLen = 1 + LengthFieldLen

	// HeaderPayloadLen is the fixed size of the header block payload.
	HeaderPayloadLen = 321
	// HeaderSectionLength is the section length stored in a header block.
	HeaderSectionLength = HeaderPayloadLen + LengthFieldLen

	// VersionFieldLen and DateFieldLen size the NUL-padded string fields
	// inside the header payload.
	VersionFieldLen = 128
	DateFieldLen    = 119

	// Byte offsets into the header payload of the two fields the writer
	// back-patches when the file is finalized.
	HeaderEndTimeOffset        = 8
	HeaderVcSectionCountOffset = 56

	// VcTrailerLen is the size of the trailer closing a value-change block:
	// time table uncompressed length, compressed length and item count.
	VcTrailerLen = 24
	// MinVcPayloadLen is the smallest well-formed value-change payload:
	// the three leading uint64 fields plus the trailer.
	MinVcPayloadLen = 32

	// PackMarkerPrefix is the bias applied to chain offsets in the index so
	// that offset zero (the pack marker byte itself) is never addressed.
	PackMarkerPrefix = 1

	// GeometryPrefixLen covers the uncompressed length and max handle fields
	// that precede the geometry varint data.
	GeometryPrefixLen = 16

	// VariableWidthSentinel marks a variable-length geometry entry.
	VariableWidthSentinel = 0xFFFFFFFF
)
