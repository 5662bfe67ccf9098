package section

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

// endianTestValue is written to the header so readers can verify the file's
// byte order. The payload stores the IEEE 754 bits of Euler's number.
var endianTestValue = math.Float64bits(math.E)

// Header is the fixed-size header block payload at the start of every trace.
//
// EndTime and VcSectionCount are back-patched by the writer when the file is
// finalized; until then they read as the values present at header emission.
type Header struct {
	StartTime      uint64
	EndTime        uint64
	MemoryUsed     uint64
	ScopeCount     uint64
	VarCount       uint64
	MaxHandle      uint64
	VcSectionCount uint64
	// TimescaleExponent is the power of ten, in seconds, of one time unit.
	// -9 means nanoseconds, -12 picoseconds.
	TimescaleExponent int8
	Version           string
	Date              string
	FileType          format.FileType
	// TimeZero is added to every timestamp the file stores.
	TimeZero uint64
}

// Encode serializes the header into its fixed 321-byte payload.
//
// Version and Date are truncated to their field sizes and NUL-padded.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderPayloadLen)
	bigEndian.PutUint64(buf[0:8], h.StartTime)
	bigEndian.PutUint64(buf[8:16], h.EndTime)
	bigEndian.PutUint64(buf[16:24], endianTestValue)
	bigEndian.PutUint64(buf[24:32], h.MemoryUsed)
	bigEndian.PutUint64(buf[32:40], h.ScopeCount)
	bigEndian.PutUint64(buf[40:48], h.VarCount)
	bigEndian.PutUint64(buf[48:56], h.MaxHandle)
	bigEndian.PutUint64(buf[56:64], h.VcSectionCount)
	buf[64] = byte(h.TimescaleExponent)
	putCString(buf[65:65+VersionFieldLen], h.Version)
	putCString(buf[65+VersionFieldLen:65+VersionFieldLen+DateFieldLen], h.Date)
	buf[312] = byte(h.FileType)
	bigEndian.PutUint64(buf[313:321], h.TimeZero)

	return buf
}

// DecodeHeader parses a header block payload.
//
// The endian test field must contain Euler's number in either byte order;
// anything else means the payload is not a trace header.
func DecodeHeader(payload []byte) (Header, error) {
	if len(payload) != HeaderPayloadLen {
		return Header{}, fmt.Errorf("%w: header payload is %d bytes, expected %d",
			errs.ErrCorruptData, len(payload), HeaderPayloadLen)
	}

	marker := bigEndian.Uint64(payload[16:24])
	if marker != endianTestValue && bits.ReverseBytes64(marker) != endianTestValue {
		return Header{}, fmt.Errorf("%w: endian test field mismatch", errs.ErrCorruptData)
	}

	h := Header{
		StartTime:         bigEndian.Uint64(payload[0:8]),
		EndTime:           bigEndian.Uint64(payload[8:16]),
		MemoryUsed:        bigEndian.Uint64(payload[24:32]),
		ScopeCount:        bigEndian.Uint64(payload[32:40]),
		VarCount:          bigEndian.Uint64(payload[40:48]),
		MaxHandle:         bigEndian.Uint64(payload[48:56]),
		VcSectionCount:    bigEndian.Uint64(payload[56:64]),
		TimescaleExponent: int8(payload[64]),
		Version:           cString(payload[65 : 65+VersionFieldLen]),
		Date:              cString(payload[65+VersionFieldLen : 65+VersionFieldLen+DateFieldLen]),
		FileType:          format.FileType(payload[312]),
		TimeZero:          bigEndian.Uint64(payload[313:321]),
	}

	return h, nil
}

func putCString(dst []byte, value string) {
	n := copy(dst, value)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func cString(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}

	return string(src)
}
