package format

import (
	"fmt"
	"strconv"

	"github.com/arloliu/wavefst/errs"
)

// Handle identifies a signal. Handles are 1-based; zero is never assigned.
type Handle uint32

// GeomKind classifies how a signal's values are stored.
type GeomKind uint8

const (
	// GeomFixed is a fixed-width bit vector (width in bits).
	GeomFixed GeomKind = 0
	// GeomReal is an IEEE-754 double, encoded as 0 in the geometry table.
	GeomReal GeomKind = 1
	// GeomVariable is a variable-length payload, encoded as 0xFFFFFFFF.
	GeomVariable GeomKind = 2
)

// Geometry describes the storage layout of one signal.
type Geometry struct {
	Kind  GeomKind
	Width uint32 // bits, only meaningful for GeomFixed
}

// FixedGeometry returns a fixed-width geometry entry.
func FixedGeometry(width uint32) Geometry { return Geometry{Kind: GeomFixed, Width: width} }

// RealGeometry returns the geometry entry for a real-valued signal.
func RealGeometry() Geometry { return Geometry{Kind: GeomReal} }

// VariableGeometry returns the geometry entry for a variable-length signal.
func VariableGeometry() Geometry { return Geometry{Kind: GeomVariable} }

// FrameLen returns the number of bytes this signal occupies in the initial
// value frame of a value-change block.
func (g Geometry) FrameLen() int {
	switch g.Kind {
	case GeomFixed:
		return int(g.Width)
	case GeomReal:
		return 8
	default:
		return 0
	}
}

func (g Geometry) String() string {
	switch g.Kind {
	case GeomFixed:
		return fmt.Sprintf("fixed(%d)", g.Width)
	case GeomReal:
		return "real"
	default:
		return "variable"
	}
}

// ValueKind discriminates the payload stored in a SignalValue.
type ValueKind uint8

const (
	// KindBit is a single ASCII state character.
	KindBit ValueKind = 0
	// KindVector is an ASCII bit string, one character per bit, MSB first.
	KindVector ValueKind = 1
	// KindPackedBits is a packed two-state vector, MSB-first within each byte.
	KindPackedBits ValueKind = 2
	// KindReal is an IEEE-754 double.
	KindReal ValueKind = 3
	// KindBytes is a raw byte payload for variable-length signals.
	KindBytes ValueKind = 4
)

func (k ValueKind) String() string {
	switch k {
	case KindBit:
		return "bit"
	case KindVector:
		return "vector"
	case KindPackedBits:
		return "packed-bits"
	case KindReal:
		return "real"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("valuekind(%d)", uint8(k))
	}
}

// SpecialBitChars lists the non-two-state bit characters in the order their
// indices are encoded inside single-bit chain markers.
const SpecialBitChars = "xzhuwl-?"

// SpecialBitIndex returns the marker index for a non-0/1 bit character.
// Uppercase aliases are folded to lowercase. The second result is false when
// the character has no encoding.
func SpecialBitIndex(ch byte) (uint8, bool) {
	if ch >= 'A' && ch <= 'Z' {
		ch += 'a' - 'A'
	}
	for i := 0; i < len(SpecialBitChars); i++ {
		if SpecialBitChars[i] == ch {
			return uint8(i), true
		}
	}

	return 0, false
}

// SignalValue is one value carried by a change event or a frame entry.
//
// Only the fields relevant for Kind are populated: Bit for KindBit, Data (and
// Width for KindPackedBits) for the vector and byte kinds, Real for KindReal.
type SignalValue struct {
	Kind  ValueKind
	Bit   byte
	Width uint32
	Data  []byte
	Real  float64
}

// BitValue returns a single-bit value for the given state character.
func BitValue(ch byte) SignalValue {
	return SignalValue{Kind: KindBit, Bit: ch}
}

// VectorValue returns an ASCII vector value. The slice is not copied.
func VectorValue(bits []byte) SignalValue {
	return SignalValue{Kind: KindVector, Width: uint32(len(bits)), Data: bits}
}

// PackedValue returns a packed two-state vector value. The slice is not copied.
func PackedValue(width uint32, bits []byte) SignalValue {
	return SignalValue{Kind: KindPackedBits, Width: width, Data: bits}
}

// RealValue returns a real-valued sample.
func RealValue(v float64) SignalValue {
	return SignalValue{Kind: KindReal, Real: v}
}

// BytesValue returns a variable-length payload. The slice is not copied.
func BytesValue(data []byte) SignalValue {
	return SignalValue{Kind: KindBytes, Width: uint32(len(data)), Data: data}
}

// Validate checks that the value is internally consistent.
func (v SignalValue) Validate() error {
	switch v.Kind {
	case KindBit:
		if v.Bit != '0' && v.Bit != '1' {
			if _, ok := SpecialBitIndex(v.Bit); !ok {
				return fmt.Errorf("%w: bit state %q", errs.ErrInvalidValue, v.Bit)
			}
		}
	case KindVector:
		if len(v.Data) == 0 {
			return fmt.Errorf("%w: empty vector payload", errs.ErrInvalidValue)
		}
	case KindPackedBits:
		if v.Width == 0 {
			return fmt.Errorf("%w: packed vector width may not be zero", errs.ErrInvalidValue)
		}
		need := PackedLen(v.Width)
		if len(v.Data) < need {
			return fmt.Errorf("%w: packed payload shorter than %d bytes", errs.ErrInvalidValue, need)
		}
	case KindReal, KindBytes:
	default:
		return fmt.Errorf("%w: unknown value kind %d", errs.ErrInvalidValue, uint8(v.Kind))
	}

	return nil
}

// Clone returns a deep copy of the value, detaching it from any backing
// buffer owned by a decoder.
func (v SignalValue) Clone() SignalValue {
	if v.Data == nil {
		return v
	}
	out := v
	out.Data = append([]byte(nil), v.Data...)

	return out
}

// String renders the value for diagnostics: bit and vector values as their
// ASCII form, packed vectors as hex with a width prefix.
func (v SignalValue) String() string {
	switch v.Kind {
	case KindBit:
		return string(v.Bit)
	case KindVector:
		return string(v.Data)
	case KindPackedBits:
		return fmt.Sprintf("%db'%x", v.Width, v.Data)
	case KindReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	default:
		return fmt.Sprintf("%q", v.Data)
	}
}

// PackedLen returns the number of bytes needed to pack width bits, with a
// minimum of one byte.
func PackedLen(width uint32) int {
	n := (int(width) + 7) / 8
	if n == 0 {
		n = 1
	}

	return n
}

// ValueChange is one decoded event: the value of a signal at a timestamp.
//
// AliasOf is zero for canonical events. For fan-out events generated on
// behalf of an alias it names the canonical handle whose chain produced the
// value.
type ValueChange struct {
	Time    uint64
	Handle  Handle
	AliasOf Handle
	Value   SignalValue
}

// BlackoutEvent records a transition of the dump activity state: Active true
// means dumping resumed at Time, false means it was suspended.
type BlackoutEvent struct {
	Active bool
	Time   uint64
}
