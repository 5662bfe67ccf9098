package bitpack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// packScalar is the obvious bit-by-bit reference for the SWAR fast path.
func packScalar(bits []byte) ([]byte, bool) {
	out := make([]byte, PackedLen(uint32(len(bits))))
	for i, ch := range bits {
		switch ch {
		case '0':
		case '1':
			out[i/8] |= 1 << (7 - i%8)
		default:
			return nil, false
		}
	}

	return out, true
}

func unpackScalar(packed []byte, width uint32) []byte {
	out := make([]byte, width)
	for i := range out {
		if i/8 < len(packed) && packed[i/8]&(1<<(7-i%8)) != 0 {
			out[i] = '1'
		} else {
			out[i] = '0'
		}
	}

	return out
}

func TestPackedLen(t *testing.T) {
	tests := []struct {
		width    uint32
		expected int
	}{
		{0, 1},
		{1, 1},
		{8, 1},
		{9, 2},
		{16, 2},
		{17, 3},
		{64, 8},
		{65, 9},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, PackedLen(tt.width), "width %d", tt.width)
	}
}

func TestPack_MatchesScalar(t *testing.T) {
	// Deterministic bit patterns across widths that straddle the 8-char
	// SWAR boundary.
	state := uint32(12345)
	next := func() byte {
		state = state*1103515245 + 12345
		return '0' + byte(state>>30&1)
	}

	for width := 1; width <= 131; width++ {
		bits := make([]byte, width)
		for i := range bits {
			bits[i] = next()
		}

		fast, ok := Pack(nil, bits)
		require.True(t, ok, "width %d", width)
		want, ok := packScalar(bits)
		require.True(t, ok)
		require.Equal(t, want, fast, "width %d", width)
	}
}

func TestPack_RejectsNonBinary(t *testing.T) {
	tests := []struct {
		name string
		bits string
	}{
		{name: "x state", bits: "0101x101"},
		{name: "z state in tail", bits: "010101010z"},
		{name: "high-impedance full word", bits: "zzzzzzzz"},
		{name: "letter", bits: "0101a10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := []byte{0xEE}
			out, ok := Pack(dst, []byte(tt.bits))
			require.False(t, ok)
			// A rejected pack must leave dst untouched.
			require.Equal(t, []byte{0xEE}, out)
		})
	}
}

func TestUnpack_MatchesScalar(t *testing.T) {
	state := uint32(777)
	for width := uint32(1); width <= 131; width++ {
		packed := make([]byte, PackedLen(width))
		for i := range packed {
			state = state*1664525 + 1013904223
			packed[i] = byte(state >> 24)
		}
		// Zero the unused tail bits like the writer does.
		if rem := width % 8; rem != 0 {
			packed[len(packed)-1] &= byte(0xFF << (8 - rem))
		}

		require.Equal(t, unpackScalar(packed, width), Unpack(nil, packed, width),
			"width %d", width)
	}
}

func TestPackUnpack_RoundTrip(t *testing.T) {
	tests := []string{
		"0",
		"1",
		"10110011",
		"101100110",
		"1111111111111111",
		"0000000000000001",
		"110010101111000011001010111100001",
	}
	for _, bits := range tests {
		packed, ok := Pack(nil, []byte(bits))
		require.True(t, ok)
		require.Len(t, packed, PackedLen(uint32(len(bits))))
		require.Equal(t, bits, string(Unpack(nil, packed, uint32(len(bits)))))
	}
}
