// Package bitpack converts between ASCII '0'/'1' vectors and MSB-first packed
// bit bytes, the two on-disk encodings for fixed-width logic vectors.
//
// A width-w vector packs into max(ceil(w/8), 1) bytes. Bit i of the vector
// (left to right) lands in bit 7-(i%8) of byte i/8; unused trailing bits of
// the last byte are zero.
package bitpack

import "encoding/binary"

// PackedLen returns the packed byte count for a bit vector of the given
// width. Width zero still occupies one byte.
func PackedLen(width uint32) int {
	n := int(width+7) / 8
	if n == 0 {
		n = 1
	}

	return n
}

// Pack converts an ASCII bit vector into packed form appended to dst.
//
// Returns (dst, false) with dst unchanged when bits contains any character
// other than '0' or '1'; such vectors must stay in ASCII form because packed
// bytes cannot represent x/z/h/u states.
func Pack(dst, bits []byte) ([]byte, bool) {
	mark := len(dst)

	// Process 8 characters per iteration using the SWAR multiply trick: the
	// low bit of each lane, multiplied by 0x8040201008040201, gathers into
	// the top byte MSB-first. Lanes never carry because only one bit per
	// lane is set.
	for len(bits) >= 8 {
		v := binary.LittleEndian.Uint64(bits)
		if v&0xFEFEFEFEFEFEFEFE != 0x3030303030303030 {
			return dst[:mark], false
		}
		packed := byte((v & 0x0101010101010101) * 0x8040201008040201 >> 56)
		dst = append(dst, packed)
		bits = bits[8:]
	}

	if len(bits) > 0 {
		var tail byte
		for i, ch := range bits {
			switch ch {
			case '0':
			case '1':
				tail |= 1 << (7 - i)
			default:
				return dst[:mark], false
			}
		}
		dst = append(dst, tail)
	}
	if len(dst) == mark {
		dst = append(dst, 0)
	}

	return dst, true
}

// Unpack expands packed bytes into width ASCII characters appended to dst.
func Unpack(dst, packed []byte, width uint32) []byte {
	remaining := int(width)
	for _, b := range packed {
		if remaining <= 0 {
			break
		}
		if remaining >= 8 {
			// Inverse SWAR: spread the 8 bits into byte lanes, then turn
			// each into '0' or '1'.
			spread := (uint64(b) * 0x8040201008040201) & 0x8080808080808080
			var chunk [8]byte
			binary.LittleEndian.PutUint64(chunk[:], spread>>7|0x3030303030303030)
			dst = append(dst, chunk[:]...)
			remaining -= 8

			continue
		}
		for i := 0; i < remaining; i++ {
			dst = append(dst, '0'+(b>>(7-i))&1)
		}
		remaining = 0
	}
	for remaining > 0 {
		dst = append(dst, '0')
		remaining--
	}

	return dst
}
