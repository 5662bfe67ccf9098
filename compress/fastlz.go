package compress

import (
	"fmt"

	"github.com/arloliu/wavefst/errs"
)

// FastLZ level-1 block format parameters. The opcode stream is a sequence of
// literal runs (top three bits zero, run length = low5 + 1) and match ops
// (top three bits = length code, low five bits = high distance bits). The top
// three bits of the very first byte double as the format level, which forces
// every stream to open with a literal run.
const (
	fastlzMinMatch   = 3
	fastlzMaxMatch   = 264  // code 7 + 255 extension + base 2
	fastlzMaxRun     = 32   // longest literal run per opcode
	fastlzMaxDist    = 8192 // distance - 1 must fit in 13 bits
	fastlzHashLog    = 13
	fastlzHashSize   = 1 << fastlzHashLog
	fastlzHashFactor = 2654435769
)

// FastLZCodec implements the FastLZ level-1 block format used by 'F'-marked
// value-change chains. Level-2 streams are recognized but not decoded.
type FastLZCodec struct{}

var _ Codec = (*FastLZCodec)(nil)

// NewFastLZCodec creates a new FastLZ level-1 codec.
func NewFastLZCodec() FastLZCodec {
	return FastLZCodec{}
}

func fastlzHash(seq uint32) uint32 {
	return (seq * fastlzHashFactor) >> (32 - fastlzHashLog)
}

// Compress encodes data as a FastLZ level-1 stream using a greedy
// single-entry hash table matcher.
func (c FastLZCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out := make([]byte, 0, len(data)+len(data)/fastlzMaxRun+4)
	var htab [fastlzHashSize]int32
	for i := range htab {
		htab[i] = -1
	}

	anchor := 0
	ip := 0
	limit := len(data) - fastlzMinMatch
	for ip < limit {
		seq := uint32(data[ip]) | uint32(data[ip+1])<<8 | uint32(data[ip+2])<<16
		h := fastlzHash(seq)
		ref := int(htab[h])
		htab[h] = int32(ip)

		if ref < 0 || ip-ref > fastlzMaxDist ||
			data[ref] != data[ip] || data[ref+1] != data[ip+1] || data[ref+2] != data[ip+2] {
			ip++
			continue
		}

		out = appendFastlzLiterals(out, data[anchor:ip])

		mlen := fastlzMinMatch
		maxLen := len(data) - ip
		if maxLen > fastlzMaxMatch {
			maxLen = fastlzMaxMatch
		}
		for mlen < maxLen && data[ref+mlen] == data[ip+mlen] {
			mlen++
		}
		out = appendFastlzMatch(out, mlen, ip-ref)
		ip += mlen
		anchor = ip
	}
	out = appendFastlzLiterals(out, data[anchor:])

	return out, nil
}

// Decompress expands a FastLZ stream into exactly uncompressedLen bytes.
func (c FastLZCodec) Decompress(data []byte, uncompressedLen int) ([]byte, error) {
	if uncompressedLen == 0 && len(data) == 0 {
		return nil, nil
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty fastlz payload", errs.ErrCorruptData)
	}

	switch level := data[0] >> 5; level {
	case 0:
	case 1:
		return nil, fmt.Errorf("%w: fastlz level-2 stream", errs.ErrUnsupportedFeature)
	default:
		return nil, fmt.Errorf("%w: fastlz level marker %d", errs.ErrCorruptData, level)
	}

	out := make([]byte, 0, uncompressedLen)
	ip := 1
	ctrl := int(data[0] & 31)
	for {
		if ctrl >= 32 {
			length := (ctrl >> 5) - 1
			ofs := (ctrl & 31) << 8
			if length == 7-1 {
				if ip >= len(data) {
					return nil, fmt.Errorf("%w: truncated fastlz match", errs.ErrCorruptData)
				}
				length += int(data[ip])
				ip++
			}
			if ip >= len(data) {
				return nil, fmt.Errorf("%w: truncated fastlz match", errs.ErrCorruptData)
			}
			ref := len(out) - ofs - 1 - int(data[ip])
			ip++
			length += 3
			if ref < 0 {
				return nil, fmt.Errorf("%w: fastlz match before stream start", errs.ErrCorruptData)
			}
			if len(out)+length > uncompressedLen {
				return nil, fmt.Errorf("%w: fastlz output exceeds %d bytes",
					errs.ErrCorruptData, uncompressedLen)
			}
			// Byte-wise copy; matches may overlap their own output.
			for i := 0; i < length; i++ {
				out = append(out, out[ref+i])
			}
		} else {
			run := ctrl + 1
			if ip+run > len(data) {
				return nil, fmt.Errorf("%w: truncated fastlz literal run", errs.ErrCorruptData)
			}
			if len(out)+run > uncompressedLen {
				return nil, fmt.Errorf("%w: fastlz output exceeds %d bytes",
					errs.ErrCorruptData, uncompressedLen)
			}
			out = append(out, data[ip:ip+run]...)
			ip += run
		}

		if ip >= len(data) {
			break
		}
		ctrl = int(data[ip])
		ip++
	}

	if len(out) != uncompressedLen {
		return nil, fmt.Errorf("%w: fastlz stream expands to %d bytes, expected %d",
			errs.ErrCorruptData, len(out), uncompressedLen)
	}

	return out, nil
}

func appendFastlzLiterals(dst, chunk []byte) []byte {
	for len(chunk) > 0 {
		n := len(chunk)
		if n > fastlzMaxRun {
			n = fastlzMaxRun
		}
		dst = append(dst, byte(n-1))
		dst = append(dst, chunk[:n]...)
		chunk = chunk[n:]
	}

	return dst
}

func appendFastlzMatch(dst []byte, length, dist int) []byte {
	e := dist - 1
	if length <= 8 {
		return append(dst, byte((length-2)<<5)|byte(e>>8), byte(e))
	}

	return append(dst, byte(7<<5)|byte(e>>8), byte(length-9), byte(e))
}
