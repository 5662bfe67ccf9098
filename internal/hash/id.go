// Package hash derives the 64-bit identifiers used for signal path lookup.
package hash

import "github.com/cespare/xxhash/v2"

// PathID computes the xxHash64 of a full dotted signal path. Collisions are
// possible in principle; callers that index by PathID must detect them and
// fall back to exact name matching.
func PathID(path string) uint64 {
	return xxhash.Sum64String(path)
}
