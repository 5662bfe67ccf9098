package compress

// ZstdCodec compresses snapshot exports with Zstandard.
//
// Zstd is not a wire compression of the container format; it exists for the
// owned snapshot serialization, whose frames carry their own length and
// therefore bypass the Codec interface. The default build uses the pure-Go
// backend; the gozstd build tag swaps in the cgo binding.
type ZstdCodec struct{}

// NewZstdCodec creates a new zstd codec.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{}
}
