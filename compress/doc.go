// Package compress provides the compression codecs used by the FST container.
//
// Compression in the container is always transparent and length-prefixed: the
// enclosing section records both the stored and the uncompressed byte counts,
// so decoders know the exact output size up front and writers fall back to
// raw storage whenever compression fails to shrink a payload.
//
// Supported algorithms:
//   - None: verbatim storage
//   - Zlib: RFC 1950 deflate streams (geometry, hierarchy, frames, time tables)
//   - LZ4: raw block format without length framing (hierarchy and chains)
//   - FastLZ: level-1 block format (chains)
//
// # Usage
//
//	codec, err := compress.GetCodec(format.CompressionZlib)
//	if err != nil {
//	    return err
//	}
//	compressed, err := codec.Compress(payload)
//	...
//	restored, err := codec.Decompress(compressed, len(payload))
//
// All codecs are stateless values and safe for concurrent use; internal
// scratch state is pooled.
package compress
