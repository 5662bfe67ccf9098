// Package encoding implements the variable-length integer primitives used
// throughout the FST container.
//
// Unsigned varints are LEB128: seven payload bits per byte, least significant
// group first, with the high bit flagging continuation. Signed varints are
// sign-extended LEB128; the final byte's second-highest payload bit carries
// the sign, so small magnitudes of either sign stay short. Both forms are
// capped at MaxVarintLen bytes.
package encoding
