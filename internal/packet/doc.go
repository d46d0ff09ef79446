// Package packet encodes, decodes and hashes the cross-chain message
// envelope.
//
// Wire layout (big-endian, no length prefixes, no padding):
//
//	nonce(8) | srcChainId(2) | srcAddress | dstChainId(2) | dstAddress | payload
//
// Address widths are not carried on the wire. Decoding needs them from the
// caller, either as a constant or as a resolver keyed by chain id. Hashes
// are SHA3-256 (FIPS 202, not Keccak) rendered as lowercase hex.
package packet
