// Package protocol groups the wire primitives used by vrc20.
//
// Ownership boundary:
// - codec: fixed-width scalar and tuple encoding
// - prefix: the 128-bit protocol tag
// - frame: transport framing around one vrc20 message
package protocol
