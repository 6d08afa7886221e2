// Package transport carries vrc20 messages over TCP inside frames.
//
// Ownership boundary:
// - Server: one Processor call per request frame, event fan-out
// - Client: request/response correlation by message id, event stream
// - retry/backoff for dialing
//
// The caller address travels in the frame auth block. Frames without auth
// act as the zero address.
package transport
