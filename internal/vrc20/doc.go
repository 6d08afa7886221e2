// Package vrc20 owns the VRC-20 message contract.
//
// Ownership boundary:
// - operation catalog (discriminants and payload shapes)
// - request/response/event builders
// - diagnostic readers over built messages
// - the Processor that routes requests to a Ledger
//
// Every message is laid out as [tag:16][discriminant:1][payload]. Payload
// shapes are fixed per discriminant; strings carry a u32 length prefix.
package vrc20
