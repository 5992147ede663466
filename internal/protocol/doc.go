// Package protocol owns the cross-context wire contract.
//
// Ownership boundary:
// - call envelope shape (single / bulk)
// - ready sentinel for the channel handshake
// - error kinds shared by every transport
package protocol
