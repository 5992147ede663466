// Package session owns the embedded side of a channel session.
//
// Ownership boundary:
// - ready probe scheduling and its bound
// - the Uninitiated -> AwaitingReady -> Established state machine
// - the pending call queue replayed on establishment
//
// The host side keeps no session; see internal/host.
package session
