// Package framelink lets a host context and the embedded contexts it contains
// exchange named calls across an origin boundary.
//
// A host facade registers endpoints and listens for messages. An embedded
// facade picks the strongest transport it can reach once, at construction:
// a direct handle on a same-origin host registry, a message channel that
// requires a ready handshake, or legacy frame navigation. Malformed input,
// unknown endpoints and handler panics are logged and swallowed; Send only
// returns an error when a legacy address fails validation.
//
// The origin whitelist stores SHA-1 hashes of normalized origins. That is
// obfuscation of the list, not access control.
package framelink

// Version is the library version reported by hosts.
const Version = "0.1.0"
