// Package origin owns origin normalization and whitelist checks.
//
// Ownership boundary:
// - origin normalization (scheme + host [+ port])
// - one-way hashing shared by build-time and runtime
// - immutable whitelist membership
//
// The hash is an obfuscation device. A whitelist over a small enumerable
// origin space can be reversed and must not be treated as access control
// stronger than origin-string matching.
package origin
