// Package host owns the host side of framelink: the stateless message
// listener and the HTTP surface that carries channel and legacy traffic.
package host
