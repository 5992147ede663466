// Package direct grants same-origin contexts a live handle on the host
// registry. When origins differ only by subdomain the requester shortens its
// own domain once and retries.
package direct

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/danmuck/framelink/internal/endpoint"
	"github.com/danmuck/framelink/internal/origin"
)

var (
	ErrCrossOrigin = errors.New("direct: cross-origin access refused")
	ErrNoParent    = errors.New("direct: no parent")
)

// Parent exposes a host registry to same-origin requesters.
type Parent interface {
	Registry(requesterOrigin string) (*endpoint.Registry, error)
}

// Host is a Parent backed by a registry and the host's effective origin.
type Host struct {
	effective string
	registry  *endpoint.Registry
}

// NewHost returns a Parent for registry at hostOrigin. Set shorten to model a
// host that reduced its own domain to the registrable suffix.
func NewHost(hostOrigin string, registry *endpoint.Registry, shorten bool) *Host {
	effective, _ := origin.Normalize(hostOrigin)
	if shorten {
		if short, ok := Shorten(effective); ok {
			effective = short
		}
	}
	return &Host{effective: effective, registry: registry}
}

// Origin is the effective origin requesters must match.
func (h *Host) Origin() string {
	return h.effective
}

func (h *Host) Registry(requesterOrigin string) (*endpoint.Registry, error) {
	if h == nil || h.registry == nil || h.effective == "" {
		return nil, ErrNoParent
	}
	got, ok := origin.Normalize(requesterOrigin)
	if !ok || got != h.effective {
		return nil, ErrCrossOrigin
	}
	return h.registry, nil
}

// Shorten keeps the last two labels of the origin host. It reports false when
// the host is already that short or is an IP address.
func Shorten(raw string) (string, bool) {
	normalized, ok := origin.Normalize(raw)
	if !ok {
		return "", false
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return "", false
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return "", false
	}
	short := strings.Join(labels[len(labels)-2:], ".")
	if port := u.Port(); port != "" {
		short = net.JoinHostPort(short, port)
	}
	return u.Scheme + "://" + short, true
}

// Connect asks parent for its registry as selfOrigin, retrying once with the
// shortened origin. It returns the origin that was granted access.
func Connect(parent Parent, selfOrigin string) (*endpoint.Registry, string, error) {
	if parent == nil {
		return nil, "", ErrNoParent
	}
	reg, err := parent.Registry(selfOrigin)
	if err == nil {
		return reg, selfOrigin, nil
	}
	short, ok := Shorten(selfOrigin)
	if !ok {
		return nil, "", err
	}
	reg, err = parent.Registry(short)
	if err != nil {
		return nil, "", err
	}
	return reg, short, nil
}
