// Package transport chooses how an embedded context reaches its host.
package transport

import (
	"github.com/danmuck/framelink/internal/endpoint"
	"github.com/danmuck/framelink/internal/transport/channel"
	"github.com/danmuck/framelink/internal/transport/direct"
	"github.com/rs/zerolog/log"
)

// Kind names a transport strategy.
type Kind string

const (
	KindNone    Kind = "none"
	KindDirect  Kind = "direct"
	KindChannel Kind = "channel"
	KindLegacy  Kind = "legacy"
)

func (k Kind) String() string {
	return string(k)
}

// Capabilities describes what an embedded context can reach.
type Capabilities struct {
	SelfOrigin string
	Parent     direct.Parent
	Port       channel.Port
	// Legacy is true when legacy frames and candidates are configured.
	Legacy bool
}

// Selection is the outcome of Select.
type Selection struct {
	Kind Kind
	// Registry is set for KindDirect.
	Registry *endpoint.Registry
	// GrantedOrigin is the origin direct access was granted to.
	GrantedOrigin string
	// Skipped records why each higher-priority strategy was passed over.
	Skipped map[Kind]string
}

// Select picks the strongest available strategy: direct, then channel, then
// legacy. It runs once per embedded context.
func Select(caps Capabilities) Selection {
	sel := Selection{Kind: KindNone, Skipped: make(map[Kind]string)}

	if caps.Parent == nil {
		sel.Skipped[KindDirect] = "no parent handle"
	} else if reg, granted, err := direct.Connect(caps.Parent, caps.SelfOrigin); err != nil {
		sel.Skipped[KindDirect] = err.Error()
	} else {
		sel.Kind = KindDirect
		sel.Registry = reg
		sel.GrantedOrigin = granted
		return sel
	}

	if caps.Port != nil {
		sel.Kind = KindChannel
		return sel
	}
	sel.Skipped[KindChannel] = "no message port"

	if caps.Legacy {
		sel.Kind = KindLegacy
		return sel
	}
	sel.Skipped[KindLegacy] = "legacy frames not configured"
	return sel
}

// Log writes the selection at debug level.
func (s Selection) Log() {
	ev := log.Debug().Str("transport", s.Kind.String())
	for kind, reason := range s.Skipped {
		ev = ev.Str("skipped_"+kind.String(), reason)
	}
	ev.Msg("transport selected")
}
