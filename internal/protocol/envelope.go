package protocol

import (
	"sort"
	"strings"
)

const (
	// ReadySentinel is the handshake probe and its reply.
	ReadySentinel = "FRAMELINK_READY"

	// LegacyTargetKey is accepted on decode for payloads that carry their
	// target inline next to user fields. It is never produced by Encode.
	LegacyTargetKey = "FRAMELINK_ENDPOINT"
)

// Payload is the JSON object handed to an endpoint.
type Payload = map[string]any

// EnvelopeKind tags the call envelope variant.
type EnvelopeKind string

const (
	KindSingle EnvelopeKind = "single"
	KindBulk   EnvelopeKind = "bulk"
)

// Envelope is one wire unit: either a single target/payload pair or a bulk
// mapping of independent targets to payloads.
type Envelope struct {
	Kind    EnvelopeKind
	Target  string
	Payload Payload
	Calls   map[string]Payload
}

// Call is one flattened target/payload pair of an envelope.
type Call struct {
	Target  string
	Payload Payload
}

func Single(target string, payload Payload) Envelope {
	return Envelope{
		Kind:    KindSingle,
		Target:  strings.TrimSpace(target),
		Payload: payload,
	}
}

func Bulk(calls map[string]Payload) Envelope {
	copied := make(map[string]Payload, len(calls))
	for target, payload := range calls {
		copied[strings.TrimSpace(target)] = payload
	}
	return Envelope{Kind: KindBulk, Calls: copied}
}

// Validate rejects envelopes that cannot address any endpoint.
func (e Envelope) Validate() error {
	switch e.Kind {
	case KindSingle:
		if e.Target == "" {
			return NewError(KindMalformedPayload, "protocol: single envelope missing target", nil)
		}
	case KindBulk:
		if len(e.Calls) == 0 {
			return NewError(KindMalformedPayload, "protocol: bulk envelope has no calls", nil)
		}
		for target := range e.Calls {
			if target == "" {
				return NewError(KindMalformedPayload, "protocol: bulk envelope has empty target", nil)
			}
		}
	default:
		return NewError(KindMalformedPayload, "protocol: unknown envelope kind", map[string]any{
			"kind": string(e.Kind),
		})
	}
	return nil
}

// Flatten lists the envelope calls. Bulk entries are returned sorted by target
// for stable logs; callers must not rely on any cross-entry ordering.
func (e Envelope) Flatten() []Call {
	switch e.Kind {
	case KindSingle:
		return []Call{{Target: e.Target, Payload: e.Payload}}
	case KindBulk:
		targets := make([]string, 0, len(e.Calls))
		for target := range e.Calls {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		out := make([]Call, 0, len(targets))
		for _, target := range targets {
			out = append(out, Call{Target: target, Payload: e.Calls[target]})
		}
		return out
	default:
		return nil
	}
}

// Targets lists every target named by the envelope.
func (e Envelope) Targets() []string {
	calls := e.Flatten()
	out := make([]string, 0, len(calls))
	for _, call := range calls {
		out = append(out, call.Target)
	}
	return out
}
