package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
)

// MaxMessageBytes bounds one decoded message.
const MaxMessageBytes = 1 << 20

type wireEnvelope struct {
	Kind    EnvelopeKind       `json:"kind"`
	Target  string             `json:"target,omitempty"`
	Payload Payload            `json:"payload,omitempty"`
	Calls   map[string]Payload `json:"calls,omitempty"`
}

// IsReady reports whether data is the handshake sentinel.
func IsReady(data string) bool {
	return data == ReadySentinel
}

// Encode renders env in its tagged wire form.
func Encode(env Envelope) (string, error) {
	if err := env.Validate(); err != nil {
		return "", err
	}
	wire := wireEnvelope{Kind: env.Kind}
	switch env.Kind {
	case KindSingle:
		wire.Target = env.Target
		wire.Payload = env.Payload
	case KindBulk:
		wire.Calls = env.Calls
	}
	out, err := json.Marshal(wire)
	if err != nil {
		return "", WrapError(err, KindMalformedPayload, "protocol: encode envelope", map[string]any{
			"targets": env.Targets(),
		})
	}
	return string(out), nil
}

// Decode parses one message into an envelope. It accepts the tagged form,
// an object carrying LegacyTargetKey next to user fields, and a bare
// target->payload object.
func Decode(data string) (Envelope, error) {
	if len(data) > MaxMessageBytes {
		return Envelope{}, NewError(KindMalformedPayload, "protocol: message too large", map[string]any{
			"bytes": len(data),
		})
	}
	raw := bytes.TrimSpace([]byte(data))
	if len(raw) == 0 || raw[0] != '{' {
		return Envelope{}, NewError(KindMalformedPayload, "protocol: message is not a json object", nil)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, WrapError(err, KindMalformedPayload, "protocol: parse message", nil)
	}

	var env Envelope
	var err error
	switch {
	case isTagged(fields):
		env, err = decodeTagged(raw)
	case hasStringField(fields, LegacyTargetKey):
		env, err = decodeInlineTarget(fields)
	default:
		env, err = decodeBareBulk(fields)
	}
	if err != nil {
		return Envelope{}, err
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func isTagged(fields map[string]json.RawMessage) bool {
	rawKind, ok := fields["kind"]
	if !ok {
		return false
	}
	var kind string
	if err := json.Unmarshal(rawKind, &kind); err != nil {
		return false
	}
	return kind == string(KindSingle) || kind == string(KindBulk)
}

func hasStringField(fields map[string]json.RawMessage, key string) bool {
	rawValue, ok := fields[key]
	if !ok {
		return false
	}
	var v string
	return json.Unmarshal(rawValue, &v) == nil
}

func decodeTagged(raw []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Envelope{}, WrapError(err, KindMalformedPayload, "protocol: parse tagged envelope", nil)
	}
	if wire.Kind == KindSingle {
		return Single(wire.Target, wire.Payload), nil
	}
	return Bulk(wire.Calls), nil
}

func decodeInlineTarget(fields map[string]json.RawMessage) (Envelope, error) {
	var target string
	_ = json.Unmarshal(fields[LegacyTargetKey], &target)
	payload := make(Payload, len(fields))
	for key, value := range fields {
		if key == LegacyTargetKey {
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return Envelope{}, WrapError(err, KindMalformedPayload, "protocol: parse payload field", map[string]any{
				"field": key,
			})
		}
		payload[key] = v
	}
	return Single(strings.TrimSpace(target), payload), nil
}

func decodeBareBulk(fields map[string]json.RawMessage) (Envelope, error) {
	calls := make(map[string]Payload, len(fields))
	for target, value := range fields {
		var payload Payload
		if err := json.Unmarshal(value, &payload); err != nil {
			return Envelope{}, WrapError(err, KindMalformedPayload, "protocol: bulk entry is not an object", map[string]any{
				"target": target,
			})
		}
		calls[target] = payload
	}
	return Bulk(calls), nil
}
