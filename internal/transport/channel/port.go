package channel

import (
	"errors"

	"github.com/danmuck/framelink/internal/origin"
)

// AnyOrigin posts without restricting the receiving origin.
const AnyOrigin = "*"

var (
	ErrPortClosed  = errors.New("channel: port closed")
	ErrNoSink      = errors.New("channel: event sink required")
	ErrInvalidURL  = errors.New("channel: invalid websocket url")
	ErrOriginUnset = errors.New("channel: own origin required")
)

// Port posts string messages to one remote context.
type Port interface {
	// PostMessage delivers data when targetOrigin is AnyOrigin or matches
	// the remote origin. Mismatched targets are dropped without error.
	PostMessage(data string, targetOrigin string) error
	// RemoteOrigin is the origin of the context the port delivers to.
	RemoteOrigin() string
}

// MessageEvent is the payload of an inbound message event.
type MessageEvent struct {
	Data   string
	Origin string
	Source Port
}

// Sink receives inbound message events.
type Sink interface {
	Emit(name string, data any)
}

func targetMatches(targetOrigin, remoteOrigin string) bool {
	if targetOrigin == AnyOrigin {
		return true
	}
	want, ok := origin.Normalize(targetOrigin)
	if !ok {
		return false
	}
	got, ok := origin.Normalize(remoteOrigin)
	return ok && want == got
}
