package legacy

import (
	"net/http"
	"strings"

	"github.com/danmuck/framelink/internal/endpoint"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/origin"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Receiver is the host-side end of a legacy navigation.
type Receiver struct {
	dispatcher *endpoint.Dispatcher
	whitelist  *origin.Whitelist
}

func NewReceiver(dispatcher *endpoint.Dispatcher, whitelist *origin.Whitelist) *Receiver {
	return &Receiver{dispatcher: dispatcher, whitelist: whitelist}
}

// Receive decodes fragment and dispatches it. senderOrigin must be a
// whitelisted origin; an empty or malformed one is rejected.
func (r *Receiver) Receive(fragment, senderOrigin string) error {
	if !r.whitelist.IsWhitelisted(senderOrigin) {
		observability.RecordMessage("legacy", observability.OutcomeUnwhitelisted)
		return protocol.NewError(protocol.KindUnwhitelistedOrigin, "legacy: sender origin not whitelisted", map[string]any{
			"origin": senderOrigin,
		})
	}
	env, err := ParseFragment(fragment)
	if err != nil {
		observability.RecordMessage("legacy", observability.OutcomeMalformed)
		return err
	}
	observability.RecordMessage("legacy", observability.OutcomeAccepted)
	r.dispatcher.Deliver(env, senderOrigin)
	return nil
}

// Handle serves receiver navigations.
func (r *Receiver) Handle(c *gin.Context) {
	sender := senderOrigin(c.Request)
	err := r.Receive(c.GetHeader(FragmentHeader), sender)
	switch protocol.KindOf(err) {
	case "":
		c.Status(http.StatusNoContent)
	case protocol.KindUnwhitelistedOrigin:
		log.Debug().Str("origin", sender).Msg("legacy call from unwhitelisted origin dropped")
		c.Status(http.StatusForbidden)
	default:
		log.Warn().Err(err).Str("origin", sender).Msg("legacy call dropped")
		c.Status(http.StatusBadRequest)
	}
}

func senderOrigin(req *http.Request) string {
	for _, raw := range []string{req.Header.Get("Origin"), req.Referer()} {
		raw = strings.TrimSpace(raw)
		if raw == "" || raw == "null" {
			continue
		}
		if normalized, ok := origin.Normalize(raw); ok {
			return normalized
		}
		return raw
	}
	return ""
}
