package host

import (
	"github.com/danmuck/framelink/internal/endpoint"
	"github.com/danmuck/framelink/internal/events"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/origin"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/transport/channel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Listener validates and dispatches inbound channel messages. It keeps no
// per-remote state: every message is checked on its own.
type Listener struct {
	whitelist  *origin.Whitelist
	dispatcher *endpoint.Dispatcher
	logger     zerolog.Logger
	listener   *events.Listener
}

func NewListener(whitelist *origin.Whitelist, dispatcher *endpoint.Dispatcher, logger *zerolog.Logger) *Listener {
	l := &Listener{
		whitelist:  whitelist,
		dispatcher: dispatcher,
		logger:     log.Logger,
	}
	if logger != nil {
		l.logger = *logger
	}
	l.listener = events.NewListener(func(ev events.Event) {
		if msg, ok := ev.Data.(channel.MessageEvent); ok {
			l.HandleMessage(msg)
		}
	})
	return l
}

// EventListener is the subscription handle for an events.Target.
func (l *Listener) EventListener() *events.Listener {
	return l.listener
}

// HandleMessage drops messages from unwhitelisted origins, answers ready
// probes and dispatches everything else.
func (l *Listener) HandleMessage(ev channel.MessageEvent) {
	if !l.whitelist.IsWhitelisted(ev.Origin) {
		observability.RecordMessage("channel", observability.OutcomeUnwhitelisted)
		l.logger.Debug().Str("origin", ev.Origin).Msg("message from unwhitelisted origin dropped")
		return
	}
	if protocol.IsReady(ev.Data) {
		observability.RecordMessage("channel", observability.OutcomeReady)
		if ev.Source == nil {
			l.logger.Debug().Str("origin", ev.Origin).Msg("ready probe without source")
			return
		}
		if err := ev.Source.PostMessage(protocol.ReadySentinel, ev.Origin); err != nil {
			l.logger.Debug().Err(err).Str("origin", ev.Origin).Msg("ready reply failed")
			return
		}
		l.logger.Debug().Str("origin", ev.Origin).Msg("ready probe answered")
		return
	}
	env, err := protocol.Decode(ev.Data)
	if err != nil {
		observability.RecordMessage("channel", observability.OutcomeMalformed)
		l.logger.Warn().Err(err).Str("origin", ev.Origin).Msg("malformed message dropped")
		return
	}
	observability.RecordMessage("channel", observability.OutcomeAccepted)
	l.dispatcher.Deliver(env, ev.Origin)
}
