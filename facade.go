package framelink

import (
	"context"
	"errors"
	"sync"

	"github.com/danmuck/framelink/internal/endpoint"
	"github.com/danmuck/framelink/internal/events"
	"github.com/danmuck/framelink/internal/host"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/origin"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/query"
	"github.com/danmuck/framelink/internal/transport"
	"github.com/danmuck/framelink/internal/transport/channel"
	"github.com/danmuck/framelink/internal/transport/direct"
	"github.com/danmuck/framelink/internal/transport/legacy"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Payload is the JSON object delivered to an endpoint.
type Payload = protocol.Payload

// Role says which side of the boundary a facade runs on.
type Role int

const (
	// RoleHost owns the endpoints and answers ready probes.
	RoleHost Role = iota
	// RoleEmbedded sends calls to its host over the selected transport.
	RoleEmbedded
)

func (r Role) String() string {
	if r == RoleEmbedded {
		return "embedded"
	}
	return "host"
}

// ErrInvalidOrigin is returned by New when Config.Origin is not an http(s)
// origin.
var ErrInvalidOrigin = errors.New("framelink: own origin is not a valid http(s) origin")

// Config configures one facade.
type Config struct {
	Role Role
	// Origin is this context's own origin.
	Origin string
	// Whitelist gates inbound messages on hosts and ready replies on embedded
	// contexts. A nil whitelist rejects everything on hosts and accepts any
	// ready reply on embedded contexts.
	Whitelist *origin.Whitelist
	Handshake session.Config
	Legacy    LegacyConfig
}

// LegacyConfig addresses the host receiver for contexts without a channel.
type LegacyConfig struct {
	// Candidates lists every origin the host might be served from.
	Candidates []string
	// ReceiverPath defaults to legacy.DefaultReceiverPath.
	ReceiverPath string
}

// Facade is the public surface of one context.
type Facade struct {
	id     string
	cfg    Config
	logger zerolog.Logger

	registry   *endpoint.Registry
	dispatcher *endpoint.Dispatcher
	inbound    events.Target

	parent      direct.Parent
	port        channel.Port
	frames      legacy.FrameFactory
	cacheBuster func() string

	selection   transport.Selection
	direct      *endpoint.Dispatcher
	coordinator *session.Coordinator
	legacy      *legacy.Sender

	listener *host.Listener
	mu       sync.Mutex
	served   []events.Target
	closed   bool
}

// New builds a facade. Embedded facades select their transport here and keep
// it for their lifetime. Host facades subscribe their message listener to the
// inbound target when one is given.
func New(cfg Config, opts ...Option) (*Facade, error) {
	self, ok := origin.Normalize(cfg.Origin)
	if !ok {
		return nil, ErrInvalidOrigin
	}
	cfg.Origin = self
	f := &Facade{
		id:       uuid.NewString(),
		cfg:      cfg,
		logger:   log.Logger,
		registry: endpoint.NewRegistry(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With().
		Str("context", f.id).
		Str("role", cfg.Role.String()).
		Str("origin", self).
		Logger()
	f.dispatcher = endpoint.NewDispatcher(f.registry, &f.logger)
	observability.RegisterMetrics()

	if cfg.Role == RoleHost {
		f.listener = host.NewListener(cfg.Whitelist, f.dispatcher, &f.logger)
		if f.inbound != nil {
			f.Serve(f.inbound)
		}
		f.logger.Debug().Msg("host context ready")
		return f, nil
	}

	if err := f.selectTransport(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Facade) selectTransport() error {
	f.selection = transport.Select(transport.Capabilities{
		SelfOrigin: f.cfg.Origin,
		Parent:     f.parent,
		Port:       f.port,
		Legacy:     f.frames != nil && len(f.cfg.Legacy.Candidates) > 0,
	})
	f.selection.Log()

	switch f.selection.Kind {
	case transport.KindDirect:
		f.direct = endpoint.NewDispatcher(f.selection.Registry, &f.logger)
	case transport.KindChannel:
		var opts []session.Option
		if f.cfg.Whitelist != nil {
			opts = append(opts, session.WithAcceptOrigin(f.cfg.Whitelist.IsWhitelisted))
		}
		opts = append(opts, session.WithLogger(f.logger))
		c, err := session.NewCoordinator(f.port, f.inbound, f.cfg.Handshake, opts...)
		if err != nil {
			return err
		}
		f.coordinator = c
	case transport.KindLegacy:
		f.legacy = legacy.NewSender(legacy.SenderConfig{
			Candidates:   f.cfg.Legacy.Candidates,
			ReceiverPath: f.cfg.Legacy.ReceiverPath,
			Frames:       f.frames,
			CacheBuster:  f.cacheBuster,
			Logger:       &f.logger,
		})
	}
	f.logger.Info().Str("transport", f.selection.Kind.String()).Msg("embedded context ready")
	return nil
}

// ID is a random identifier for this facade, used in logs.
func (f *Facade) ID() string {
	return f.id
}

func (f *Facade) Role() Role {
	return f.cfg.Role
}

// Register stores an endpoint. See endpoint.Registry.Register for the
// accepted handler shapes.
func (f *Facade) Register(name string, handler any) bool {
	ok := f.registry.Register(name, handler)
	if !ok {
		f.logger.Debug().Str("endpoint", name).Msg("endpoint registration ignored")
	}
	return ok
}

func (f *Facade) Registry() *endpoint.Registry {
	return f.registry
}

// Dispatcher delivers envelopes into this facade's registry.
func (f *Facade) Dispatcher() *endpoint.Dispatcher {
	return f.dispatcher
}

// Transport is the strategy selected at construction. Hosts report none.
func (f *Facade) Transport() transport.Kind {
	if f.cfg.Role == RoleHost {
		return transport.KindNone
	}
	return f.selection.Kind
}

// State is the channel session state. Facades without a channel stay
// Uninitiated.
func (f *Facade) State() session.State {
	if f.coordinator == nil {
		return session.Uninitiated
	}
	return f.coordinator.State()
}

// Replayed is closed once the channel session is established and the calls
// queued before it have been posted. Facades without a channel return a
// closed channel.
func (f *Facade) Replayed() <-chan struct{} {
	if f.coordinator == nil {
		return closedChan
	}
	return f.coordinator.Replayed()
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// RemoteOrigin is the host origin learned by the channel handshake.
func (f *Facade) RemoteOrigin() string {
	if f.coordinator == nil {
		return ""
	}
	return f.coordinator.RemoteOrigin()
}

// Send delivers a call to the host. targetOrBulk is either a target name
// ("name" or "namespace.member") followed by an optional payload, or a
// map[string]Payload of independent calls. Hosts ignore Send.
//
// Delivery failures are logged, not returned. The one exception is an
// invalid legacy address, which is returned before any frame navigates.
func (f *Facade) Send(targetOrBulk any, payload ...Payload) error {
	if f.cfg.Role == RoleHost {
		f.logger.Debug().Msg("send ignored on host context")
		return nil
	}
	env, ok := f.envelope(targetOrBulk, payload)
	if !ok {
		return nil
	}
	if err := env.Validate(); err != nil {
		f.logger.Warn().Err(err).Msg("send dropped")
		return nil
	}
	observability.RecordSend(f.selection.Kind.String())

	switch f.selection.Kind {
	case transport.KindDirect:
		f.direct.Deliver(env, f.cfg.Origin)
	case transport.KindChannel:
		if err := f.coordinator.Send(env); err != nil {
			f.logger.Warn().Err(err).Strs("targets", env.Targets()).Msg("channel send failed")
		}
	case transport.KindLegacy:
		if err := f.legacy.Send(context.Background(), env); err != nil {
			if protocol.IsKind(err, protocol.KindInvalidLegacyAddress) {
				return err
			}
			f.logger.Warn().Err(err).Strs("targets", env.Targets()).Msg("legacy send failed")
		}
	default:
		f.logger.Warn().Strs("targets", env.Targets()).Msg("no transport available; call dropped")
	}
	return nil
}

func (f *Facade) envelope(targetOrBulk any, payload []Payload) (protocol.Envelope, bool) {
	switch v := targetOrBulk.(type) {
	case string:
		var p Payload
		if len(payload) > 0 {
			p = payload[0]
		}
		return protocol.Single(v, p), true
	case map[string]Payload:
		return protocol.Bulk(v), true
	case protocol.Envelope:
		return v, true
	default:
		f.logger.Warn().Type("argument", targetOrBulk).Msg("send argument is neither a target nor a bulk map")
		return protocol.Envelope{}, false
	}
}

// Serve subscribes the host message listener to target. Calling it on an
// embedded facade is a no-op.
func (f *Facade) Serve(target events.Target) {
	if f.listener == nil || target == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, t := range f.served {
		if t == target {
			return
		}
	}
	events.Add(target, events.MessageEvent, f.listener.EventListener())
	f.served = append(f.served, target)
}

// Close stops handshake probing and unsubscribes host listeners.
func (f *Facade) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	served := f.served
	f.served = nil
	f.mu.Unlock()

	for _, t := range served {
		events.Remove(t, events.MessageEvent, f.listener.EventListener())
	}
	if f.coordinator != nil {
		f.coordinator.Close()
	}
	if f.legacy != nil {
		f.legacy.Wait()
	}
}

// GetQueryParams parses rawURL query and path parameters. See query.Params.
func (f *Facade) GetQueryParams(rawURL string) map[string]string {
	return query.Params(rawURL)
}

// AddListener subscribes l to name on target.
func (f *Facade) AddListener(target events.Target, name string, l *events.Listener) {
	events.Add(target, name, l)
}

// RemoveListener unsubscribes l from name on target.
func (f *Facade) RemoveListener(target events.Target, name string, l *events.Listener) {
	events.Remove(target, name, l)
}

var (
	defaultOnce   sync.Once
	defaultFacade *Facade
)

// Default returns the process-wide host facade, created on first use with an
// open whitelist on http://localhost.
func Default() *Facade {
	defaultOnce.Do(func() {
		f, err := New(Config{
			Role:      RoleHost,
			Origin:    "http://localhost",
			Whitelist: origin.OpenWhitelist(),
		})
		if err != nil {
			panic(err)
		}
		defaultFacade = f
	})
	return defaultFacade
}
