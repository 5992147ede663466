package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/framelink/internal/events"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/origin"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/transport/channel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNoPort = errors.New("session: channel port required")

// Coordinator runs the embedded side of the handshake and owns the pending
// queue. Calls made before establishment are queued and replayed once the
// host answers a ready probe.
type Coordinator struct {
	cfg     Config
	port    channel.Port
	inbound events.Target
	accept  func(string) bool
	logger  zerolog.Logger
	rng     *rand.Rand

	mu           sync.Mutex
	state        State
	remoteOrigin string
	queue        *PendingQueue
	listener     *events.Listener
	cancelProbe  context.CancelFunc
	cycle        uint64
	closed       bool
	replayed     chan struct{}
}

type Option func(*Coordinator)

// WithAcceptOrigin filters which origins may answer a ready probe.
func WithAcceptOrigin(fn func(string) bool) Option {
	return func(c *Coordinator) {
		c.accept = fn
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator binds a coordinator to the port it posts on and the target
// its ready replies arrive on. A nil inbound target means the caller feeds
// HandleMessage directly.
func NewCoordinator(port channel.Port, inbound events.Target, cfg Config, opts ...Option) (*Coordinator, error) {
	if port == nil {
		return nil, ErrNoPort
	}
	c := &Coordinator{
		cfg:      cfg.WithDefaults(),
		port:     port,
		inbound:  inbound,
		logger:   log.Logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		queue:    NewPendingQueue(),
		replayed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RemoteOrigin is the host origin learned from the ready reply.
func (c *Coordinator) RemoteOrigin() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteOrigin
}

// Replayed is closed once the session is established and every queued call
// has been posted. It stays open if the session never establishes.
func (c *Coordinator) Replayed() <-chan struct{} {
	return c.replayed
}

// Pending returns the number of queued envelopes.
func (c *Coordinator) Pending() int {
	return c.queue.Len()
}

// Send posts env once established and queues it otherwise. The first send of
// a cycle starts the ready probes.
func (c *Coordinator) Send(env protocol.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug().Strs("targets", env.Targets()).Msg("session closed; call dropped")
		return nil
	}
	switch c.state {
	case Established:
		remote := c.remoteOrigin
		c.mu.Unlock()
		return c.post(env, remote)
	case AwaitingReady:
		c.queue.Push(env)
		observability.SetPendingCalls(c.queue.Len())
		c.mu.Unlock()
		return nil
	default:
		c.queue.Push(env)
		observability.SetPendingCalls(c.queue.Len())
		c.state = AwaitingReady
		c.subscribeLocked()
		cycle := c.startProbeLocked()
		c.mu.Unlock()
		c.logger.Debug().
			Uint64("cycle", cycle).
			Int("max_attempts", c.cfg.MaxAttempts).
			Msg("remote origin unset; probing host")
		return nil
	}
}

// HandleMessage consumes a ready reply. Anything else is ignored.
func (c *Coordinator) HandleMessage(ev channel.MessageEvent) {
	if !protocol.IsReady(ev.Data) {
		return
	}
	if c.accept != nil && !c.accept(ev.Origin) {
		c.logger.Debug().Str("origin", ev.Origin).Msg("ready reply from unaccepted origin dropped")
		return
	}
	remote, ok := origin.Normalize(ev.Origin)
	if !ok {
		c.logger.Debug().Str("origin", ev.Origin).Msg("ready reply with malformed origin dropped")
		return
	}

	c.mu.Lock()
	if c.closed || c.state == Established {
		c.mu.Unlock()
		return
	}
	c.state = Established
	c.remoteOrigin = remote
	if c.cancelProbe != nil {
		c.cancelProbe()
		c.cancelProbe = nil
	}
	listener := c.listener
	c.listener = nil
	pending := c.queue.Drain()
	c.mu.Unlock()

	events.Remove(c.inbound, events.MessageEvent, listener)
	observability.RecordHandshake("established")
	observability.SetPendingCalls(0)
	c.logger.Info().
		Str("remote_origin", remote).
		Int("replayed", len(pending)).
		Msg("session established")

	for _, env := range pending {
		if err := c.post(env, remote); err != nil {
			c.logger.Warn().Err(err).Strs("targets", env.Targets()).Msg("queued call replay failed")
		}
	}
	close(c.replayed)
}

// Close stops probing and unsubscribes. Queued calls are discarded.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancelProbe != nil {
		c.cancelProbe()
		c.cancelProbe = nil
	}
	listener := c.listener
	c.listener = nil
	dropped := c.queue.Drain()
	c.mu.Unlock()

	events.Remove(c.inbound, events.MessageEvent, listener)
	if len(dropped) > 0 {
		observability.SetPendingCalls(0)
		c.logger.Debug().Int("dropped", len(dropped)).Msg("session closed with queued calls")
	}
}

func (c *Coordinator) subscribeLocked() {
	if c.listener != nil || c.inbound == nil {
		return
	}
	c.listener = events.NewListener(func(ev events.Event) {
		if msg, ok := ev.Data.(channel.MessageEvent); ok {
			c.HandleMessage(msg)
		}
	})
	events.Add(c.inbound, events.MessageEvent, c.listener)
}

func (c *Coordinator) startProbeLocked() uint64 {
	if c.cancelProbe != nil {
		c.cancelProbe()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelProbe = cancel
	c.cycle++
	go c.probe(ctx, c.cycle)
	return c.cycle
}

func (c *Coordinator) probe(ctx context.Context, cycle uint64) {
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		timer := time.NewTimer(NextBackoffDelay(c.cfg.Backoff, attempt, c.rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		observability.RecordProbe()
		if err := c.port.PostMessage(protocol.ReadySentinel, channel.AnyOrigin); err != nil {
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("ready probe failed")
		}
	}
	c.exhaust(cycle)
}

func (c *Coordinator) exhaust(cycle uint64) {
	c.mu.Lock()
	if c.cycle != cycle || c.state != AwaitingReady {
		c.mu.Unlock()
		return
	}
	c.state = Uninitiated
	c.cancelProbe = nil
	pending := c.queue.Len()
	c.mu.Unlock()

	observability.RecordHandshake("exhausted")
	err := protocol.NewError(protocol.KindHandshakeExhausted, "session: no ready reply", map[string]any{
		"attempts": c.cfg.MaxAttempts,
		"pending":  pending,
	})
	c.logger.Warn().Err(err).
		Int("attempts", c.cfg.MaxAttempts).
		Int("pending", pending).
		Msg("handshake exhausted; next send retries")
}

func (c *Coordinator) post(env protocol.Envelope, targetOrigin string) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return c.port.PostMessage(data, targetOrigin)
}
