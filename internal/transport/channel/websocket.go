package channel

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/framelink/internal/events"
	"github.com/danmuck/framelink/internal/origin"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const defaultWriteTimeout = 5 * time.Second

// WSPort is a Port over one websocket connection.
type WSPort struct {
	conn         *websocket.Conn
	remoteOrigin string
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}
}

func newWSPort(conn *websocket.Conn, remoteOrigin string) *WSPort {
	conn.SetReadLimit(protocol.MaxMessageBytes)
	return &WSPort{
		conn:         conn,
		remoteOrigin: remoteOrigin,
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
}

func (p *WSPort) PostMessage(data string, targetOrigin string) error {
	if p == nil || p.closed.Load() {
		return ErrPortClosed
	}
	if !targetMatches(targetOrigin, p.remoteOrigin) {
		return nil
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, []byte(data))
}

func (p *WSPort) RemoteOrigin() string {
	if p == nil {
		return ""
	}
	return p.remoteOrigin
}

// Done is closed when the read loop ends.
func (p *WSPort) Done() <-chan struct{} {
	return p.done
}

func (p *WSPort) Close() error {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.writeMu.Lock()
	_ = p.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	p.writeMu.Unlock()
	return p.conn.Close()
}

// readLoop emits every text frame on sink until the connection ends.
func (p *WSPort) readLoop(sink Sink) {
	defer close(p.done)
	defer func() { _ = p.Close() }()
	for {
		mt, data, err := p.conn.ReadMessage()
		if err != nil {
			if !p.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Str("remote_origin", p.remoteOrigin).Err(err).Msg("channel read loop ended")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		sink.Emit(events.MessageEvent, MessageEvent{
			Data:   string(data),
			Origin: p.remoteOrigin,
			Source: p,
		})
	}
}

// Acceptor upgrades host-side HTTP requests into ports. The request Origin
// header becomes the sender origin of every message on that connection;
// whitelisting happens per message, not at upgrade time.
type Acceptor struct {
	sink     Sink
	upgrader websocket.Upgrader

	mu    sync.Mutex
	ports map[*WSPort]struct{}
}

func NewAcceptor(sink Sink) (*Acceptor, error) {
	if sink == nil {
		return nil, ErrNoSink
	}
	return &Acceptor{
		sink: sink,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ports: make(map[*WSPort]struct{}),
	}, nil
}

func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	remote, _ := origin.Normalize(r.Header.Get("Origin"))
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote_origin", remote).Msg("channel upgrade failed")
		return
	}
	port := newWSPort(conn, remote)
	a.track(port)
	log.Debug().Str("remote_origin", remote).Msg("channel port accepted")
	go func() {
		port.readLoop(a.sink)
		a.untrack(port)
	}()
}

// Count returns the number of live ports.
func (a *Acceptor) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ports)
}

// Close closes every live port.
func (a *Acceptor) Close() {
	a.mu.Lock()
	ports := make([]*WSPort, 0, len(a.ports))
	for p := range a.ports {
		ports = append(ports, p)
	}
	a.mu.Unlock()
	for _, p := range ports {
		_ = p.Close()
	}
}

func (a *Acceptor) track(p *WSPort) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ports[p] = struct{}{}
}

func (a *Acceptor) untrack(p *WSPort) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.ports, p)
}

// DialOption adjusts the websocket dialer.
type DialOption func(*websocket.Dialer)

// WithTLSConfig sets the client TLS configuration for wss URLs.
func WithTLSConfig(cfg *tls.Config) DialOption {
	return func(d *websocket.Dialer) {
		d.TLSClientConfig = cfg
	}
}

// Dial opens an embedded-side port to a host websocket endpoint. The remote
// origin is derived from rawURL (ws -> http, wss -> https).
func Dial(ctx context.Context, rawURL string, selfOrigin string, sink Sink, opts ...DialOption) (*WSPort, error) {
	if sink == nil {
		return nil, ErrNoSink
	}
	self, ok := origin.Normalize(selfOrigin)
	if !ok {
		return nil, ErrOriginUnset
	}
	remote, err := RemoteOriginOf(rawURL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Origin", self)
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&dialer)
	}
	conn, _, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	port := newWSPort(conn, remote)
	go port.readLoop(sink)
	return port, nil
}

// RemoteOriginOf maps a websocket URL to the origin of the serving host.
func RemoteOriginOf(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", errors.Join(ErrInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", ErrInvalidURL
	}
	remote, ok := origin.Normalize(u.String())
	if !ok {
		return "", ErrInvalidURL
	}
	return remote, nil
}

var _ Port = (*WSPort)(nil)
