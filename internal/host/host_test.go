package host

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/framelink/internal/endpoint"
	"github.com/danmuck/framelink/internal/events"
	"github.com/danmuck/framelink/internal/origin"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/testutil/testlog"
	"github.com/danmuck/framelink/internal/testutil/tlstest"
	"github.com/danmuck/framelink/internal/transport/channel"
	"github.com/gin-gonic/gin"
)

const childOrigin = "https://child.example"

type replyPort struct {
	posts []string
	to    []string
}

func (p *replyPort) PostMessage(data, target string) error {
	p.posts = append(p.posts, data)
	p.to = append(p.to, target)
	return nil
}

func (p *replyPort) RemoteOrigin() string { return childOrigin }

func newDispatcher(t *testing.T) (*endpoint.Dispatcher, chan string) {
	t.Helper()
	calls := make(chan string, 16)
	reg := endpoint.NewRegistry()
	reg.Register("log", endpoint.Namespace{
		"info": func(p endpoint.Payload) { calls <- "log.info:" + p["msg"].(string) },
	})
	reg.Register("ping", func(endpoint.Payload) { calls <- "ping" })
	return endpoint.NewDispatcher(reg, nil), calls
}

func TestListenerAnswersReadyOnlyForWhitelisted(t *testing.T) {
	testlog.Start(t)
	d, _ := newDispatcher(t)
	l := NewListener(origin.WhitelistFromOrigins(childOrigin), d, nil)

	port := &replyPort{}
	l.HandleMessage(channel.MessageEvent{Data: protocol.ReadySentinel, Origin: "https://evil.example", Source: port})
	if len(port.posts) != 0 {
		t.Fatalf("unwhitelisted probe must be ignored")
	}
	l.HandleMessage(channel.MessageEvent{Data: protocol.ReadySentinel, Origin: childOrigin, Source: port})
	if len(port.posts) != 1 || port.posts[0] != protocol.ReadySentinel || port.to[0] != childOrigin {
		t.Fatalf("expected ready reply targeted at the sender, got %v %v", port.posts, port.to)
	}
	l.HandleMessage(channel.MessageEvent{Data: protocol.ReadySentinel, Origin: childOrigin})
}

func TestListenerDispatchesAndDropsMalformed(t *testing.T) {
	testlog.Start(t)
	d, calls := newDispatcher(t)
	l := NewListener(origin.WhitelistFromOrigins(childOrigin), d, nil)

	data, _ := protocol.Encode(protocol.Single("log.info", protocol.Payload{"msg": "hi"}))
	for _, ev := range []channel.MessageEvent{
		{Data: "not json", Origin: childOrigin},
		{Data: `{"kind":"single","target":"missing"}`, Origin: childOrigin},
		{Data: data, Origin: "https://evil.example"},
		{Data: data, Origin: childOrigin},
	} {
		l.HandleMessage(ev)
	}
	if len(calls) != 1 || <-calls != "log.info:hi" {
		t.Fatalf("expected exactly one dispatched call")
	}
}

func TestListenerOverPipe(t *testing.T) {
	testlog.Start(t)
	d, calls := newDispatcher(t)
	l := NewListener(origin.WhitelistFromOrigins(childOrigin), d, nil)
	hostInbound := events.NewEmitter()
	childInbound := events.NewEmitter()
	hostInbound.AddEventListener(events.MessageEvent, l.EventListener())
	childPort, _ := channel.NewPipe(childOrigin, childInbound, "https://host.example", hostInbound)
	defer childPort.Close()

	c, err := session.NewCoordinator(childPort, childInbound, session.Config{
		MaxAttempts: 20,
		Backoff:     session.BackoffConfig{InitialDelay: 5 * time.Millisecond, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	defer c.Close()
	_ = c.Send(protocol.Single("log.info", protocol.Payload{"msg": "one"}))
	_ = c.Send(protocol.Bulk(map[string]protocol.Payload{"ping": nil, "log.info": {"msg": "two"}}))

	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case call := <-calls:
			got[call] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d calls: %v", i, got)
		}
	}
	if !got["log.info:one"] || !got["log.info:two"] || !got["ping"] {
		t.Fatalf("unexpected calls: %v", got)
	}
}

func newTestServer(t *testing.T, wl *origin.Whitelist) (*Server, *events.Emitter, chan string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	d, calls := newDispatcher(t)
	inbound := events.NewEmitter()
	inbound.AddEventListener(events.MessageEvent, NewListener(wl, d, nil).EventListener())
	s, err := NewServer(ServerConfig{ID: "host-test", CORSOrigins: []string{childOrigin}}, inbound, d, wl)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s, inbound, calls
}

func TestServerHealthAndEndpoints(t *testing.T) {
	testlog.Start(t)
	s, _, _ := newTestServer(t, origin.WhitelistFromOrigins(childOrigin))

	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"host":"host-test"`) {
		t.Fatalf("unexpected health response %d %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/framelink/endpoints", nil)
	req.Header.Set("Origin", childOrigin)
	rr = httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Endpoints []string `json:"endpoints"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Endpoints) != 2 || body.Endpoints[0] != "log.info" || body.Endpoints[1] != "ping" {
		t.Fatalf("unexpected endpoints %v", body.Endpoints)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != childOrigin {
		t.Fatalf("expected CORS header for %s, got %q", childOrigin, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/framelink/endpoints", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected CORS rejection, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "framelink_http_requests_total") {
		t.Fatalf("metrics should expose http counters")
	}
}

func TestServerChannelHandshakeOverWebsocket(t *testing.T) {
	testlog.Start(t)
	s, _, calls := newTestServer(t, origin.WhitelistFromOrigins(childOrigin))
	server := httptest.NewServer(s.HTTPRouter())
	defer server.Close()
	defer s.Acceptor().Close()

	childInbound := events.NewEmitter()
	port, err := channel.Dial(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http")+DefaultChannelPath, childOrigin, childInbound)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer port.Close()

	c, err := session.NewCoordinator(port, childInbound, session.Config{
		MaxAttempts: 50,
		Backoff:     session.BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	defer c.Close()
	if err := c.Send(protocol.Single("log.info", protocol.Payload{"msg": "over ws"})); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case call := <-calls:
		if call != "log.info:over ws" {
			t.Fatalf("unexpected call %q", call)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("call never dispatched")
	}
	if c.State() != session.Established || c.RemoteOrigin() != server.URL {
		t.Fatalf("expected session with %s, got %s %q", server.URL, c.State(), c.RemoteOrigin())
	}
}

func TestServerChannelIgnoresUnwhitelistedChild(t *testing.T) {
	testlog.Start(t)
	s, _, calls := newTestServer(t, origin.WhitelistFromOrigins("https://other.example"))
	server := httptest.NewServer(s.HTTPRouter())
	defer server.Close()
	defer s.Acceptor().Close()

	childInbound := events.NewEmitter()
	port, err := channel.Dial(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http")+DefaultChannelPath, childOrigin, childInbound)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer port.Close()

	c, err := session.NewCoordinator(port, childInbound, session.Config{
		MaxAttempts: 3,
		Backoff:     session.BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	defer c.Close()
	_ = c.Send(protocol.Single("ping", nil))
	deadline := time.Now().Add(2 * time.Second)
	for c.State() == session.AwaitingReady && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.State() != session.Uninitiated || c.Pending() != 1 {
		t.Fatalf("handshake should exhaust with the call still queued, state=%s pending=%d", c.State(), c.Pending())
	}
	if len(calls) != 0 {
		t.Fatalf("no call may be dispatched")
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	s, _, _ := newTestServer(t, origin.OpenWhitelist())
	s.Addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestServerServesTLSChannel(t *testing.T) {
	testlog.Start(t)
	tlsFiles := tlstest.IssueHost(t, net.ParseIP("127.0.0.1"))

	gin.SetMode(gin.TestMode)
	d, calls := newDispatcher(t)
	inbound := events.NewEmitter()
	wl := origin.WhitelistFromOrigins(childOrigin)
	inbound.AddEventListener(events.MessageEvent, NewListener(wl, d, nil).EventListener())
	s, err := NewServer(ServerConfig{ID: "host-tls", CertFile: tlsFiles.CertFile, KeyFile: tlsFiles.KeyFile}, inbound, d, wl)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	defer func() {
		cancel()
		<-done
	}()

	childInbound := events.NewEmitter()
	wsURL := "wss://" + ln.Addr().String() + DefaultChannelPath
	port, err := channel.Dial(context.Background(), wsURL, childOrigin, childInbound, channel.WithTLSConfig(tlsFiles.Client))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer port.Close()
	if port.RemoteOrigin() != "https://"+ln.Addr().String() {
		t.Fatalf("unexpected remote origin %q", port.RemoteOrigin())
	}

	c, err := session.NewCoordinator(port, childInbound, session.Config{
		MaxAttempts: 50,
		Backoff:     session.BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	defer c.Close()
	_ = c.Send(protocol.Single("ping", nil))
	select {
	case call := <-calls:
		if call != "ping" {
			t.Fatalf("unexpected call %q", call)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("call never dispatched over tls")
	}
}
