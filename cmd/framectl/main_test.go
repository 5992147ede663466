package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/framelink"
	"github.com/danmuck/framelink/internal/config"
	"github.com/danmuck/framelink/internal/events"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/testutil/testlog"
	"github.com/danmuck/framelink/internal/transport/channel"
)

type replaySignal chan struct{}

func (r replaySignal) Replayed() <-chan struct{} { return r }

// slowHostPort records call posts after a delay; ready probes pass through.
type slowHostPort struct {
	mu    sync.Mutex
	calls []string
}

func (p *slowHostPort) PostMessage(data, _ string) error {
	if data == protocol.ReadySentinel {
		return nil
	}
	time.Sleep(50 * time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, data)
	return nil
}

func (p *slowHostPort) RemoteOrigin() string { return "https://host.example" }

func (p *slowHostPort) posted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func TestParsePayload(t *testing.T) {
	testlog.Start(t)
	p, err := parsePayload(`{"number":3,"string":"Hello"}`)
	if err != nil || p["number"] != float64(3) || p["string"] != "Hello" {
		t.Fatalf("unexpected payload %#v err=%v", p, err)
	}
	for _, raw := range []string{"", "  ", "null"} {
		p, err := parsePayload(raw)
		if err != nil || p == nil || len(p) != 0 {
			t.Fatalf("%q should give an empty payload, got %#v err=%v", raw, p, err)
		}
	}
	for _, raw := range []string{"[1]", `"x"`, "{"} {
		if _, err := parsePayload(raw); err == nil {
			t.Fatalf("%q should be rejected", raw)
		}
	}
}

func TestFacadeConfigFromEmbedded(t *testing.T) {
	testlog.Start(t)
	cfg := config.EmbeddedConfig{
		Origin:  "https://child.example",
		Origins: []string{"https://host.example"},
		Legacy:  config.LegacyConfig{Candidates: []string{"https://host.example"}, ReceiverPath: "/r"},
		Handshake: config.HandshakeConfig{
			IntervalMS:  10,
			MaxAttempts: 3,
		},
	}
	fc := facadeConfig(cfg)
	if fc.Role != framelink.RoleEmbedded || fc.Origin != cfg.Origin {
		t.Fatalf("unexpected facade config %+v", fc)
	}
	if fc.Handshake.MaxAttempts != 3 || fc.Handshake.Backoff.InitialDelay != 10*time.Millisecond {
		t.Fatalf("unexpected handshake %+v", fc.Handshake)
	}
	if !fc.Whitelist.IsWhitelisted("https://host.example") {
		t.Fatalf("host origin should be whitelisted")
	}
	if fc.Legacy.ReceiverPath != "/r" || len(fc.Legacy.Candidates) != 1 {
		t.Fatalf("unexpected legacy config %+v", fc.Legacy)
	}
}

func TestWaitDelivered(t *testing.T) {
	testlog.Start(t)
	done := make(replaySignal)
	close(done)
	if err := waitDelivered(context.Background(), done, time.Second); err != nil {
		t.Fatalf("finished replay should return immediately: %v", err)
	}
	if err := waitDelivered(context.Background(), make(replaySignal), 30*time.Millisecond); !errors.Is(err, ErrNotEstablished) {
		t.Fatalf("expected ErrNotEstablished, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitDelivered(ctx, make(replaySignal), time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestWaitDeliveredCoversSlowReplay(t *testing.T) {
	testlog.Start(t)
	port := &slowHostPort{}
	inbound := events.NewEmitter()
	f, err := framelink.New(framelink.Config{
		Role:   framelink.RoleEmbedded,
		Origin: "https://child.example",
		Handshake: session.Config{
			MaxAttempts: 20,
			Backoff:     session.BackoffConfig{InitialDelay: time.Second, Multiplier: 1},
		},
	}, framelink.WithPort(port), framelink.WithInbound(inbound))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	defer f.Close()

	if err := f.Send("log.info", framelink.Payload{"msg": "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	go inbound.Emit(events.MessageEvent, channel.MessageEvent{
		Data:   protocol.ReadySentinel,
		Origin: "https://host.example",
		Source: port,
	})
	if err := waitDelivered(context.Background(), f, 2*time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if f.State() != session.Established {
		t.Fatalf("expected established, got %s", f.State())
	}
	if port.posted() != 1 {
		t.Fatalf("queued call must be written before the wait returns, posted=%d", port.posted())
	}
}
