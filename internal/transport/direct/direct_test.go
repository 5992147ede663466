package direct

import (
	"errors"
	"testing"

	"github.com/danmuck/framelink/internal/endpoint"
	"github.com/danmuck/framelink/internal/testutil/testlog"
)

func TestShorten(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"https://a.b.example.com":      "https://example.com",
		"https://www.example.com:8443": "https://example.com:8443",
	}
	for raw, want := range cases {
		got, ok := Shorten(raw)
		if !ok || got != want {
			t.Fatalf("Shorten(%q) got=%q ok=%v want=%q", raw, got, ok, want)
		}
	}
	for _, raw := range []string{"https://example.com", "http://localhost:9090", "http://127.0.0.1:80", "garbage"} {
		if got, ok := Shorten(raw); ok {
			t.Fatalf("Shorten(%q) should not shorten, got %q", raw, got)
		}
	}
}

func TestConnectSameOrigin(t *testing.T) {
	testlog.Start(t)
	reg := endpoint.NewRegistry()
	host := NewHost("https://app.example.com", reg, false)
	got, granted, err := Connect(host, "https://APP.example.com:443")
	if err != nil || got != reg {
		t.Fatalf("same origin should connect: %v", err)
	}
	if granted != "https://APP.example.com:443" {
		t.Fatalf("unexpected granted origin %q", granted)
	}
}

func TestConnectAfterShortening(t *testing.T) {
	testlog.Start(t)
	reg := endpoint.NewRegistry()
	host := NewHost("https://www.example.com", reg, true)
	if host.Origin() != "https://example.com" {
		t.Fatalf("unexpected effective origin %q", host.Origin())
	}
	got, granted, err := Connect(host, "https://ads.example.com")
	if err != nil || got != reg || granted != "https://example.com" {
		t.Fatalf("shortened origin should connect: reg=%v granted=%q err=%v", got == reg, granted, err)
	}
}

func TestConnectRefused(t *testing.T) {
	testlog.Start(t)
	host := NewHost("https://www.example.com", endpoint.NewRegistry(), false)
	if _, _, err := Connect(host, "https://ads.example.com"); !errors.Is(err, ErrCrossOrigin) {
		t.Fatalf("expected cross-origin refusal, got %v", err)
	}
	if _, _, err := Connect(host, "https://www.other.com"); !errors.Is(err, ErrCrossOrigin) {
		t.Fatalf("expected cross-origin refusal, got %v", err)
	}
	if _, _, err := Connect(nil, "https://www.example.com"); !errors.Is(err, ErrNoParent) {
		t.Fatalf("expected no parent, got %v", err)
	}
	var empty *Host
	if _, err := empty.Registry("https://x.example"); !errors.Is(err, ErrNoParent) {
		t.Fatalf("nil host should report no parent, got %v", err)
	}
}
