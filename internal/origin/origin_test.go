package origin

import (
	"testing"

	"github.com/danmuck/framelink/internal/testutil/testlog"
)

func TestNormalize(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"https://Example.COM":            "https://example.com",
		"https://example.com:443/a?b#c":  "https://example.com",
		"http://example.com:80":          "http://example.com",
		"http://localhost:9090":          "http://localhost:9090",
		"https://sub.example.com:9443/x": "https://sub.example.com:9443",
		"http://[::1]:8080":              "http://[::1]:8080",
		"http://[::1]":                   "http://[::1]",
	}
	for raw, want := range cases {
		got, ok := Normalize(raw)
		if !ok || got != want {
			t.Fatalf("Normalize(%q) got=%q ok=%v want=%q", raw, got, ok, want)
		}
	}
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	testlog.Start(t)
	for _, raw := range []string{
		"",
		"   ",
		"example.com",
		"javascript:alert(1)",
		"ftp://example.com",
		"https://",
		"https://user:pw@example.com",
		"://nope",
	} {
		if got, ok := Normalize(raw); ok {
			t.Fatalf("Normalize(%q) should fail, got %q", raw, got)
		}
		if h := Hash(raw); h != "" {
			t.Fatalf("Hash(%q) should be empty, got %q", raw, h)
		}
	}
}

func TestHashDeterministicAndNormalized(t *testing.T) {
	testlog.Start(t)
	a := Hash("https://www.example.com")
	b := Hash("HTTPS://www.example.com:443/")
	if a == "" || a != b {
		t.Fatalf("hash should be deterministic across equivalent origins: %q vs %q", a, b)
	}
	if len(a) != 40 {
		t.Fatalf("expected hex sha1 digest, got %q", a)
	}
	if a == Hash("https://example.com") {
		t.Fatalf("distinct origins must not collide")
	}
}

func TestWhitelistMembership(t *testing.T) {
	testlog.Start(t)
	allowed := []string{"https://www.example.com", "http://localhost:9090"}
	wl := WhitelistFromOrigins(append(allowed, "not an origin")...)
	if wl.Len() != 2 {
		t.Fatalf("expected 2 hashes, got %d", wl.Len())
	}
	for _, o := range allowed {
		for i := 0; i < 3; i++ {
			if !wl.IsWhitelisted(o) {
				t.Fatalf("expected %q whitelisted", o)
			}
		}
	}
	for _, o := range []string{
		"https://evil.example.com",
		"http://www.example.com",
		"http://localhost:9443",
		"",
		"garbage",
	} {
		if wl.IsWhitelisted(o) {
			t.Fatalf("expected %q rejected", o)
		}
	}
}

func TestWhitelistFromPrecomputedHashes(t *testing.T) {
	testlog.Start(t)
	wl := NewWhitelist(" "+Hash("https://a.example")+" ", "", Hash("https://b.example"))
	if !wl.IsWhitelisted("https://a.example") || !wl.IsWhitelisted("https://b.example") {
		t.Fatalf("expected precomputed hashes to match runtime hash")
	}
	if got := wl.Hashes(); len(got) != 2 || got[0] > got[1] {
		t.Fatalf("expected sorted hashes, got %v", got)
	}
}

func TestNilAndOpenWhitelist(t *testing.T) {
	testlog.Start(t)
	var wl *Whitelist
	if wl.IsWhitelisted("https://example.com") {
		t.Fatalf("nil whitelist must reject")
	}
	open := OpenWhitelist()
	if !open.IsWhitelisted("https://anything.example") {
		t.Fatalf("open whitelist should accept well-formed origins")
	}
	if open.IsWhitelisted("javascript:void(0)") {
		t.Fatalf("open whitelist must still reject malformed origins")
	}
}

func TestHost(t *testing.T) {
	testlog.Start(t)
	if got := Host("https://Sub.Example.com:8443/path"); got != "sub.example.com" {
		t.Fatalf("unexpected host %q", got)
	}
	if got := Host("bogus"); got != "" {
		t.Fatalf("unexpected host for bogus origin %q", got)
	}
}
