package origin

import (
	"sort"
	"strings"
)

// Whitelist is an immutable set of origin digests.
type Whitelist struct {
	hashes map[string]struct{}
	open   bool
}

// NewWhitelist builds a whitelist from precomputed digests.
func NewWhitelist(hashes ...string) *Whitelist {
	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		set[h] = struct{}{}
	}
	return &Whitelist{hashes: set}
}

// WhitelistFromOrigins hashes literal origins. Malformed entries are skipped.
func WhitelistFromOrigins(origins ...string) *Whitelist {
	hashes := make([]string, 0, len(origins))
	for _, o := range origins {
		if h := Hash(o); h != "" {
			hashes = append(hashes, h)
		}
	}
	return NewWhitelist(hashes...)
}

// OpenWhitelist accepts every well-formed origin. Development use only.
func OpenWhitelist() *Whitelist {
	return &Whitelist{hashes: map[string]struct{}{}, open: true}
}

// IsWhitelisted reports whether origin hashes into the set. A nil whitelist
// rejects everything.
func (w *Whitelist) IsWhitelisted(origin string) bool {
	if w == nil {
		return false
	}
	h := Hash(origin)
	if h == "" {
		return false
	}
	if w.open {
		return true
	}
	_, ok := w.hashes[h]
	return ok
}

func (w *Whitelist) Open() bool {
	return w != nil && w.open
}

func (w *Whitelist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.hashes)
}

// Hashes returns the digests in sorted order.
func (w *Whitelist) Hashes() []string {
	if w == nil {
		return nil
	}
	out := make([]string, 0, len(w.hashes))
	for h := range w.hashes {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
