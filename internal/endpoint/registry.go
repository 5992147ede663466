package endpoint

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/framelink/internal/protocol"
)

// Payload is the JSON object handed to a handler.
type Payload = protocol.Payload

// Func handles one call.
type Func func(Payload)

// Namespace groups handlers under one registered name. Targets address its
// members as "name.member".
type Namespace map[string]Func

type entry struct {
	fn Func
	ns Namespace
}

// Registry stores endpoints by name.
type Registry struct {
	mu    sync.RWMutex
	items map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]entry)}
}

// Register stores handler under name. Accepted handler shapes are Func,
// func(Payload), Namespace, map[string]Func and map[string]func(Payload).
// A namespace registered over a namespace is merged member by member with
// the new members winning; anything else replaces the existing entry.
// Unsupported or nil handlers are ignored and reported as false.
func (r *Registry) Register(name string, handler any) bool {
	name = strings.TrimSpace(name)
	if r == nil || name == "" {
		return false
	}
	next, ok := toEntry(handler)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, exists := r.items[name]; exists && current.ns != nil && next.ns != nil {
		merged := make(Namespace, len(current.ns)+len(next.ns))
		maps.Copy(merged, current.ns)
		maps.Copy(merged, next.ns)
		next.ns = merged
	}
	r.items[name] = next
	return true
}

// Lookup returns the handler registered under name: a Func or a Namespace
// copy.
func (r *Registry) Lookup(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	if e.ns != nil {
		return maps.Clone(e.ns), true
	}
	return e.fn, true
}

// Names lists every addressable target in sorted order. Namespace members
// are listed as "name.member".
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for name, e := range r.items {
		if e.ns == nil {
			out = append(out, name)
			continue
		}
		for member := range e.ns {
			out = append(out, name+"."+member)
		}
	}
	sort.Strings(out)
	return out
}

// resolve finds the handler for target. The target is split on its first
// dot: no dot addresses a plain Func, otherwise a namespace member.
func (r *Registry) resolve(target string) (Func, error) {
	if r == nil {
		return nil, unknown(target, "registry unset")
	}
	name, member, nested := strings.Cut(strings.TrimSpace(target), ".")
	r.mu.RLock()
	e, ok := r.items[name]
	r.mu.RUnlock()
	if !ok {
		return nil, unknown(target, "no endpoint named "+name)
	}
	if !nested {
		if e.fn == nil {
			return nil, unknown(target, "endpoint is a namespace")
		}
		return e.fn, nil
	}
	if e.ns == nil {
		return nil, unknown(target, "endpoint is not a namespace")
	}
	fn, ok := e.ns[member]
	if !ok || fn == nil {
		return nil, unknown(target, fmt.Sprintf("namespace %s has no member %s", name, member))
	}
	return fn, nil
}

func unknown(target, reason string) error {
	return protocol.NewError(protocol.KindUnknownEndpoint, "endpoint: "+reason, map[string]any{
		"target": target,
	})
}

func toEntry(handler any) (entry, bool) {
	switch h := handler.(type) {
	case Func:
		return entry{fn: h}, h != nil
	case func(Payload):
		return entry{fn: Func(h)}, h != nil
	case Namespace:
		return namespaceEntry(h)
	case map[string]Func:
		return namespaceEntry(Namespace(h))
	case map[string]func(Payload):
		ns := make(Namespace, len(h))
		for member, fn := range h {
			ns[member] = Func(fn)
		}
		return namespaceEntry(ns)
	default:
		return entry{}, false
	}
}

func namespaceEntry(in Namespace) (entry, bool) {
	if in == nil {
		return entry{}, false
	}
	ns := make(Namespace, len(in))
	for member, fn := range in {
		member = strings.TrimSpace(member)
		if member == "" || fn == nil {
			continue
		}
		ns[member] = fn
	}
	return entry{ns: ns}, true
}
