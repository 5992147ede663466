// Package events provides listener registration for context-level events.
package events

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// MessageEvent is the name of the cross-context message event.
const MessageEvent = "message"

// Event is one emitted occurrence. Data is event specific.
type Event struct {
	Name string
	Data any
}

// Listener wraps a callback. Listeners are compared by pointer identity so
// the same value must be passed to remove it.
type Listener struct {
	fn func(Event)
}

func NewListener(fn func(Event)) *Listener {
	return &Listener{fn: fn}
}

func (l *Listener) handle(ev Event) {
	if l == nil || l.fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("event", ev.Name).Interface("panic", r).Msg("event listener panicked")
		}
	}()
	l.fn(ev)
}

// Target accepts listener registrations.
type Target interface {
	AddEventListener(name string, l *Listener)
	RemoveEventListener(name string, l *Listener)
}

// Emitter is an in-process Target.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[string][]*Listener
}

func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[string][]*Listener)}
}

// AddEventListener subscribes l. Adding the same listener twice is a no-op.
func (e *Emitter) AddEventListener(name string, l *Listener) {
	name = normalizeName(name)
	if e == nil || l == nil || name == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.listeners[name] {
		if existing == l {
			return
		}
	}
	e.listeners[name] = append(e.listeners[name], l)
}

func (e *Emitter) RemoveEventListener(name string, l *Listener) {
	name = normalizeName(name)
	if e == nil || l == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	current := e.listeners[name]
	for i, existing := range current {
		if existing != l {
			continue
		}
		next := make([]*Listener, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		if len(next) == 0 {
			delete(e.listeners, name)
		} else {
			e.listeners[name] = next
		}
		return
	}
}

// Emit calls every listener subscribed to name, in subscription order, on
// the caller's goroutine.
func (e *Emitter) Emit(name string, data any) {
	name = normalizeName(name)
	if e == nil || name == "" {
		return
	}
	e.mu.RLock()
	snapshot := append([]*Listener(nil), e.listeners[name]...)
	e.mu.RUnlock()
	ev := Event{Name: name, Data: data}
	for _, l := range snapshot {
		l.handle(ev)
	}
}

// Count returns the number of listeners subscribed to name.
func (e *Emitter) Count(name string) int {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[normalizeName(name)])
}

// Add subscribes l on target. Nil targets are ignored.
func Add(target Target, name string, l *Listener) {
	if target == nil {
		return
	}
	target.AddEventListener(name, l)
}

// Remove unsubscribes l from target. Nil targets are ignored.
func Remove(target Target, name string, l *Listener) {
	if target == nil {
		return
	}
	target.RemoveEventListener(name, l)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var _ Target = (*Emitter)(nil)
