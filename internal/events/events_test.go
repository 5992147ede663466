package events

import (
	"testing"

	"github.com/danmuck/framelink/internal/testutil/testlog"
)

func TestEmitterAddRemove(t *testing.T) {
	testlog.Start(t)
	e := NewEmitter()
	var calls []string
	a := NewListener(func(ev Event) { calls = append(calls, "a:"+ev.Data.(string)) })
	b := NewListener(func(ev Event) { calls = append(calls, "b:"+ev.Data.(string)) })

	Add(e, MessageEvent, a)
	Add(e, "MESSAGE", a)
	Add(e, MessageEvent, b)
	if e.Count(MessageEvent) != 2 {
		t.Fatalf("duplicate add should be ignored, count=%d", e.Count(MessageEvent))
	}

	e.Emit(MessageEvent, "1")
	Remove(e, MessageEvent, a)
	e.Emit(MessageEvent, "2")
	Remove(e, MessageEvent, b)
	e.Emit(MessageEvent, "3")

	want := []string{"a:1", "b:1", "b:2"}
	if len(calls) != len(want) {
		t.Fatalf("unexpected calls: %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("unexpected calls: %v", calls)
		}
	}
	if e.Count(MessageEvent) != 0 {
		t.Fatalf("expected no listeners left")
	}
}

func TestListenerPanicIsContained(t *testing.T) {
	testlog.Start(t)
	e := NewEmitter()
	reached := false
	e.AddEventListener(MessageEvent, NewListener(func(Event) { panic("boom") }))
	e.AddEventListener(MessageEvent, NewListener(func(Event) { reached = true }))
	e.Emit(MessageEvent, nil)
	if !reached {
		t.Fatalf("second listener should still run after a panic")
	}
}

func TestNilSafety(t *testing.T) {
	testlog.Start(t)
	Add(nil, MessageEvent, NewListener(func(Event) {}))
	Remove(nil, MessageEvent, nil)
	var e *Emitter
	e.Emit(MessageEvent, nil)
	if e.Count(MessageEvent) != 0 {
		t.Fatalf("nil emitter has no listeners")
	}
	NewEmitter().RemoveEventListener(MessageEvent, NewListener(nil))
}

func TestListenerRemovingItselfDuringEmit(t *testing.T) {
	testlog.Start(t)
	e := NewEmitter()
	count := 0
	var self *Listener
	self = NewListener(func(Event) {
		count++
		e.RemoveEventListener(MessageEvent, self)
	})
	e.AddEventListener(MessageEvent, self)
	e.Emit(MessageEvent, nil)
	e.Emit(MessageEvent, nil)
	if count != 1 {
		t.Fatalf("expected exactly one call, got %d", count)
	}
}
