package channel

import (
	"sync"

	"github.com/danmuck/framelink/internal/events"
)

// PipePort is one side of an in-process port pair. Messages posted on it are
// delivered to the peer's sink on the peer's own delivery loop, one at a time
// and in post order.
type PipePort struct {
	selfOrigin string
	peer       *PipePort
	sink       Sink
	box        *mailbox
}

// NewPipe connects two contexts. Posting on a delivers to bSink with
// aOrigin as sender; posting on b delivers to aSink with bOrigin as sender.
func NewPipe(aOrigin string, aSink Sink, bOrigin string, bSink Sink) (*PipePort, *PipePort) {
	a := &PipePort{selfOrigin: aOrigin, sink: aSink, box: newMailbox()}
	b := &PipePort{selfOrigin: bOrigin, sink: bSink, box: newMailbox()}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *PipePort) PostMessage(data string, targetOrigin string) error {
	if p == nil || p.peer == nil {
		return ErrPortClosed
	}
	if !targetMatches(targetOrigin, p.peer.selfOrigin) {
		return nil
	}
	peer := p.peer
	ev := MessageEvent{Data: data, Origin: p.selfOrigin, Source: peer}
	if !peer.box.put(func() {
		if peer.sink != nil {
			peer.sink.Emit(events.MessageEvent, ev)
		}
	}) {
		return ErrPortClosed
	}
	return nil
}

func (p *PipePort) RemoteOrigin() string {
	if p == nil || p.peer == nil {
		return ""
	}
	return p.peer.selfOrigin
}

// Close stops delivery to both sides.
func (p *PipePort) Close() {
	if p == nil {
		return
	}
	p.box.close()
	if p.peer != nil {
		p.peer.box.close()
	}
}

// mailbox runs queued deliveries one at a time on a dedicated goroutine.
type mailbox struct {
	mu     sync.Mutex
	items  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mailbox) put(fn func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, fn)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

func (m *mailbox) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}
		for {
			m.mu.Lock()
			if m.closed || len(m.items) == 0 {
				m.mu.Unlock()
				break
			}
			fn := m.items[0]
			m.items = m.items[1:]
			m.mu.Unlock()
			fn()
		}
	}
}

var _ Port = (*PipePort)(nil)
