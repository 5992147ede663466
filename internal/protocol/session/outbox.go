package session

import (
	"sync"

	"github.com/danmuck/framelink/internal/protocol"
)

// PendingQueue holds envelopes sent before the session is established.
// Drain returns them most recent first.
type PendingQueue struct {
	mu    sync.Mutex
	items []protocol.Envelope
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{}
}

func (q *PendingQueue) Push(env protocol.Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, env)
}

// Drain empties the queue and returns its envelopes in LIFO order.
func (q *PendingQueue) Drain() []protocol.Envelope {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, items[i])
	}
	return out
}

func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
