// Package queue implements the admission gate that serializes preview
// sessions. The generator engine listens on a single well-known loopback
// port, so at most one session may be listening or connected at a time;
// everyone else waits in arrival order.
package queue

import (
	"errors"
	"sync"
)

var ErrFull = errors.New("admission queue full")

// Ticket represents one position in the queue. Turn() is closed when the
// holder may begin its listen/spawn phase. The holder must call Done
// exactly once, whether or not it ever ran.
type Ticket struct {
	turn chan struct{}
}

// Turn returns a channel that is closed when it is this ticket's turn.
// For a ticket enqueued into an empty queue the channel is closed before
// Enqueue returns, so the caller starts immediately.
func (t *Ticket) Turn() <-chan struct{} {
	return t.turn
}

// Queue is a FIFO gate. The head ticket is the only one whose turn
// channel is closed; completing it signals the next in line.
type Queue struct {
	mu      sync.Mutex
	waiters []*Ticket
	max     int
}

// New creates a queue admitting at most max pending tickets. max <= 0
// means unbounded.
func New(max int) *Queue {
	return &Queue{max: max}
}

// Enqueue appends a new ticket. The empty-check and the registration
// happen under one lock, so a predecessor cannot complete between them.
func (q *Queue) Enqueue() (*Ticket, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.max > 0 && len(q.waiters) >= q.max {
		return nil, ErrFull
	}

	t := &Ticket{turn: make(chan struct{})}
	q.waiters = append(q.waiters, t)
	if len(q.waiters) == 1 {
		close(t.turn)
	}
	return t, nil
}

// Done removes t from the queue and, if t was the head, hands the turn
// to the next waiter. A ticket that gave up before its turn (context
// cancelled while queued) is removed in place so the chain is unbroken.
// Calling Done with an unknown ticket is a no-op.
func (q *Queue) Done(t *Ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiters {
		if w != t {
			continue
		}
		q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
		if i == 0 && len(q.waiters) > 0 {
			close(q.waiters[0].turn)
		}
		return
	}
}

// Depth reports the number of tickets currently held, including the
// active head.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}
