package queue

import (
	"testing"
	"time"
)

func turnGranted(t *Ticket) bool {
	select {
	case <-t.Turn():
		return true
	default:
		return false
	}
}

func TestEnqueueEmptyStartsImmediately(t *testing.T) {
	q := New(0)
	ticket, err := q.Enqueue()
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !turnGranted(ticket) {
		t.Error("first ticket's turn not granted immediately")
	}
}

func TestEnqueueNonEmptyWaits(t *testing.T) {
	q := New(0)
	first, _ := q.Enqueue()
	second, _ := q.Enqueue()

	if !turnGranted(first) {
		t.Error("head ticket should hold the turn")
	}
	if turnGranted(second) {
		t.Error("second ticket granted turn while first still active")
	}

	q.Done(first)
	select {
	case <-second.Turn():
	case <-time.After(time.Second):
		t.Fatal("second ticket not granted turn after head completed")
	}
}

func TestFIFOOrder(t *testing.T) {
	q := New(0)
	const n = 5
	tickets := make([]*Ticket, n)
	for i := range tickets {
		tickets[i], _ = q.Enqueue()
	}

	for i := 0; i < n; i++ {
		select {
		case <-tickets[i].Turn():
		case <-time.After(time.Second):
			t.Fatalf("ticket %d never granted turn", i)
		}
		// No later ticket may hold the turn yet.
		for j := i + 1; j < n; j++ {
			if turnGranted(tickets[j]) {
				t.Fatalf("ticket %d granted turn while %d active", j, i)
			}
		}
		q.Done(tickets[i])
	}

	if got := q.Depth(); got != 0 {
		t.Errorf("Depth after draining = %d, want 0", got)
	}
}

func TestLastEntryRemovedOnCompletion(t *testing.T) {
	// A queue of size 1 goes through the same pop path as size N.
	q := New(0)
	only, _ := q.Enqueue()
	q.Done(only)
	if got := q.Depth(); got != 0 {
		t.Errorf("Depth = %d, want 0", got)
	}

	// Queue must be reusable afterwards.
	next, _ := q.Enqueue()
	if !turnGranted(next) {
		t.Error("ticket enqueued into drained queue not granted turn")
	}
}

func TestGiveUpWhileQueued(t *testing.T) {
	q := New(0)
	first, _ := q.Enqueue()
	second, _ := q.Enqueue()
	third, _ := q.Enqueue()

	// Second abandons its slot before its turn; chain must stay intact.
	q.Done(second)
	q.Done(first)

	select {
	case <-third.Turn():
	case <-time.After(time.Second):
		t.Fatal("third ticket not granted turn after abandoned predecessor")
	}
}

func TestDoneUnknownTicketIsNoop(t *testing.T) {
	q := New(0)
	first, _ := q.Enqueue()
	q.Done(&Ticket{turn: make(chan struct{})})
	if got := q.Depth(); got != 1 {
		t.Errorf("Depth = %d, want 1", got)
	}
	if !turnGranted(first) {
		t.Error("head lost its turn")
	}
}

func TestBoundedQueue(t *testing.T) {
	q := New(2)
	a, _ := q.Enqueue()
	if _, err := q.Enqueue(); err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if _, err := q.Enqueue(); err != ErrFull {
		t.Errorf("third Enqueue error = %v, want ErrFull", err)
	}

	q.Done(a)
	if _, err := q.Enqueue(); err != nil {
		t.Errorf("Enqueue after Done: %v", err)
	}
}
