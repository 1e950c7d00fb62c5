// Package stats aggregates preview lifecycle counters for the /api/stats
// endpoint. It observes coordinator events over a channel, so a slow
// consumer can never stall a session.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/mapforge/previewd/internal/preview"
)

// Stats is the aggregate view. All durations are milliseconds in JSON.
type Stats struct {
	TotalRequested   int            `json:"totalRequested"`
	TotalCompleted   int            `json:"totalCompleted"`
	TotalFailed      int            `json:"totalFailed"`
	FailuresByError  map[string]int `json:"failuresByError,omitempty"`
	MaxQueueDepth    int            `json:"maxQueueDepth"`
	MeanGenerationMS float64        `json:"meanGenerationMs"`
	LastSeed         string         `json:"lastSeed,omitempty"`
	LastCompletedAt  *time.Time     `json:"lastCompletedAt,omitempty"`
}

func (s *Stats) clone() *Stats {
	c := *s
	if s.FailuresByError != nil {
		c.FailuresByError = make(map[string]int, len(s.FailuresByError))
		for k, v := range s.FailuresByError {
			c.FailuresByError[k] = v
		}
	}
	if s.LastCompletedAt != nil {
		t := *s.LastCompletedAt
		c.LastCompletedAt = &t
	}
	return &c
}

// Tracker consumes preview events and maintains aggregate stats.
type Tracker struct {
	events chan preview.Event

	mu       sync.Mutex
	stats    *Stats
	genTotal time.Duration
	genCount int
}

// NewTracker returns the tracker and the send side of its event channel
// for the coordinator. The caller must run Run in a goroutine.
func NewTracker() (*Tracker, chan<- preview.Event) {
	ch := make(chan preview.Event, 256)
	t := &Tracker{
		events: ch,
		stats: &Stats{
			FailuresByError: make(map[string]int),
		},
	}
	return t, ch
}

// Run processes events until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.events:
			t.processEvent(ev)
		}
	}
}

// Stats returns a copy of the current aggregates.
func (t *Tracker) Stats() *Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats.clone()
}

func (t *Tracker) processEvent(ev preview.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := ev.Request
	if ev.Depth > t.stats.MaxQueueDepth {
		t.stats.MaxQueueDepth = ev.Depth
	}

	switch ev.Type {
	case preview.EventQueued:
		t.stats.TotalRequested++

	case preview.EventCompleted:
		t.stats.TotalCompleted++
		t.stats.LastSeed = r.Seed
		t.stats.LastCompletedAt = r.CompletedAt
		if r.StartedAt != nil && r.CompletedAt != nil {
			t.genTotal += r.CompletedAt.Sub(*r.StartedAt)
			t.genCount++
			t.stats.MeanGenerationMS = float64(t.genTotal.Milliseconds()) / float64(t.genCount)
		}

	case preview.EventFailed:
		t.stats.TotalFailed++
		if r.Error != "" {
			t.stats.FailuresByError[r.Error]++
		}
	}
}
