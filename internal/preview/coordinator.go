package preview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mapforge/previewd/internal/config"
	"github.com/mapforge/previewd/internal/engine"
	"github.com/mapforge/previewd/internal/metrics"
	"github.com/mapforge/previewd/internal/queue"
	"github.com/mapforge/previewd/internal/raster"
)

// Notifier receives lifecycle events for live delivery to clients.
// Implementations must not block.
type Notifier interface {
	Notify(ev Event)
}

// Coordinator owns the admission queue and runs one session per request.
// Sessions are serialized by the queue, so the engine's fixed port is
// held by at most one listener at a time.
type Coordinator struct {
	cfg      *config.Config
	store    *Store
	queue    *queue.Queue
	launcher engine.Launcher
	notifier Notifier
	metrics  *metrics.Metrics

	ctx context.Context // set by Start; parent of every session

	statsEvents      chan<- Event // nil disables stats emission
	statsMu          sync.Mutex   // guards the drop counters below
	statsDropped     int64
	statsLastDropLog time.Time
}

func NewCoordinator(cfg *config.Config, store *Store, q *queue.Queue, launcher engine.Launcher, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		store:    store,
		queue:    q,
		launcher: launcher,
		metrics:  m,
	}
}

// SetNotifier configures live event delivery. Must be called before Start.
func (c *Coordinator) SetNotifier(n Notifier) {
	c.notifier = n
}

// SetStatsEvents configures a channel for lifecycle events. The send is
// non-blocking; drops are counted and logged. Pass nil to disable.
func (c *Coordinator) SetStatsEvents(ch chan<- Event) {
	c.statsEvents = ch
}

// Start binds the coordinator to its root context and begins pruning
// finished requests. Every session derives from ctx, so cancelling it
// drains the queue.
func (c *Coordinator) Start(ctx context.Context) {
	c.ctx = ctx
	go c.janitor(ctx)
}

// Request validates the seed, admits the request, and starts its session
// in the background. The returned channel is closed when the request
// reaches a terminal phase.
func (c *Coordinator) Request(seed string) (*Request, <-chan struct{}, error) {
	if c.ctx == nil {
		return nil, nil, errors.New("coordinator not started")
	}
	if err := ValidateSeed(seed); err != nil {
		return nil, nil, err
	}

	ticket, err := c.queue.Enqueue()
	if err != nil {
		return nil, nil, err
	}

	req := &Request{
		ID:       uuid.NewString(),
		Seed:     seed,
		Phase:    Queued,
		QueuedAt: time.Now(),
	}
	c.store.Update(req)
	c.metrics.QueueDepth.Set(float64(c.queue.Depth()))
	c.emit(EventQueued, req.ID)

	done := make(chan struct{})
	go c.runSession(req.ID, seed, ticket, done)

	stored, _ := c.store.Get(req.ID)
	return stored, done, nil
}

// QueueDepth reports queued plus running requests.
func (c *Coordinator) QueueDepth() int {
	return c.queue.Depth()
}

func (c *Coordinator) runSession(id, seed string, ticket *queue.Ticket, done chan struct{}) {
	defer close(done)
	// Slot release is unconditional: bind failures, spawn failures,
	// decode errors, and shutdown all unblock the successor.
	defer func() {
		c.queue.Done(ticket)
		c.metrics.QueueDepth.Set(float64(c.queue.Depth()))
	}()

	select {
	case <-ticket.Turn():
	case <-c.ctx.Done():
		c.fail(id, fmt.Errorf("shutdown while queued: %w", c.ctx.Err()))
		return
	}

	started := time.Now()
	c.setStarted(id, started)

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.Preview.SessionTimeout)
	defer cancel()

	sess := &session{
		id:         id,
		seed:       seed,
		addr:       net.JoinHostPort("127.0.0.1", strconv.Itoa(c.cfg.Engine.Port)),
		launcher:   c.launcher,
		maxPayload: c.cfg.Preview.MaxPayloadBytes,
	}

	r, err := sess.run(ctx, func(p Phase) { c.setPhase(id, p) })
	if err != nil {
		c.fail(id, err)
		return
	}

	png, err := r.PNG()
	if err != nil {
		c.fail(id, fmt.Errorf("encoding preview: %w", err))
		return
	}

	c.complete(id, png)
	c.metrics.Generation.Observe(time.Since(started).Seconds())
}

func (c *Coordinator) setStarted(id string, at time.Time) {
	if r, ok := c.store.Get(id); ok {
		r.StartedAt = &at
		c.store.Update(r)
	}
}

func (c *Coordinator) setPhase(id string, p Phase) {
	if r, ok := c.store.Get(id); ok {
		r.Phase = p
		c.store.Update(r)
		c.emit(EventPhase, id)
	}
}

func (c *Coordinator) complete(id string, png []byte) {
	now := time.Now()
	if r, ok := c.store.Get(id); ok {
		r.Phase = Completed
		r.CompletedAt = &now
		c.store.Update(r)
	}
	c.store.SetImage(id, png)
	c.metrics.Previews.WithLabelValues("completed").Inc()
	c.emit(EventCompleted, id)
}

func (c *Coordinator) fail(id string, err error) {
	now := time.Now()
	log.Printf("preview %s failed: %v", id, err)
	if r, ok := c.store.Get(id); ok {
		r.Phase = Failed
		r.Error = err.Error()
		r.CompletedAt = &now
		c.store.Update(r)
	}
	c.metrics.Previews.WithLabelValues(failReason(err)).Inc()
	c.emit(EventFailed, id)
}

// failReason buckets terminal errors for the previews counter.
func failReason(err error) string {
	var decodeErr *raster.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		return "decode_error"
	case errors.Is(err, errPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

func (c *Coordinator) emit(evType EventType, id string) {
	r, ok := c.store.Get(id)
	if !ok {
		return
	}
	ev := Event{Type: evType, Request: r, Depth: c.queue.Depth()}

	if c.notifier != nil {
		c.notifier.Notify(ev)
	}

	if c.statsEvents == nil {
		return
	}
	select {
	case c.statsEvents <- ev:
	default:
		c.statsMu.Lock()
		defer c.statsMu.Unlock()
		c.statsDropped++
		now := time.Now()
		if c.statsLastDropLog.IsZero() || now.Sub(c.statsLastDropLog) >= 10*time.Second {
			log.Printf("stats events dropped: %d (channel full)", c.statsDropped)
			c.statsDropped = 0
			c.statsLastDropLog = now
		}
	}
}

func (c *Coordinator) janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.store.Prune(c.cfg.Preview.RetainCompleted, time.Now()); len(removed) > 0 {
				log.Printf("pruned %d finished previews", len(removed))
			}
		}
	}
}
