package ws

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mapforge/previewd/internal/metrics"
	"github.com/mapforge/previewd/internal/preview"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans preview events out to websocket clients. Phase
// updates are coalesced under a throttle; terminal events go out
// immediately, the completed one carrying the image inline.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool

	store    *preview.Store
	metrics  *metrics.Metrics
	throttle time.Duration

	flushMu        sync.Mutex
	pendingUpdates []*preview.Request
	flushTimer     *time.Timer
}

func NewBroadcaster(store *preview.Store, m *metrics.Metrics, throttle time.Duration) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		store:    store,
		metrics:  m,
		throttle: throttle,
	}
}

// Notify implements preview.Notifier.
func (b *Broadcaster) Notify(ev preview.Event) {
	switch ev.Type {
	case preview.EventCompleted:
		payload := CompletedPayload{Request: ev.Request}
		if png, ok := b.store.Image(ev.Request.ID); ok {
			payload.ImagePNG = base64.StdEncoding.EncodeToString(png)
		}
		b.broadcast(WSMessage{Type: MsgCompleted, Payload: payload})
	case preview.EventFailed:
		b.broadcast(WSMessage{Type: MsgFailed, Payload: FailedPayload{Request: ev.Request}})
	default:
		b.queueUpdate(ev.Request)
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	n := len(b.clients)
	b.mu.Unlock()
	b.metrics.WSClients.Set(float64(n))

	snapshot := WSMessage{
		Type: MsgSnapshot,
		Payload: SnapshotPayload{
			Requests: b.store.GetAll(),
			Depth:    b.store.ActiveCount(),
		},
	}
	data, _ := json.Marshal(snapshot)

	select {
	case c.send <- data:
	default:
		// Client too slow already; drop the snapshot.
	}

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	n := len(b.clients)
	b.mu.Unlock()
	b.metrics.WSClients.Set(float64(n))
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) queueUpdate(r *preview.Request) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingUpdates = append(b.pendingUpdates, r)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	updates := b.pendingUpdates
	b.pendingUpdates = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if len(updates) == 0 {
		return
	}

	b.broadcast(WSMessage{Type: MsgDelta, Payload: DeltaPayload{Updates: updates}})
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}
