package preview

// EventType classifies preview lifecycle events.
type EventType int

const (
	EventQueued    EventType = iota // request admitted to the queue
	EventPhase                      // non-terminal phase change
	EventCompleted                  // raster decoded and stored
	EventFailed                     // terminal failure
)

// Event carries a request snapshot to observers (stats, broadcast).
type Event struct {
	Type    EventType
	Request *Request // snapshot (safe to retain)
	Depth   int      // queue depth at event time
}
