package preview

import (
	"encoding/json"
	"time"
)

// Phase is the lifecycle position of one preview request.
type Phase int

const (
	Idle      Phase = iota
	Queued          // waiting for the predecessor's slot
	Listening       // listener bound, worker spawning
	Connected       // worker connected, handshake sent, payload streaming
	Completed       // raster decoded and delivered
	Failed          // terminal error; see Request.Error
)

var phaseNames = map[Phase]string{
	Idle:      "idle",
	Queued:    "queued",
	Listening: "listening",
	Connected: "connected",
	Completed: "completed",
	Failed:    "failed",
}

var phaseFromName = map[string]Phase{
	"idle":      Idle,
	"queued":    Queued,
	"listening": Listening,
	"connected": Connected,
	"completed": Completed,
	"failed":    Failed,
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := phaseFromName[s]; ok {
		*p = v
	}
	return nil
}

// IsTerminal reports whether the request is finished, successfully or not.
func (p Phase) IsTerminal() bool {
	return p == Completed || p == Failed
}

// Request is the externally visible state of one preview request.
type Request struct {
	ID          string     `json:"id"`
	Seed        string     `json:"seed"`
	Phase       Phase      `json:"phase"`
	Position    int        `json:"position"` // arrival order, monotonic
	QueuedAt    time.Time  `json:"queuedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
	HasImage    bool       `json:"hasImage"`
}

// Clone returns a deep copy so callers can mutate without racing the store.
func (r *Request) Clone() *Request {
	c := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
