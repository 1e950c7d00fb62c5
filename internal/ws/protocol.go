package ws

import (
	"github.com/mapforge/previewd/internal/preview"
)

type MessageType string

const (
	MsgSnapshot  MessageType = "snapshot"
	MsgDelta     MessageType = "delta"
	MsgCompleted MessageType = "completed"
	MsgFailed    MessageType = "failed"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Requests []*preview.Request `json:"requests"`
	Depth    int                `json:"depth"`
}

// DeltaPayload carries throttled non-terminal phase updates.
type DeltaPayload struct {
	Updates []*preview.Request `json:"updates"`
}

// CompletedPayload delivers the finished preview inline so frontends
// need no second round trip for the image.
type CompletedPayload struct {
	Request  *preview.Request `json:"request"`
	ImagePNG string           `json:"imagePng"` // base64
}

type FailedPayload struct {
	Request *preview.Request `json:"request"`
}
