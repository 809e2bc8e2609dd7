package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ayushg31/whisp/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeSeenAck = "seen.ack"
	EventTypePing    = "ping"
)

// Event types - Server → Client
const (
	EventTypePresence   = "presence"
	EventTypeMessageNew = "message.new"
	EventTypeSeen       = "messages.seen"
	EventTypePong       = "pong"
	EventTypeError      = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

// SeenAckPayload acknowledges that the client has the conversation with
// peer open and has observed its messages.
type SeenAckPayload struct {
	PeerID uuid.UUID `json:"peer_id"`
}

// --- Server → Client payloads ---

// PresencePayload is the full online-user snapshot, broadcast to every
// connected client on each connect and disconnect.
type PresencePayload struct {
	Online []uuid.UUID `json:"online"`
}

type MessagePayload struct {
	domain.Message
}

// SeenPayload is the coarse seen-receipt: it names the acknowledging user
// only, not individual message ids.
type SeenPayload struct {
	By uuid.UUID `json:"by"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
