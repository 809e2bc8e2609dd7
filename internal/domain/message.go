package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Payload kinds. A message carries exactly one variant.
const (
	PayloadText  = "text"
	PayloadImage = "image"
	PayloadVideo = "video"
	PayloadDoc   = "doc"
)

var (
	ErrEmptyPayload       = errors.New("message payload is empty")
	ErrConflictingPayload = errors.New("message payload must carry exactly one variant")
)

// Payload is the tagged content union of a message. Use the constructors;
// a zero Payload is invalid.
type Payload struct {
	Kind string `json:"kind"`
	// Text is set for text payloads.
	Text string `json:"text,omitempty"`
	// URL is set for image/video/doc payloads (blob store reference).
	URL string `json:"url,omitempty"`
	// Name is the original filename, set for video/doc payloads.
	Name string `json:"name,omitempty"`
}

func TextPayload(text string) (Payload, error) {
	if text == "" {
		return Payload{}, ErrEmptyPayload
	}
	return Payload{Kind: PayloadText, Text: text}, nil
}

func ImagePayload(url string) (Payload, error) {
	if url == "" {
		return Payload{}, ErrEmptyPayload
	}
	return Payload{Kind: PayloadImage, URL: url}, nil
}

func VideoPayload(url, name string) (Payload, error) {
	if url == "" {
		return Payload{}, ErrEmptyPayload
	}
	return Payload{Kind: PayloadVideo, URL: url, Name: name}, nil
}

func DocPayload(url, name string) (Payload, error) {
	if url == "" {
		return Payload{}, ErrEmptyPayload
	}
	return Payload{Kind: PayloadDoc, URL: url, Name: name}, nil
}

// Validate checks the exactly-one-variant invariant on a payload that was
// decoded rather than constructed.
func (p Payload) Validate() error {
	switch p.Kind {
	case PayloadText:
		if p.Text == "" {
			return ErrEmptyPayload
		}
		if p.URL != "" || p.Name != "" {
			return ErrConflictingPayload
		}
	case PayloadImage, PayloadVideo, PayloadDoc:
		if p.URL == "" {
			return ErrEmptyPayload
		}
		if p.Text != "" {
			return ErrConflictingPayload
		}
	default:
		return ErrEmptyPayload
	}
	return nil
}

type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Payload    Payload   `json:"payload"`
	Seen       bool      `json:"seen"`
	Deleted    bool      `json:"deleted"`
	CreatedAt  time.Time `json:"created_at"`
}

// Tombstone clears the payload in place, keeping identity and ordering
// fields. Idempotent.
func (m *Message) Tombstone() {
	m.Payload = Payload{Kind: m.Payload.Kind}
	m.Deleted = true
}

// InConversation reports whether the message belongs to the unordered
// user pair {a, b}.
func (m *Message) InConversation(a, b uuid.UUID) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}
