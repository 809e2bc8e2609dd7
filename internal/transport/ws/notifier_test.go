package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ayushg31/whisp/internal/domain"
	"github.com/ayushg31/whisp/internal/presence"
)

type captureChannel struct {
	delivered [][]byte
	fail      error
}

func (c *captureChannel) Deliver(data []byte) error {
	if c.fail != nil {
		return c.fail
	}
	c.delivered = append(c.delivered, data)
	return nil
}

func (c *captureChannel) lastEvent(t *testing.T) *Event {
	t.Helper()
	require.NotEmpty(t, c.delivered)
	var evt Event
	require.NoError(t, json.Unmarshal(c.delivered[len(c.delivered)-1], &evt))
	return &evt
}

func TestRegistryNotifier_NewMessage_ToLiveReceiver(t *testing.T) {
	req := require.New(t)
	registry := presence.NewRegistry()
	notifier := NewRegistryNotifier(registry)

	receiverID := uuid.New()
	ch := &captureChannel{}
	registry.Register(receiverID, ch)

	payload, err := domain.TextPayload("hi")
	req.NoError(err)
	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   uuid.New(),
		ReceiverID: receiverID,
		Payload:    payload,
		CreatedAt:  time.Now(),
	}
	notifier.NotifyNewMessage(msg)

	evt := ch.lastEvent(t)
	req.Equal(EventTypeMessageNew, evt.Type)

	var got MessagePayload
	req.NoError(json.Unmarshal(evt.Payload, &got))
	req.Equal(msg.ID, got.ID)
	req.Equal("hi", got.Payload.Text)
}

func TestRegistryNotifier_NewMessage_OfflineReceiverIsNoop(t *testing.T) {
	registry := presence.NewRegistry()
	notifier := NewRegistryNotifier(registry)

	payload, _ := domain.TextPayload("hi")
	// No channel registered for the receiver: nothing to do, no panic.
	notifier.NotifyNewMessage(&domain.Message{
		ID:         uuid.New(),
		SenderID:   uuid.New(),
		ReceiverID: uuid.New(),
		Payload:    payload,
	})
}

func TestRegistryNotifier_Seen_ToLiveSender(t *testing.T) {
	req := require.New(t)
	registry := presence.NewRegistry()
	notifier := NewRegistryNotifier(registry)

	senderID, by := uuid.New(), uuid.New()
	ch := &captureChannel{}
	registry.Register(senderID, ch)

	notifier.NotifySeen(senderID, by)

	evt := ch.lastEvent(t)
	req.Equal(EventTypeSeen, evt.Type)

	var got SeenPayload
	req.NoError(json.Unmarshal(evt.Payload, &got))
	req.Equal(by, got.By)
}

func TestRegistryNotifier_DeliveryFailureIsSwallowed(t *testing.T) {
	registry := presence.NewRegistry()
	notifier := NewRegistryNotifier(registry)

	senderID := uuid.New()
	registry.Register(senderID, &captureChannel{fail: ErrSlowConsumer})

	// Must not panic or surface the error: the store write already
	// succeeded, the push is best-effort.
	notifier.NotifySeen(senderID, uuid.New())
}
