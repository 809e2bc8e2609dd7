package ws

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/ayushg31/whisp/internal/domain"
	"github.com/ayushg31/whisp/internal/presence"
)

// RegistryNotifier implements service.Notifier by looking receivers up in
// the presence registry. A user without a live channel gets nothing: the
// store row is the durable copy and the next fetch surfaces it. Delivery
// failures are logged and swallowed.
type RegistryNotifier struct {
	registry *presence.Registry
}

func NewRegistryNotifier(registry *presence.Registry) *RegistryNotifier {
	return &RegistryNotifier{registry: registry}
}

func (n *RegistryNotifier) NotifyNewMessage(msg *domain.Message) {
	n.push(msg.ReceiverID, EventTypeMessageNew, MessagePayload{Message: *msg})
}

func (n *RegistryNotifier) NotifySeen(senderID, by uuid.UUID) {
	n.push(senderID, EventTypeSeen, SeenPayload{By: by})
}

func (n *RegistryNotifier) push(userID uuid.UUID, eventType string, payload any) {
	ch, ok := n.registry.Lookup(userID)
	if !ok {
		return
	}

	evt, err := NewEvent(eventType, payload)
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}

	if err := ch.Deliver(data); err != nil {
		log.Printf("ws notifier: %s push to %s dropped: %v", eventType, userID, err)
	}
}
