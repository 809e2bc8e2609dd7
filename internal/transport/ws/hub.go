package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ayushg31/whisp/internal/presence"
)

const seenAckTimeout = 5 * time.Second

// SeenReconciler flips store seen-state for a whole conversation and
// pushes the receipt. Implemented by service.ChatService.
type SeenReconciler interface {
	MarkConversationSeen(ctx context.Context, viewerID, peerID uuid.UUID) error
}

// Hub ties connection lifecycles to the presence registry and broadcasts
// the online snapshot on every change.
type Hub struct {
	registry *presence.Registry
	seen     SeenReconciler
}

func NewHub(registry *presence.Registry, seen SeenReconciler) *Hub {
	return &Hub{registry: registry, seen: seen}
}

// Connect registers the client as its user's live channel and broadcasts
// the updated presence snapshot. A previous connection for the same user
// is superseded and left to die on its own read error.
func (h *Hub) Connect(c *Client) {
	h.registry.Register(c.userID, c)
	log.Printf("ws hub: user %s connected (%d online)", c.userID, len(h.registry.SnapshotIDs()))
	h.broadcastPresence()
}

// Disconnect removes the client from the registry unless it was already
// superseded, then shuts its pumps down.
func (h *Hub) Disconnect(c *Client) {
	removed := h.registry.Unregister(c.userID, c)
	c.shutdown()
	if removed {
		log.Printf("ws hub: user %s disconnected (%d online)", c.userID, len(h.registry.SnapshotIDs()))
		h.broadcastPresence()
	}
}

// HandleSeenAck runs the bulk seen reconciliation for the acking client's
// open conversation. Store errors are logged; the socket stays up.
func (h *Hub) HandleSeenAck(c *Client, peerID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), seenAckTimeout)
	defer cancel()
	if err := h.seen.MarkConversationSeen(ctx, c.userID, peerID); err != nil {
		log.Printf("ws hub: seen ack from %s failed: %v", c.userID, err)
	}
}

// broadcastPresence pushes the full online-id snapshot to every connected
// client, the originator included.
func (h *Hub) broadcastPresence() {
	evt, err := NewEvent(EventTypePresence, PresencePayload{Online: h.registry.SnapshotIDs()})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.registry.Each(func(userID uuid.UUID, ch presence.Channel) {
		if err := ch.Deliver(data); err != nil {
			log.Printf("ws hub: presence push to %s dropped: %v", userID, err)
		}
	})
}
