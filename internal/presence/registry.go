// Package presence tracks which users currently hold a live connection.
// The registry is a best-effort routing hint, not a source of truth: the
// message store is what guarantees delivery.
package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Channel is an opaque handle to one live connection. Implementations must
// be comparable (pointer types are); Deliver must not block.
type Channel interface {
	Deliver(data []byte) error
}

// Registry maps a user to at most one live channel. All operations are
// atomic per key, so arbitrary register/unregister interleavings from
// concurrent connection lifecycles cannot leave a ghost or dropped entry.
type Registry struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[uuid.UUID]Channel)}
}

// Register binds userID to ch, replacing any previous channel. Last
// connection wins; the superseded channel is dropped from routing only.
func (r *Registry) Register(userID uuid.UUID, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[userID] = ch
}

// Unregister removes the entry only if ch is still the current channel for
// userID. A stale disconnect from a superseded connection must not evict
// the newer one. Reports whether the entry was removed.
func (r *Registry) Unregister(userID uuid.UUID, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channels[userID] != ch {
		return false
	}
	delete(r.channels, userID)
	return true
}

func (r *Registry) Lookup(userID uuid.UUID) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[userID]
	return ch, ok
}

// SnapshotIDs returns the ids of all currently registered users.
func (r *Registry) SnapshotIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	return ids
}

// Each calls fn for every registered channel. Used to fan out presence
// snapshots; fn must not call back into the registry.
func (r *Registry) Each(fn func(userID uuid.UUID, ch Channel)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, ch := range r.channels {
		fn(id, ch)
	}
}
