// Package chatclient implements the consumer-side conversation view: it
// merges the initial bulk fetch, live push notifications, and optimistic
// sends into one ordered, de-duplicated thread, and acknowledges seen
// state while the conversation is open.
package chatclient

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ayushg31/whisp/internal/domain"
)

var ErrNoConversation = errors.New("no conversation open")

// Backend is the server boundary the session drives. FetchConversation
// corresponds to conversation-open on the server: it returns the thread
// and bulk-marks the peer's messages seen as a side effect.
type Backend interface {
	FetchConversation(ctx context.Context, peerID uuid.UUID) ([]domain.Message, error)
	SendMessage(ctx context.Context, receiverID uuid.UUID, payload domain.Payload) (*domain.Message, error)
	MarkSeen(ctx context.Context, messageID uuid.UUID) error
}

// Stream delivers server pushes. Subscribe returns a handle that must be
// released when the conversation is no longer displayed; a released
// subscription delivers nothing.
type Stream interface {
	Subscribe(onMessage func(domain.Message), onSeen func(by uuid.UUID)) Subscription
}

type Subscription interface {
	Close()
}

// State of the open conversation.
type State int

const (
	StateClosed State = iota
	StateLoading
	StateLive
)

// Session is the per-user synchronizer. All exported methods are safe for
// concurrent use; push callbacks and user actions serialize on one lock.
type Session struct {
	userID  uuid.UUID
	backend Backend
	stream  Stream

	mu       sync.Mutex
	state    State
	peerID   uuid.UUID
	messages []domain.Message
	unseen   map[uuid.UUID]int
	sub      Subscription
}

func NewSession(userID uuid.UUID, backend Backend, stream Stream) *Session {
	return &Session{
		userID:  userID,
		backend: backend,
		stream:  stream,
		unseen:  make(map[uuid.UUID]int),
	}
}

// Open switches the session to the conversation with peer: it releases
// the previous subscription first, bulk-fetches the thread (the server
// marks it seen), replaces the local view, and subscribes to pushes.
func (s *Session) Open(ctx context.Context, peerID uuid.UUID) error {
	s.mu.Lock()
	// Unsubscribe before anything else so a stale handler cannot mutate
	// the next conversation's view.
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	s.state = StateLoading
	s.peerID = peerID
	s.messages = nil
	s.mu.Unlock()

	messages, err := s.backend.FetchConversation(ctx, peerID)
	if err != nil {
		s.mu.Lock()
		// A late failure must not clobber a conversation opened while
		// this fetch was in flight.
		if s.state == StateLoading && s.peerID == peerID {
			s.state = StateClosed
		}
		s.mu.Unlock()
		return err
	}

	// Subscribe outside the lock: a stream may deliver from its own
	// goroutine into handlers that take it.
	sub := s.stream.Subscribe(s.handleNewMessage, s.handleSeen)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoading || s.peerID != peerID {
		// Superseded by another Open or a Close while fetching.
		sub.Close()
		return nil
	}
	s.messages = messages
	delete(s.unseen, peerID)
	s.sub = sub
	s.state = StateLive
	return nil
}

// Close leaves the current conversation and releases the subscription.
// No further server interaction happens.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	s.state = StateClosed
	s.peerID = uuid.Nil
	s.messages = nil
}

// Send performs an optimistic send: the persisted message returned by the
// server is appended directly, without waiting for a push of our own
// message.
func (s *Session) Send(ctx context.Context, payload domain.Payload) (*domain.Message, error) {
	s.mu.Lock()
	if s.state != StateLive {
		s.mu.Unlock()
		return nil, ErrNoConversation
	}
	peerID := s.peerID
	s.mu.Unlock()

	msg, err := s.backend.SendMessage(ctx, peerID, payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLive && s.peerID == peerID {
		s.append(*msg)
	}
	return msg, nil
}

// State reports the current conversation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the ordered local view.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Unseen returns a copy of the per-sender unread counters.
func (s *Session) Unseen() map[uuid.UUID]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]int, len(s.unseen))
	for id, n := range s.unseen {
		out[id] = n
	}
	return out
}

// handleNewMessage merges a pushed message. If it belongs to the open
// conversation it is appended and, when we are the receiver, immediately
// acknowledged seen; otherwise the sender's unread counter is bumped
// without touching the store.
func (s *Session) handleNewMessage(msg domain.Message) {
	s.mu.Lock()
	if s.state != StateLive || !msg.InConversation(s.userID, s.peerID) {
		if msg.ReceiverID == s.userID {
			s.unseen[msg.SenderID]++
		}
		s.mu.Unlock()
		return
	}

	s.append(msg)
	ack := msg.ReceiverID == s.userID
	id := msg.ID
	s.mu.Unlock()

	if ack {
		// The message is being viewed the instant it arrives.
		if err := s.backend.MarkSeen(context.Background(), id); err != nil {
			log.Printf("chatclient: seen ack for %s failed: %v", id, err)
		}
	}
}

// handleSeen applies a coarse seen-receipt: every held message we sent to
// the acknowledging user flips seen. The receipt carries no message ids;
// this is a known coarse-grained approximation.
func (s *Session) handleSeen(by uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].SenderID == s.userID && s.messages[i].ReceiverID == by {
			s.messages[i].Seen = true
		}
	}
}

// append inserts a message keeping creation order and dropping duplicates
// (an optimistic send can race its own push). Caller holds s.mu.
func (s *Session) append(msg domain.Message) {
	for _, held := range s.messages {
		if held.ID == msg.ID {
			return
		}
	}
	s.messages = append(s.messages, msg)
	sort.SliceStable(s.messages, func(i, j int) bool {
		if s.messages[i].CreatedAt.Equal(s.messages[j].CreatedAt) {
			return s.messages[i].ID.String() < s.messages[j].ID.String()
		}
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
}
