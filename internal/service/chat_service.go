package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayushg31/whisp/internal/domain"
	"github.com/ayushg31/whisp/internal/repository"
)

var (
	ErrMessageNotFound   = errors.New("message not found")
	ErrNotMessageOwner   = errors.New("only the message sender can perform this action")
	ErrCannotMessageSelf = errors.New("cannot send a message to yourself")
)

// Notifier pushes real-time events to live connections. Implementations
// must never block and never fail the calling operation: the store write
// is the delivery guarantee, the push is a latency optimization.
type Notifier interface {
	// NotifyNewMessage pushes a new message to its receiver, if live.
	NotifyNewMessage(msg *domain.Message)
	// NotifySeen pushes a coarse seen-receipt to senderID, if live,
	// identifying the acknowledging user only.
	NotifySeen(senderID, by uuid.UUID)
}

// ChatService routes newly created messages to live receivers and
// reconciles seen state between the store and live connections.
type ChatService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	notifier    Notifier
}

func NewChatService(messageRepo repository.MessageRepository, userRepo repository.UserRepository) *ChatService {
	return &ChatService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *ChatService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SidebarResponse struct {
	Users  []domain.User  `json:"users"`
	Unseen map[string]int `json:"unseen_messages"`
}

// Send persists a message and routes it to the receiver's live connection
// if there is one. The row is durable before any push happens, so a failed
// or skipped push is always recoverable by the next conversation fetch.
func (s *ChatService) Send(ctx context.Context, senderID, receiverID uuid.UUID, payload domain.Payload) (*domain.Message, error) {
	if senderID == receiverID {
		return nil, ErrCannotMessageSelf
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	receiver, err := s.userRepo.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, ErrUserNotFound
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Payload:    payload,
		CreatedAt:  time.Now(),
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(msg)
	}

	return msg, nil
}

// Conversation returns all messages between the viewer and peer in
// chronological order, marks the peer's messages seen, and pushes a
// seen-receipt to the peer. This is the conversation-open path.
func (s *ChatService) Conversation(ctx context.Context, viewerID, peerID uuid.UUID) ([]domain.Message, error) {
	messages, err := s.messageRepo.ListConversation(ctx, viewerID, peerID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	if err := s.MarkConversationSeen(ctx, viewerID, peerID); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkConversationSeen flips every unseen message from peerID to viewerID
// and pushes a receipt to the peer. Idempotent: the seen flag is monotonic.
func (s *ChatService) MarkConversationSeen(ctx context.Context, viewerID, peerID uuid.UUID) error {
	if err := s.messageRepo.MarkSeenBulk(ctx, peerID, viewerID); err != nil {
		return fmt.Errorf("marking conversation seen: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifySeen(peerID, viewerID)
	}
	return nil
}

// MarkMessageSeen flips a single message seen and pushes a receipt to its
// sender, attributed to the acknowledging viewer. Used when a message
// arrives into an already-open conversation.
func (s *ChatService) MarkMessageSeen(ctx context.Context, viewerID, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}

	if err := s.messageRepo.MarkSeen(ctx, messageID); err != nil {
		return fmt.Errorf("marking message seen: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifySeen(msg.SenderID, viewerID)
	}
	return nil
}

// Delete tombstones a message for everyone. Only the sender may delete;
// re-deleting an already-deleted message succeeds.
func (s *ChatService) Delete(ctx context.Context, requesterID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != requesterID {
		return nil, ErrNotMessageOwner
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return nil, fmt.Errorf("deleting message: %w", err)
	}

	msg.Tombstone()
	return msg, nil
}

// Sidebar returns every other user plus per-sender unseen counts for the
// unread badges.
func (s *ChatService) Sidebar(ctx context.Context, userID uuid.UUID) (*SidebarResponse, error) {
	users, err := s.userRepo.ListOthers(ctx, userID)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}

	counts, err := s.messageRepo.UnseenBySender(ctx, userID)
	if err != nil {
		return nil, err
	}

	unseen := make(map[string]int, len(counts))
	for senderID, n := range counts {
		unseen[senderID.String()] = n
	}

	return &SidebarResponse{Users: users, Unseen: unseen}, nil
}
