package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ayushg31/whisp/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ListOthers(ctx context.Context, userID uuid.UUID) ([]domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListConversation returns all messages between the two users in either
	// direction, ordered by created_at ascending (id breaks ties).
	ListConversation(ctx context.Context, userA, userB uuid.UUID) ([]domain.Message, error)
	// MarkSeen flips the seen flag for one message. No-op if already seen
	// or the id does not exist.
	MarkSeen(ctx context.Context, id uuid.UUID) error
	// MarkSeenBulk flips the seen flag for every unseen message from
	// senderID to receiverID.
	MarkSeenBulk(ctx context.Context, senderID, receiverID uuid.UUID) error
	// SoftDelete tombstones a message: payload columns cleared, deleted set.
	SoftDelete(ctx context.Context, id uuid.UUID) error
	CountUnseen(ctx context.Context, receiverID, senderID uuid.UUID) (int, error)
	// UnseenBySender returns unseen counts for receiverID grouped by sender.
	UnseenBySender(ctx context.Context, receiverID uuid.UUID) (map[uuid.UUID]int, error)
}
