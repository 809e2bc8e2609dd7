package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ayushg31/whisp/internal/domain"
)

// memMessageRepo is an in-memory MessageRepository for service tests.
type memMessageRepo struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (r *memMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			msg := r.messages[i]
			return &msg, nil
		}
	}
	return nil, nil
}

func (r *memMessageRepo) ListConversation(ctx context.Context, userA, userB uuid.UUID) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, msg := range r.messages {
		if msg.InConversation(userA, userB) {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memMessageRepo) MarkSeen(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages[i].Seen = true
		}
	}
	return nil
}

func (r *memMessageRepo) MarkSeenBulk(ctx context.Context, senderID, receiverID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].SenderID == senderID && r.messages[i].ReceiverID == receiverID {
			r.messages[i].Seen = true
		}
	}
	return nil
}

func (r *memMessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages[i].Tombstone()
		}
	}
	return nil
}

func (r *memMessageRepo) CountUnseen(ctx context.Context, receiverID, senderID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, msg := range r.messages {
		if msg.ReceiverID == receiverID && msg.SenderID == senderID && !msg.Seen {
			count++
		}
	}
	return count, nil
}

func (r *memMessageRepo) UnseenBySender(ctx context.Context, receiverID uuid.UUID) (map[uuid.UUID]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[uuid.UUID]int)
	for _, msg := range r.messages {
		if msg.ReceiverID == receiverID && !msg.Seen {
			counts[msg.SenderID]++
		}
	}
	return counts, nil
}

type memUserRepo struct {
	users map[uuid.UUID]*domain.User
}

func newMemUserRepo(ids ...uuid.UUID) *memUserRepo {
	r := &memUserRepo{users: make(map[uuid.UUID]*domain.User)}
	for i, id := range ids {
		r.users[id] = &domain.User{ID: id, Username: "user" + string(rune('a'+i)), CreatedAt: time.Now()}
	}
	return r
}

func (r *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.users[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return nil, nil
}

func (r *memUserRepo) ListOthers(ctx context.Context, userID uuid.UUID) ([]domain.User, error) {
	var out []domain.User
	for id, u := range r.users {
		if id != userID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

// recordingNotifier records pushes instead of delivering them.
type recordingNotifier struct {
	newMessages []domain.Message
	receipts    []receipt
}

type receipt struct {
	senderID uuid.UUID
	by       uuid.UUID
}

func (n *recordingNotifier) NotifyNewMessage(msg *domain.Message) {
	n.newMessages = append(n.newMessages, *msg)
}

func (n *recordingNotifier) NotifySeen(senderID, by uuid.UUID) {
	n.receipts = append(n.receipts, receipt{senderID: senderID, by: by})
}

func newChatFixture(t *testing.T, userIDs ...uuid.UUID) (*ChatService, *memMessageRepo, *recordingNotifier) {
	t.Helper()
	repo := &memMessageRepo{}
	notifier := &recordingNotifier{}
	svc := NewChatService(repo, newMemUserRepo(userIDs...))
	svc.SetNotifier(notifier)
	return svc, repo, notifier
}

func mustText(t *testing.T, text string) domain.Payload {
	t.Helper()
	p, err := domain.TextPayload(text)
	require.NoError(t, err)
	return p
}

func TestChatService_Send_PersistsAndNotifies(t *testing.T) {
	req := require.New(t)
	alice, bob := uuid.New(), uuid.New()
	svc, repo, notifier := newChatFixture(t, alice, bob)
	ctx := context.Background()

	msg, err := svc.Send(ctx, alice, bob, mustText(t, "hi"))
	req.NoError(err)
	req.Equal(alice, msg.SenderID)
	req.Equal(bob, msg.ReceiverID)
	req.False(msg.Seen)
	req.False(msg.Deleted)

	// Round-trip: the appended message is in the conversation with
	// matching fields.
	stored, err := repo.ListConversation(ctx, alice, bob)
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal(msg.ID, stored[0].ID)
	req.Equal("hi", stored[0].Payload.Text)

	// The push carried the full message.
	req.Len(notifier.newMessages, 1)
	req.Equal(msg.ID, notifier.newMessages[0].ID)
}

func TestChatService_Send_RejectsEmptyPayload(t *testing.T) {
	req := require.New(t)
	alice, bob := uuid.New(), uuid.New()
	svc, repo, _ := newChatFixture(t, alice, bob)

	_, err := svc.Send(context.Background(), alice, bob, domain.Payload{Kind: domain.PayloadText})
	req.ErrorIs(err, domain.ErrEmptyPayload)
	req.Empty(repo.messages)
}

func TestChatService_Send_RejectsSelfAndUnknownReceiver(t *testing.T) {
	req := require.New(t)
	alice := uuid.New()
	svc, _, _ := newChatFixture(t, alice)

	_, err := svc.Send(context.Background(), alice, alice, mustText(t, "hi"))
	req.ErrorIs(err, ErrCannotMessageSelf)

	_, err = svc.Send(context.Background(), alice, uuid.New(), mustText(t, "hi"))
	req.ErrorIs(err, ErrUserNotFound)
}

func TestChatService_Conversation_MarksSeenAndSendsReceipt(t *testing.T) {
	req := require.New(t)
	alice, bob := uuid.New(), uuid.New()
	svc, repo, notifier := newChatFixture(t, alice, bob)
	ctx := context.Background()

	// Given A sent to B while B was away
	sent, err := svc.Send(ctx, alice, bob, mustText(t, "hi"))
	req.NoError(err)

	// When B opens the conversation
	messages, err := svc.Conversation(ctx, bob, alice)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(sent.ID, messages[0].ID)

	// Then the message is seen in the store
	stored, err := repo.GetByID(ctx, sent.ID)
	req.NoError(err)
	req.True(stored.Seen)

	// And A got a receipt identifying B
	req.Len(notifier.receipts, 1)
	req.Equal(receipt{senderID: alice, by: bob}, notifier.receipts[0])
}

func TestChatService_Conversation_OrderedByCreation(t *testing.T) {
	req := require.New(t)
	alice, bob := uuid.New(), uuid.New()
	svc, _, _ := newChatFixture(t, alice, bob)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.Send(ctx, alice, bob, mustText(t, text))
		req.NoError(err)
	}
	_, err := svc.Send(ctx, bob, alice, mustText(t, "four"))
	req.NoError(err)

	messages, err := svc.Conversation(ctx, bob, alice)
	req.NoError(err)
	req.Len(messages, 4)
	for i := 1; i < len(messages); i++ {
		req.False(messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
}

func TestChatService_MarkMessageSeen_IsIdempotent(t *testing.T) {
	req := require.New(t)
	alice, bob := uuid.New(), uuid.New()
	svc, repo, notifier := newChatFixture(t, alice, bob)
	ctx := context.Background()

	msg, err := svc.Send(ctx, alice, bob, mustText(t, "hi"))
	req.NoError(err)

	req.NoError(svc.MarkMessageSeen(ctx, bob, msg.ID))
	first, err := repo.GetByID(ctx, msg.ID)
	req.NoError(err)

	req.NoError(svc.MarkMessageSeen(ctx, bob, msg.ID))
	second, err := repo.GetByID(ctx, msg.ID)
	req.NoError(err)

	req.True(first.Seen)
	req.Equal(first, second)

	// Each ack still produces a receipt toward the sender; the monotonic
	// store flag absorbs the duplicates.
	req.Len(notifier.receipts, 2)
	req.Equal(alice, notifier.receipts[0].senderID)
}

func TestChatService_MarkMessageSeen_ReceiptNamesAckingViewer(t *testing.T) {
	req := require.New(t)
	alice, bob := uuid.New(), uuid.New()
	svc, _, notifier := newChatFixture(t, alice, bob)
	ctx := context.Background()

	msg, err := svc.Send(ctx, alice, bob, mustText(t, "hi"))
	req.NoError(err)

	// The viewer acking the message, not the addressed receiver, is who
	// the sender's receipt must name.
	viewer := uuid.New()
	req.NoError(svc.MarkMessageSeen(ctx, viewer, msg.ID))

	req.Len(notifier.receipts, 1)
	req.Equal(receipt{senderID: alice, by: viewer}, notifier.receipts[0])
}

func TestChatService_MarkMessageSeen_UnknownID(t *testing.T) {
	req := require.New(t)
	svc, _, _ := newChatFixture(t, uuid.New())

	err := svc.MarkMessageSeen(context.Background(), uuid.New(), uuid.New())
	req.ErrorIs(err, ErrMessageNotFound)
}

func TestChatService_Delete_TombstonesForSender(t *testing.T) {
	req := require.New(t)
	alice, bob := uuid.New(), uuid.New()
	svc, repo, _ := newChatFixture(t, alice, bob)
	ctx := context.Background()

	msg, err := svc.Send(ctx, alice, bob, mustText(t, "hi"))
	req.NoError(err)

	deleted, err := svc.Delete(ctx, alice, msg.ID)
	req.NoError(err)
	req.True(deleted.Deleted)
	req.Empty(deleted.Payload.Text)
	req.Empty(deleted.Payload.URL)

	// The tombstone still shows up in the conversation.
	messages, err := repo.ListConversation(ctx, alice, bob)
	req.NoError(err)
	req.Len(messages, 1)
	req.True(messages[0].Deleted)
	req.Empty(messages[0].Payload.Text)

	// Re-deleting is a no-op success.
	_, err = svc.Delete(ctx, alice, msg.ID)
	req.NoError(err)
}

func TestChatService_Delete_OnlySender(t *testing.T) {
	req := require.New(t)
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	svc, repo, _ := newChatFixture(t, alice, bob, carol)
	ctx := context.Background()

	msg, err := svc.Send(ctx, alice, bob, mustText(t, "hi"))
	req.NoError(err)

	_, err = svc.Delete(ctx, carol, msg.ID)
	req.ErrorIs(err, ErrNotMessageOwner)

	// Store unchanged
	stored, err := repo.GetByID(ctx, msg.ID)
	req.NoError(err)
	req.False(stored.Deleted)
	req.Equal("hi", stored.Payload.Text)

	_, err = svc.Delete(ctx, alice, uuid.New())
	req.ErrorIs(err, ErrMessageNotFound)
}

func TestChatService_Sidebar_UnseenCounts(t *testing.T) {
	req := require.New(t)
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	svc, _, _ := newChatFixture(t, alice, bob, carol)
	ctx := context.Background()

	_, err := svc.Send(ctx, alice, bob, mustText(t, "one"))
	req.NoError(err)
	_, err = svc.Send(ctx, alice, bob, mustText(t, "two"))
	req.NoError(err)
	_, err = svc.Send(ctx, carol, bob, mustText(t, "three"))
	req.NoError(err)

	resp, err := svc.Sidebar(ctx, bob)
	req.NoError(err)
	req.Len(resp.Users, 2)
	req.Equal(2, resp.Unseen[alice.String()])
	req.Equal(1, resp.Unseen[carol.String()])

	// Opening the conversation with A clears A's badge only.
	_, err = svc.Conversation(ctx, bob, alice)
	req.NoError(err)

	resp, err = svc.Sidebar(ctx, bob)
	req.NoError(err)
	req.NotContains(resp.Unseen, alice.String())
	req.Equal(1, resp.Unseen[carol.String()])
}

func TestChatService_SendWithoutNotifierStillPersists(t *testing.T) {
	req := require.New(t)
	alice, bob := uuid.New(), uuid.New()
	repo := &memMessageRepo{}
	svc := NewChatService(repo, newMemUserRepo(alice, bob))

	msg, err := svc.Send(context.Background(), alice, bob, mustText(t, "hi"))
	req.NoError(err)

	stored, err := repo.GetByID(context.Background(), msg.ID)
	req.NoError(err)
	req.NotNil(stored)
}
