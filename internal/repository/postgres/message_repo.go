package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayushg31/whisp/internal/domain"
)

const messageColumns = "id, sender_id, receiver_id, kind, text_content, blob_url, blob_name, seen, deleted, created_at"

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, kind, text_content, blob_url, blob_name, seen, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID,
		msg.Payload.Kind, msg.Payload.Text, msg.Payload.URL, msg.Payload.Name,
		msg.Seen, msg.Deleted, msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE id = $1"

	msg, err := scanMessage(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *MessageRepo) ListConversation(ctx context.Context, userA, userB uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
			OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) MarkSeen(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET seen = TRUE WHERE id = $1 AND NOT seen`, id)
	return err
}

func (r *MessageRepo) MarkSeenBulk(ctx context.Context, senderID, receiverID uuid.UUID) error {
	query := `UPDATE messages SET seen = TRUE WHERE sender_id = $1 AND receiver_id = $2 AND NOT seen`
	_, err := r.pool.Exec(ctx, query, senderID, receiverID)
	return err
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE messages
		SET deleted = TRUE, text_content = '', blob_url = '', blob_name = ''
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *MessageRepo) CountUnseen(ctx context.Context, receiverID, senderID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND sender_id = $2 AND NOT seen`

	var count int
	err := r.pool.QueryRow(ctx, query, receiverID, senderID).Scan(&count)
	return count, err
}

func (r *MessageRepo) UnseenBySender(ctx context.Context, receiverID uuid.UUID) (map[uuid.UUID]int, error) {
	query := `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND NOT seen
		GROUP BY sender_id`

	rows, err := r.pool.Query(ctx, query, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var senderID uuid.UUID
		var count int
		if err := rows.Scan(&senderID, &count); err != nil {
			return nil, err
		}
		counts[senderID] = count
	}
	return counts, rows.Err()
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID,
		&msg.Payload.Kind, &msg.Payload.Text, &msg.Payload.URL, &msg.Payload.Name,
		&msg.Seen, &msg.Deleted, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
