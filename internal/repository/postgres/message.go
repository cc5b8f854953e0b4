package postgres

import (
	"context"
	"fmt"

	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, workspaceID, senderID uuid.UUID, senderName, avatarURL, body string) (*models.Message, error) {
	// created_at is server-assigned here; clients never supply it.
	query := `
		INSERT INTO messages (workspace_id, sender_id, sender_name, avatar_url, body, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, workspace_id, sender_id, sender_name, avatar_url, body, created_at`

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, workspaceID, senderID, senderName, avatarURL, body).Scan(
		&msg.ID,
		&msg.WorkspaceID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.AvatarURL,
		&msg.Body,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

// ListRecent selects the newest `limit` messages (ORDER BY id DESC;
// bigserial order equals arrival order and breaks created_at ties) and
// reverses in memory, so the caller gets the chat window oldest-first.
func (s *MessageStore) ListRecent(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Message, error) {
	query := `
		SELECT id, workspace_id, sender_id, sender_name, avatar_url, body, created_at
		FROM messages
		WHERE workspace_id = $1
		ORDER BY id DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.WorkspaceID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.AvatarURL,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return ascending(messages), nil
}

func (s *MessageStore) Clear(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	query := `DELETE FROM messages WHERE workspace_id = $1`

	tag, err := s.pool.Exec(ctx, query, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("clear messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ascending reverses a newest-first page in place.
func ascending(messages []models.Message) []models.Message {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages
}
