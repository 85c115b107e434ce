package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poetry-tutor/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	GetByID(ctx context.Context, id string) (domain.Message, error)
	ListByChat(ctx context.Context, chatID string) ([]domain.Message, error)
	// ListRecentByChat devuelve los últimos limit mensajes no borrados, en orden cronológico.
	ListRecentByChat(ctx context.Context, chatID string, limit int) ([]domain.Message, error)
	FinalizeStreaming(ctx context.Context, id, content string) error
	UpdateContent(ctx context.Context, id, content string) (domain.Message, error)
	SoftDelete(ctx context.Context, id string) error
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

const messageColumns = `id, chat_id, user_id, sender_type, sender_id, content_type, content,
	is_ai_response, reply_to_message_id, is_streaming, is_deleted, created_at, updated_at`

// Create inserta el mensaje y actualiza el resumen del chat en la misma transacción.
func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const insert = `
		INSERT INTO messages (id, chat_id, user_id, sender_type, sender_id, content_type, content,
			is_ai_response, reply_to_message_id, is_streaming, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if _, err := tx.Exec(ctx, insert,
		message.ID,
		message.ChatID,
		message.UserID,
		message.Sender.Type,
		message.Sender.ID,
		message.Content.Type,
		message.Content.Text,
		message.IsAIResponse,
		message.ReplyToMessageID,
		message.IsStreaming,
		message.CreatedAt,
		message.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	const touchChat = `
		UPDATE chats SET last_message_snippet = $2, last_message_at = $3, updated_at = $3
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, touchChat, message.ChatID, message.Snippet(), message.CreatedAt); err != nil {
		return fmt.Errorf("update chat snippet: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgMessageRepository) GetByID(ctx context.Context, id string) (domain.Message, error) {
	const query = `SELECT ` + messageColumns + ` FROM messages WHERE id = $1 AND is_deleted = false`
	return scanMessage(r.pool.QueryRow(ctx, query, id))
}

func (r *PgMessageRepository) ListByChat(ctx context.Context, chatID string) ([]domain.Message, error) {
	const query = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE chat_id = $1 AND is_deleted = false
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *PgMessageRepository) ListRecentByChat(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE chat_id = $1 AND is_deleted = false
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverseMessages(messages)
	return messages, nil
}

func (r *PgMessageRepository) FinalizeStreaming(ctx context.Context, id, content string) error {
	const query = `UPDATE messages SET content = $2, is_streaming = false, updated_at = now() WHERE id = $1`
	return notFoundIfNone(r.pool.Exec(ctx, query, id, content))
}

func (r *PgMessageRepository) UpdateContent(ctx context.Context, id, content string) (domain.Message, error) {
	const query = `
		UPDATE messages SET content = $2, updated_at = now()
		WHERE id = $1 AND is_deleted = false
		RETURNING ` + messageColumns
	return scanMessage(r.pool.QueryRow(ctx, query, id, content))
}

func (r *PgMessageRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE messages SET is_deleted = true, updated_at = now() WHERE id = $1 AND is_deleted = false`
	return notFoundIfNone(r.pool.Exec(ctx, query, id))
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID,
		&m.ChatID,
		&m.UserID,
		&m.Sender.Type,
		&m.Sender.ID,
		&m.Content.Type,
		&m.Content.Text,
		&m.IsAIResponse,
		&m.ReplyToMessageID,
		&m.IsStreaming,
		&m.IsDeleted,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, err
	}
	return m, err
}

func scanMessages(rows pgxRows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func reverseMessages(ms []domain.Message) {
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
}
