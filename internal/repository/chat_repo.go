package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poetry-tutor/internal/domain"
)

type ChatRepository interface {
	Create(ctx context.Context, chat domain.Chat) error
	GetByID(ctx context.Context, id string) (domain.Chat, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Chat, error)
	UpdateTitle(ctx context.Context, id, title string) (domain.Chat, error)
	SoftDelete(ctx context.Context, id string) error
}

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

const chatColumns = `id, user_id, title, last_message_snippet, last_message_at, is_deleted, created_at, updated_at`

func (r *PgChatRepository) Create(ctx context.Context, chat domain.Chat) error {
	const query = `
		INSERT INTO chats (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, chat.ID, chat.UserID, chat.Title, chat.CreatedAt, chat.UpdatedAt)
	return err
}

func (r *PgChatRepository) GetByID(ctx context.Context, id string) (domain.Chat, error) {
	const query = `SELECT ` + chatColumns + ` FROM chats WHERE id = $1 AND is_deleted = false`
	return scanChat(r.pool.QueryRow(ctx, query, id))
}

func (r *PgChatRepository) ListByUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	const query = `
		SELECT ` + chatColumns + `
		FROM chats
		WHERE user_id = $1 AND is_deleted = false
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChats(rows)
}

func (r *PgChatRepository) UpdateTitle(ctx context.Context, id, title string) (domain.Chat, error) {
	const query = `
		UPDATE chats SET title = $2, updated_at = now()
		WHERE id = $1 AND is_deleted = false
		RETURNING ` + chatColumns
	return scanChat(r.pool.QueryRow(ctx, query, id, title))
}

func (r *PgChatRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE chats SET is_deleted = true, updated_at = now() WHERE id = $1 AND is_deleted = false`
	return notFoundIfNone(r.pool.Exec(ctx, query, id))
}

func scanChat(row rowScanner) (domain.Chat, error) {
	var c domain.Chat
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Title,
		&c.LastMessageSnippet,
		&c.LastMessageAt,
		&c.IsDeleted,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Chat{}, err
	}
	return c, err
}

func scanChats(rows pgxRows) ([]domain.Chat, error) {
	var chats []domain.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chats, nil
}
