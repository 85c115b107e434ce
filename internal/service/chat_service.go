package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/repository"
)

const maxChatTitleRunes = 120

// Actor es el usuario autenticado que hace la operación.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) CanAccess(ownerID string) bool {
	return a.Role == domain.RoleAdmin || (a.UserID != "" && a.UserID == ownerID)
}

type ChatService struct {
	chats repository.ChatRepository
}

var ErrChatServiceNotConfigured = errors.New("chat service not configured")

func NewChatService(chats repository.ChatRepository) *ChatService {
	return &ChatService{chats: chats}
}

func (s *ChatService) Create(ctx context.Context, actor Actor, title string) (domain.Chat, error) {
	if s == nil || s.chats == nil {
		return domain.Chat{}, ErrChatServiceNotConfigured
	}
	if actor.UserID == "" {
		return domain.Chat{}, invalid("userId", "required")
	}
	title = normalizeTitle(title)
	now := time.Now().UTC()
	chat := domain.Chat{
		ID:        uuid.NewString(),
		UserID:    actor.UserID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

func (s *ChatService) ListByUser(ctx context.Context, actor Actor, userID string) ([]domain.Chat, error) {
	if s == nil || s.chats == nil {
		return nil, ErrChatServiceNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if !actor.CanAccess(userID) {
		return nil, ErrForbidden
	}
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	return chats, nil
}

// Get devuelve el chat si el actor es dueño.
func (s *ChatService) Get(ctx context.Context, actor Actor, id string) (domain.Chat, error) {
	if s == nil || s.chats == nil {
		return domain.Chat{}, ErrChatServiceNotConfigured
	}
	chat, err := s.chats.GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return domain.Chat{}, err
	}
	if !actor.CanAccess(chat.UserID) {
		return domain.Chat{}, ErrForbidden
	}
	return chat, nil
}

func (s *ChatService) Rename(ctx context.Context, actor Actor, id, title string) (domain.Chat, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return domain.Chat{}, err
	}
	if strings.TrimSpace(title) == "" {
		return domain.Chat{}, invalid("title", "required")
	}
	chat, err := s.chats.UpdateTitle(ctx, strings.TrimSpace(id), normalizeTitle(title))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Chat{}, ErrChatNotFound
	}
	return chat, err
}

func (s *ChatService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	err := s.chats.SoftDelete(ctx, strings.TrimSpace(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrChatNotFound
	}
	return err
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.DefaultChatTitle
	}
	if r := []rune(title); len(r) > maxChatTitleRunes {
		return string(r[:maxChatTitleRunes])
	}
	return title
}
