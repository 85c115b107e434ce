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

// MessageService encapsula la lógica para manejar mensajes de usuarios.
type MessageService struct {
	chats    *ChatService
	messages repository.MessageRepository
}

var ErrMessageServiceNotConfigured = errors.New("message service not configured")

func NewMessageService(chats *ChatService, messages repository.MessageRepository) *MessageService {
	return &MessageService{chats: chats, messages: messages}
}

type CreateMessageInput struct {
	ChatID      string
	Content     string
	ContentType string
}

// Create guarda un mensaje del usuario sin disparar al asistente.
func (s *MessageService) Create(ctx context.Context, actor Actor, input CreateMessageInput) (domain.Message, error) {
	if s == nil || s.messages == nil {
		return domain.Message{}, ErrMessageServiceNotConfigured
	}
	chatID := strings.TrimSpace(input.ChatID)
	if chatID == "" {
		return domain.Message{}, invalid("chatId", "required")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return domain.Message{}, invalid("message.content", "required")
	}
	if _, err := s.chats.Get(ctx, actor, chatID); err != nil {
		return domain.Message{}, err
	}
	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = domain.ContentText
	}
	msg := newUserMessage(chatID, actor.UserID, content)
	msg.Content.Type = contentType
	if err := s.messages.Create(ctx, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *MessageService) ListByChat(ctx context.Context, actor Actor, chatID string) ([]domain.Message, error) {
	if s == nil || s.messages == nil {
		return nil, ErrMessageServiceNotConfigured
	}
	chatID = strings.TrimSpace(chatID)
	if _, err := s.chats.Get(ctx, actor, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

func (s *MessageService) Get(ctx context.Context, actor Actor, id string) (domain.Message, error) {
	if s == nil || s.messages == nil {
		return domain.Message{}, ErrMessageServiceNotConfigured
	}
	msg, err := s.messages.GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	if !actor.CanAccess(msg.UserID) {
		return domain.Message{}, ErrForbidden
	}
	return msg, nil
}

func (s *MessageService) UpdateContent(ctx context.Context, actor Actor, id, content string) (domain.Message, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return domain.Message{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, invalid("message.content", "required")
	}
	msg, err := s.messages.UpdateContent(ctx, strings.TrimSpace(id), content)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrMessageNotFound
	}
	return msg, err
}

func (s *MessageService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	err := s.messages.SoftDelete(ctx, strings.TrimSpace(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMessageNotFound
	}
	return err
}

func newUserMessage(chatID, userID, content string) domain.Message {
	now := time.Now().UTC()
	sender := userID
	return domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserID:    userID,
		Sender:    domain.Sender{Type: domain.SenderUser, ID: &sender},
		Content:   domain.MessageContent{Type: domain.ContentText, Text: content},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newAIMessage(chatID, userID, replyTo, content string, streaming bool) domain.Message {
	now := time.Now().UTC()
	msg := domain.Message{
		ID:           uuid.NewString(),
		ChatID:       chatID,
		UserID:       userID,
		Sender:       domain.Sender{Type: domain.SenderAI},
		Content:      domain.MessageContent{Type: domain.ContentText, Text: content},
		IsAIResponse: true,
		IsStreaming:  streaming,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if replyTo != "" {
		msg.ReplyToMessageID = &replyTo
	}
	return msg
}
