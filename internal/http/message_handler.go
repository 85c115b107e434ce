package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/service"
)

type MessageHandler struct {
	logger   *zap.Logger
	messages *service.MessageService
}

func NewMessageHandler(logger *zap.Logger, messages *service.MessageService) *MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageHandler{logger: logger, messages: messages}
}

// Create maneja POST /messages. Guarda un mensaje sin pasar por el modelo.
func (h *MessageHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req struct {
		ChatID  string                `json:"chatId"`
		Message domain.MessageContent `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	msg, err := h.messages.Create(c.Request.Context(), actor, service.CreateMessageInput{
		ChatID:      req.ChatID,
		Content:     req.Message.Text,
		ContentType: req.Message.Type,
	})
	if err != nil {
		fail(c, h.logger, "create message", err)
		return
	}
	respond(c, http.StatusCreated, "Message created successfully", msg)
}

// ListByChat maneja GET /messages/chat/:chatId.
func (h *MessageHandler) ListByChat(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	msgs, err := h.messages.ListByChat(c.Request.Context(), actor, c.Param("chatId"))
	if err != nil {
		fail(c, h.logger, "list messages", err)
		return
	}
	respond(c, http.StatusOK, "Messages retrieved successfully", msgs)
}

func (h *MessageHandler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	msg, err := h.messages.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		fail(c, h.logger, "get message", err)
		return
	}
	respond(c, http.StatusOK, "Message retrieved successfully", msg)
}

// Update maneja PATCH /messages/:id; solo cambia el texto.
func (h *MessageHandler) Update(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req struct {
		Message domain.MessageContent `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	msg, err := h.messages.UpdateContent(c.Request.Context(), actor, c.Param("id"), req.Message.Text)
	if err != nil {
		fail(c, h.logger, "update message", err)
		return
	}
	respond(c, http.StatusOK, "Message updated successfully", msg)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		fail(c, h.logger, "delete message", err)
		return
	}
	respond(c, http.StatusOK, "Message deleted successfully", nil)
}
