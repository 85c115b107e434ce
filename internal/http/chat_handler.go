package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"poetry-tutor/internal/service"
)

// ChatHandler expone el CRUD de chats del usuario autenticado.
type ChatHandler struct {
	logger *zap.Logger
	chats  *service.ChatService
}

func NewChatHandler(logger *zap.Logger, chats *service.ChatService) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{logger: logger, chats: chats}
}

type chatTitleRequest struct {
	Title string `json:"title"`
}

// Create maneja POST /chats.
func (h *ChatHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req chatTitleRequest
	// El body es opcional: sin título se usa el default.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	chat, err := h.chats.Create(c.Request.Context(), actor, req.Title)
	if err != nil {
		fail(c, h.logger, "create chat", err)
		return
	}
	respond(c, http.StatusCreated, "Chat created successfully", chat)
}

// ListByUser maneja GET /chats/user/:userId.
func (h *ChatHandler) ListByUser(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	chats, err := h.chats.ListByUser(c.Request.Context(), actor, c.Param("userId"))
	if err != nil {
		fail(c, h.logger, "list chats", err)
		return
	}
	respond(c, http.StatusOK, "Chats retrieved successfully", chats)
}

// Get maneja GET /chats/:id.
func (h *ChatHandler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	chat, err := h.chats.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		fail(c, h.logger, "get chat", err)
		return
	}
	respond(c, http.StatusOK, "Chat retrieved successfully", chat)
}

// Rename maneja PATCH /chats/:id.
func (h *ChatHandler) Rename(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req chatTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	chat, err := h.chats.Rename(c.Request.Context(), actor, c.Param("id"), req.Title)
	if err != nil {
		fail(c, h.logger, "rename chat", err)
		return
	}
	respond(c, http.StatusOK, "Chat updated successfully", chat)
}

// Delete maneja DELETE /chats/:id (borrado lógico).
func (h *ChatHandler) Delete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if err := h.chats.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		fail(c, h.logger, "delete chat", err)
		return
	}
	respond(c, http.StatusOK, "Chat deleted successfully", nil)
}
