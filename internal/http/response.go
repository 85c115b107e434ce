package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"poetry-tutor/internal/llm"
	"poetry-tutor/internal/service"
)

// envelope es el formato de respuesta de toda la API.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

// statusFor traduce errores de servicio a códigos HTTP.
func statusFor(err error) (int, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "Invalid request data"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrChatNotFound):
		return http.StatusNotFound, "Chat not found"
	case errors.Is(err, service.ErrMessageNotFound):
		return http.StatusNotFound, "Message not found"
	case errors.Is(err, service.ErrPoemNotFound):
		return http.StatusNotFound, "Poem not found"
	case errors.Is(err, llm.ErrAdapterNotConfigured):
		return http.StatusServiceUnavailable, "model provider not configured"
	}
	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		return http.StatusBadGateway, upErr.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// fail responde con el status que corresponde a err y loguea los 5xx.
func fail(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	respondError(c, status, msg)
}
