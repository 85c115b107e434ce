package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/service"
)

// Handlers reúne lo que NewRouter monta bajo /api/v1.
type Handlers struct {
	Users    *UserHandler
	Chats    *ChatHandler
	Messages *MessageHandler
	Poems    *PoemHandler
	AI       *AIHandler

	// Health se consulta en /healthz; nil responde siempre ok.
	Health func(ctx context.Context) error
}

// NewRouter configura el router de Gin con middlewares y rutas. staticDir se
// sirve en /dist para los audios generados; vacío lo desactiva.
func NewRouter(logger *zap.Logger, jwtSvc *service.JWTService, h Handlers, staticDir string) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		if h.Health != nil {
			if err := h.Health(c.Request.Context()); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if staticDir != "" {
		r.Static("/dist", staticDir)
	}

	api := r.Group("/api/v1")
	auth := JWTAuthMiddleware(jwtSvc)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Users.Register)
	authGroup.POST("/login", h.Users.Login)
	authGroup.POST("/refresh-token", h.Users.RefreshToken)
	authGroup.POST("/logout", h.Users.Logout)

	api.GET("/users/me", auth, h.Users.Me)

	chats := api.Group("/chats", auth)
	chats.POST("", h.Chats.Create)
	chats.GET("/user/:userId", h.Chats.ListByUser)
	chats.GET("/:id", h.Chats.Get)
	chats.PATCH("/:id", h.Chats.Rename)
	chats.DELETE("/:id", h.Chats.Delete)

	messages := api.Group("/messages", auth)
	messages.POST("", h.Messages.Create)
	messages.GET("/chat/:chatId", h.Messages.ListByChat)
	messages.GET("/:id", h.Messages.Get)
	messages.PATCH("/:id", h.Messages.Update)
	messages.DELETE("/:id", h.Messages.Delete)

	poems := api.Group("/poems")
	poems.GET("", h.Poems.List)
	poems.GET("/:id", h.Poems.Get)
	poems.GET("/:id/audio", h.Poems.Audio)
	admin := poems.Group("", auth, RequireRole(domain.RoleAdmin))
	admin.POST("", h.Poems.Create)
	admin.PUT("/:id", h.Poems.Update)
	admin.DELETE("/:id", h.Poems.Delete)
	admin.POST("/:id/audio", h.Poems.GenerateAudio)

	ai := api.Group("/ai", auth)
	ai.POST("/chat/process-message", h.AI.ProcessMessage)
	ai.POST("/chat/stream-message", h.AI.StreamMessage)
	ai.GET("/chat/tts-voices", h.AI.Voices)
	ai.GET("/chat/stream-audio/:messageId", h.AI.StreamAudio)
	ai.POST("/generate", h.AI.Generate)
	ai.POST("/poem-narration/generate", h.AI.Narrate)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
