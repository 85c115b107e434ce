package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios y auth.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	jwtServ  *service.JWTService
}

func NewUserHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
		jwtServ:  jwtServ,
	}
}

type authResponse struct {
	User domain.User `json:"user"`
	service.TokenPair
}

// Register maneja POST /auth/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}

	user, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrWeakPassword):
			respondError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			respondError(c, http.StatusConflict, err.Error())
		default:
			h.logger.Error("register failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "could not register user")
		}
		return
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	respond(c, http.StatusCreated, "User registered successfully", authResponse{User: user, TokenPair: tokens})
}

// Login maneja POST /auth/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, service.ErrRateLimited):
			respondError(c, http.StatusTooManyRequests, "too many login attempts")
		default:
			h.logger.Error("login failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "could not login")
		}
		return
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	respond(c, http.StatusOK, "User logged in successfully", authResponse{User: user, TokenPair: tokens})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken maneja POST /auth/refresh-token.
func (h *UserHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	if h.jwtServ == nil {
		respondError(c, http.StatusInternalServerError, "jwt not configured")
		return
	}
	tokens, err := h.jwtServ.RefreshPair(req.RefreshToken)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid token")
		return
	}
	respond(c, http.StatusOK, "Access token refreshed successfully", tokens)
}

// Logout maneja POST /auth/logout.
func (h *UserHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	if h.jwtServ == nil {
		respondError(c, http.StatusInternalServerError, "jwt not configured")
		return
	}
	if err := h.jwtServ.RevokeRefresh(req.RefreshToken); err != nil {
		h.logger.Debug("logout with unknown refresh token", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// Me maneja GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	user, err := h.userServ.GetByID(c.Request.Context(), actor.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("get current user failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not load user")
		return
	}
	respond(c, http.StatusOK, "User retrieved successfully", user)
}

func (h *UserHandler) issueTokens(user domain.User) (service.TokenPair, error) {
	if h.jwtServ == nil {
		return service.TokenPair{}, errors.New("jwt not configured")
	}
	return h.jwtServ.GeneratePair(user)
}
