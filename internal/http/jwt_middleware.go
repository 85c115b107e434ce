package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"poetry-tutor/internal/service"
)

const authClaimsKey = "auth_claims"

// JWTAuthMiddleware valida JWT access tokens y guarda claims en el contexto.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			respondError(c, http.StatusInternalServerError, "jwt not configured")
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(c, http.StatusUnauthorized, "You are not authorized")
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := jwtSvc.ParseAccessToken(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

// actorFrom arma el Actor del request autenticado.
func actorFrom(c *gin.Context) (service.Actor, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok || claims.UserID == "" {
		respondError(c, http.StatusUnauthorized, "You are not authorized")
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role}, true
}

// RequireRole deja pasar solo a usuarios con el rol dado. Va después de JWTAuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			return
		}
		if actor.Role != role {
			respondError(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}
