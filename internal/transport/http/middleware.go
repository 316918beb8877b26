package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stafflink/stafflink-chat/internal/auth"
	"github.com/stafflink/stafflink-chat/internal/store"
)

const (
	// ContextKeyUserID is the context key for storing user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyUserName is the context key for storing the display name.
	ContextKeyUserName = "user_name"
	// ContextKeyUserRole is the context key for storing the org role.
	ContextKeyUserRole = "user_role"
)

// AuthMiddleware creates a middleware that validates JWT tokens.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Msg("missing authorization header")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("invalid authorization header format")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserName, claims.Name)
		c.Set(ContextKeyUserRole, claims.Role)

		c.Next()
	}
}

// actingUser rebuilds the acting user from the request context. The
// second return value is false when the context holds no valid identity.
func actingUser(c *gin.Context) (*store.User, bool) {
	id, ok := c.Get(ContextKeyUserID)
	if !ok {
		return nil, false
	}
	uid, ok := id.(int64)
	if !ok {
		return nil, false
	}
	name, _ := c.Get(ContextKeyUserName)
	role, _ := c.Get(ContextKeyUserRole)
	userName, _ := name.(string)
	userRole, ok := role.(store.Role)
	if !ok {
		return nil, false
	}
	return &store.User{ID: uid, Name: userName, Role: userRole}, true
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// WriteGuard rejects mutating requests before they reach the chat core
// when demo mode is on. Reads stay available.
func WriteGuard(demoMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if demoMode && c.Request.Method != http.MethodGet {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "writes are disabled in demo mode"})
			c.Abort()
			return
		}
		c.Next()
	}
}
