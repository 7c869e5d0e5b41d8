package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/natuspati/jeopardy-api/internal/auth"
	"github.com/natuspati/jeopardy-api/internal/store"
)

const (
	// ContextKeyUser is the context key for storing the authenticated user.
	ContextKeyUser = "user"
	// ContextKeyRequestID is the context key for the per-request id.
	ContextKeyRequestID = "request_id"

	requestIDHeader = "X-Request-ID"
)

// RequestIDMiddleware assigns each request an id, honoring one supplied by
// the client.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// AuthMiddleware creates a middleware that authenticates requests with JWT
// bearer tokens and loads the corresponding user.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			logger.Debug().Msg("missing bearer token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
			c.Abort()
			return
		}

		user, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// currentUser returns the authenticated user stored by AuthMiddleware.
func currentUser(c *gin.Context) (*store.User, bool) {
	value, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*store.User)
	return user, ok
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", c.GetString(ContextKeyRequestID)).
			Msg("http request")
	}
}
