// Package http wires the gin API surface: middleware, routes and handlers.
package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/security"
	"github.com/metergate/metergate/internal/util"
)

// Context keys set by the middleware chain.
const (
	// ContextKeyRole carries the caller's resolved role.
	ContextKeyRole = "authRole"
	// ContextKeyRequestID carries the per-request id.
	ContextKeyRequestID = "requestID"
)

// requestIDHeader is the inbound/outbound request-id header.
const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware attaches a request id to every request, reusing the
// caller's when present.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggingMiddleware logs one line per request with timing and status.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithField("method", c.Request.Method).
			WithField("path", c.Request.URL.Path).
			WithField("status", c.Writer.Status()).
			WithField("duration", time.Since(start).String()).
			WithField("request_id", c.GetString(ContextKeyRequestID)).
			Info("http request")
	}
}

// AuthMiddleware authenticates bearer credentials: configured access tokens
// (full or read-only) or a panel session JWT issued in exchange for one.
func AuthMiddleware(cfg *config.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		current := cfg.Current()
		if security.MatchAnyToken(current.Auth.AccessTokens, token) {
			c.Set(ContextKeyRole, security.RoleAdmin)
			c.Next()
			return
		}
		if security.MatchAnyToken(current.Auth.ReadOnlyTokens, token) {
			c.Set(ContextKeyRole, security.RoleReadOnly)
			c.Next()
			return
		}
		if current.Auth.JWTSecret != "" {
			if claims, errParse := security.ParseSessionToken(current.Auth.JWTSecret, token); errParse == nil {
				c.Set(ContextKeyRole, claims.Role)
				c.Next()
				return
			}
		}
		log.WithField("token", util.MaskToken(token)).Warn("rejected bearer token")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

// RequireWriteMiddleware rejects mutating requests from read-only callers.
func RequireWriteMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		if c.GetString(ContextKeyRole) != security.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "read-only token cannot modify resources"})
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
