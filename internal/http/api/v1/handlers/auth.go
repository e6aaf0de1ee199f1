package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/security"
	"github.com/metergate/metergate/internal/settings"
)

// AuthHandler exchanges access tokens for short-lived panel session JWTs.
type AuthHandler struct {
	cfg *config.Manager
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(cfg *config.Manager) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

// sessionRequest carries the access token to exchange.
type sessionRequest struct {
	Token string `json:"token"`
}

// CreateSession validates an access token and returns a session JWT with the
// matching role.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	current := h.cfg.Current()
	var role string
	switch {
	case security.MatchAnyToken(current.Auth.AccessTokens, req.Token):
		role = security.RoleAdmin
	case security.MatchAnyToken(current.Auth.ReadOnlyTokens, req.Token):
		role = security.RoleReadOnly
	default:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if current.Auth.JWTSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sessions are not configured"})
		return
	}

	ttl := current.SessionTTLDuration()
	token, errSign := security.GenerateSessionToken(current.Auth.JWTSecret, role, ttl)
	if errSign != nil {
		log.WithError(errSign).Error("session token signing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create session failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"role":       role,
		"expires_in": int64(ttl.Seconds()),
		"site_name":  settings.StringValue(settings.SiteNameKey, settings.DefaultSiteName),
	})
}
