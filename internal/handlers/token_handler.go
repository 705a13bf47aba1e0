package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pushgate/pushgate/internal/middleware"
	"github.com/pushgate/pushgate/internal/models"
	"github.com/pushgate/pushgate/internal/policy"
	"github.com/pushgate/pushgate/internal/session"
	"github.com/pushgate/pushgate/internal/token"
)

// keepAliveTokenValidity bounds minted connection tokens when the connection
// TTL is zero. Connections in that mode never refresh, but the credential
// itself must still expire.
const keepAliveTokenValidity = 24 * time.Hour

// TokenHandler issues connection and subscription tokens to clients holding a
// live session. It runs behind the session middleware. Subscription tokens
// only mint after the same policy check the subscribe callback applies;
// a signed token the broker will honor must never outrun the policy.
type TokenHandler struct {
	codec           *token.Codec
	policy          policy.Policy
	connectionTTL   time.Duration
	subscriptionTTL time.Duration
	now             func() time.Time
}

// NewTokenHandler creates the token issue surface.
func NewTokenHandler(codec *token.Codec, pol policy.Policy, connectionTTL, subscriptionTTL time.Duration) *TokenHandler {
	return &TokenHandler{
		codec:           codec,
		policy:          pol,
		connectionTTL:   connectionTTL,
		subscriptionTTL: subscriptionTTL,
		now:             time.Now,
	}
}

// ConnectionToken mints a connection token for the session user.
func (h *TokenHandler) ConnectionToken(c *gin.Context) {
	sess := sessionFromContext(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	validity := h.connectionTTL
	if validity <= 0 {
		validity = keepAliveTokenValidity
	}
	now := h.now()
	expiresAt := now.Add(validity)

	tokenString, err := h.codec.MintConnectionToken(models.ConnectionClaims{
		Subject:   sess.UserID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		middleware.ContextLogger(c).Error("Failed to mint connection token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      tokenString,
		"expires_at": expiresAt.Unix(),
	})
}

// SubscriptionTokenRequest is the body for a subscription token request.
type SubscriptionTokenRequest struct {
	Channel string `json:"channel" binding:"required"`
}

// SubscriptionToken mints a channel-scoped token for the session user.
func (h *TokenHandler) SubscriptionToken(c *gin.Context) {
	sess := sessionFromContext(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req SubscriptionTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel is required"})
		return
	}

	grant, denial, err := h.policy.AuthorizeSubscription(c.Request.Context(), policy.SubscribeRequest{
		User:    sess.UserID,
		Channel: req.Channel,
	})
	if err != nil {
		middleware.ContextLogger(c).Error("Subscription authorization failed",
			zap.String("channel", req.Channel),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	if denial != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": denial.Reason})
		return
	}

	ttl := grant.TTL
	if ttl <= 0 {
		ttl = h.subscriptionTTL
	}
	now := h.now()
	expiresAt := now.Add(ttl)

	tokenString, err := h.codec.MintSubscriptionToken(models.SubscriptionClaims{
		Subject:    sess.UserID,
		Channel:    grant.Channel,
		Info:       grant.Info,
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
		AllowedOps: grant.AllowedOps,
	})
	if err != nil {
		middleware.ContextLogger(c).Error("Failed to mint subscription token",
			zap.String("channel", req.Channel),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      tokenString,
		"channel":    req.Channel,
		"expires_at": expiresAt.Unix(),
	})
}

// sessionFromContext reads the session placed by the session middleware.
func sessionFromContext(c *gin.Context) *session.Session {
	value, exists := c.Get(middleware.SessionKey)
	if !exists {
		return nil
	}
	sess, ok := value.(*session.Session)
	if !ok {
		return nil
	}
	return sess
}
