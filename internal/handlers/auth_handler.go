package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pushgate/pushgate/internal/config"
	"github.com/pushgate/pushgate/internal/middleware"
	"github.com/pushgate/pushgate/internal/session"
)

// AuthHandler implements the login surface for the demo credential list.
// Production deployments are expected to front this with a real identity
// provider; the session layer underneath does not care where sessions
// come from.
type AuthHandler struct {
	cfg        *config.Config
	sessions   *session.Manager
	cookieName string
	sessionTTL time.Duration
}

// NewAuthHandler creates the login and logout handlers.
func NewAuthHandler(cfg *config.Config, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{
		cfg:        cfg,
		sessions:   sessions,
		cookieName: cfg.Session.CookieName,
		sessionTTL: cfg.Session.TTL,
	}
}

// LoginRequest carries the credentials posted to /login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials, starts a session and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	logger := middleware.ContextLogger(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, ok := h.cfg.FindUser(req.Username, req.Password)
	if !ok {
		logger.Info("Login rejected", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), user.ID, user.Username, user.Role)
	if err != nil {
		logger.Error("Failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.SetCookie(h.cookieName, sess.ID, int(h.sessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

// Logout ends the session named by the cookie. Logging out without a session
// succeeds; the end state is the same.
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(h.cookieName)
	if err == nil && sessionID != "" {
		if err := h.sessions.Delete(c.Request.Context(), sessionID); err != nil {
			middleware.ContextLogger(c).Error("Failed to delete session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end session"})
			return
		}
	}

	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}
