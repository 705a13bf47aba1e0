package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pushgate/pushgate/internal/session"
)

const (
	// UserIDKey holds the authenticated user ID in the gin context.
	UserIDKey = "user_id"
	// SessionKey holds the loaded *session.Session in the gin context.
	SessionKey = "session"
)

// SessionAuth loads the session referenced by the request cookie and rejects
// requests without a live session. Handlers behind it can rely on UserIDKey
// being set.
func SessionAuth(manager *session.Manager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := ContextLogger(c)

		sessionID, err := c.Cookie(cookieName)
		if err != nil || sessionID == "" {
			logger.Info("Session cookie is missing")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		sess, err := manager.Get(c.Request.Context(), sessionID)
		if err == session.ErrNotFound {
			logger.Info("Session not found or expired", zap.String("session_id", sessionID))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
			c.Abort()
			return
		}
		if err != nil {
			logger.Error("Session lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Session lookup failed"})
			c.Abort()
			return
		}

		c.Set(UserIDKey, sess.UserID)
		c.Set(SessionKey, sess)
		c.Next()
	}
}

// ContextLogger returns the request-scoped logger, or a no-op logger when
// the request ID middleware did not run.
func ContextLogger(c *gin.Context) *zap.Logger {
	if logger, exists := c.Get(LoggerKey); exists {
		if zapLogger, ok := logger.(*zap.Logger); ok {
			return zapLogger
		}
	}
	return zap.NewNop()
}
