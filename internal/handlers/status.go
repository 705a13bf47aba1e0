package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pushgate/pushgate/internal/config"
	"github.com/pushgate/pushgate/internal/middleware"
)

var startTime = time.Now()

// StatusResponse describes the service and its active configuration.
type StatusResponse struct {
	Status        string     `json:"status"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	Version       string     `json:"version"`
	Token         TokenInfo  `json:"token"`
	Policy        PolicyInfo `json:"policy"`
}

// TokenInfo reports the token configuration without revealing the secret.
type TokenInfo struct {
	Algorithm              string `json:"algorithm"`
	ConnectionTTLSeconds   int    `json:"connection_ttl_seconds"`
	SubscriptionTTLSeconds int    `json:"subscription_ttl_seconds"`
	SubscriptionTokenMode  bool   `json:"subscription_token_mode"`
}

// PolicyInfo reports the active authorization policy.
type PolicyInfo struct {
	Mode              string   `json:"mode"`
	AllowAnonymous    bool     `json:"allow_anonymous"`
	AllowedNamespaces []string `json:"allowed_namespaces,omitempty"`
	UniChannels       []string `json:"uni_channels,omitempty"`
}

// StatusHandler serves /status and /health.
type StatusHandler struct {
	cfg     *config.Config
	version string
	// redisClient is nil when the deployment runs on the memory backend.
	redisClient *redis.Client
}

// NewStatusHandler creates the status surface.
func NewStatusHandler(cfg *config.Config, version string, redisClient *redis.Client) *StatusHandler {
	return &StatusHandler{
		cfg:         cfg,
		version:     version,
		redisClient: redisClient,
	}
}

// Status reports uptime and active configuration.
func (h *StatusHandler) Status(c *gin.Context) {
	response := StatusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Version:       h.version,
		Token: TokenInfo{
			Algorithm:              "HS256",
			ConnectionTTLSeconds:   h.cfg.Auth.ConnectionTokenTTLSeconds,
			SubscriptionTTLSeconds: h.cfg.Auth.SubscriptionTokenTTLSeconds,
			SubscriptionTokenMode:  h.cfg.Auth.SubscriptionTokenMode,
		},
		Policy: PolicyInfo{
			Mode:              h.cfg.Policy.Mode,
			AllowAnonymous:    h.cfg.Auth.AllowAnonymous,
			AllowedNamespaces: h.cfg.Policy.AllowedNamespaces,
			UniChannels:       h.cfg.Policy.UniChannels,
		},
	}
	middleware.ContextLogger(c).Info("Status endpoint checked",
		zap.Int64("uptime_seconds", response.UptimeSeconds))
	c.JSON(http.StatusOK, response)
}

// Health answers liveness probes. With a redis backend it also pings the
// store, so a dead redis turns the probe unhealthy.
func (h *StatusHandler) Health(c *gin.Context) {
	if h.redisClient != nil {
		if err := h.redisClient.Ping(c.Request.Context()).Err(); err != nil {
			middleware.ContextLogger(c).Error("Redis health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"redis":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
