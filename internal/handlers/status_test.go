package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/internal/config"
)

func testAuthConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			Secret:                      "test-secret",
			ConnectionTokenTTLSeconds:   300,
			SubscriptionTokenTTLSeconds: 60,
		},
		Policy: config.PolicyConfig{
			Mode: "allow_all",
		},
		Session: config.SessionConfig{
			Backend:    "memory",
			TTL:        time.Hour,
			CookieName: "pushgate_session",
		},
		Users: []config.DemoUser{
			{ID: "u1", Username: "alice", Password: "wonderland", Role: "writer"},
		},
	}
}

func TestStatusEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewStatusHandler(testAuthConfig(), "1.2.3", nil)
	router := gin.New()
	router.GET("/status", h.Status)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "HS256", resp.Token.Algorithm)
	assert.Equal(t, 300, resp.Token.ConnectionTTLSeconds)
	assert.Equal(t, "allow_all", resp.Policy.Mode)

	body := w.Body.String()
	assert.NotContains(t, body, "test-secret")
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewStatusHandler(testAuthConfig(), "1.2.3", nil)
	router := gin.New()
	router.GET("/health", h.Health)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
