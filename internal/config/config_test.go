package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithPath(t *testing.T) {
	t.Run("defaults with secret", func(t *testing.T) {
		path := writeConfig(t, "auth:\n  secret: test-secret\n")
		cfg, err := LoadWithPath(path)
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 300, cfg.Auth.ConnectionTokenTTLSeconds)
		assert.Equal(t, 60, cfg.Auth.SubscriptionTokenTTLSeconds)
		assert.Equal(t, "allow_all", cfg.Policy.Mode)
		assert.Equal(t, "memory", cfg.Session.Backend)
		assert.Equal(t, "pushgate_session", cfg.Session.CookieName)
	})

	t.Run("missing secret fails", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 9000\n")
		_, err := LoadWithPath(path)
		assert.Error(t, err)
	})

	t.Run("secret from environment", func(t *testing.T) {
		t.Setenv("GATEWAY_SECRET", "env-secret")
		path := writeConfig(t, "server:\n  port: 9000\n")
		cfg, err := LoadWithPath(path)
		require.NoError(t, err)
		assert.Equal(t, "env-secret", cfg.Auth.Secret)
		assert.Equal(t, 9000, cfg.Server.Port)
	})

	t.Run("ttl from environment", func(t *testing.T) {
		t.Setenv("GATEWAY_SECRET", "env-secret")
		t.Setenv("CONNECTION_TOKEN_TTL_SECONDS", "30")
		t.Setenv("SUBSCRIPTION_TOKEN_TTL_SECONDS", "10")
		path := writeConfig(t, "")
		cfg, err := LoadWithPath(path)
		require.NoError(t, err)
		assert.Equal(t, 30, cfg.Auth.ConnectionTokenTTLSeconds)
		assert.Equal(t, 10, cfg.Auth.SubscriptionTokenTTLSeconds)
	})

	t.Run("full file", func(t *testing.T) {
		path := writeConfig(t, `
auth:
  secret: s3cret
  connection_token_ttl_seconds: 120
  subscription_token_mode: true
policy:
  mode: prefix_gated
  allowed_namespaces: [chat, news]
  uni_channels: ["$chat:index"]
session:
  backend: redis
gateway:
  api_url: http://broker:8000/api
  api_key: broker-key
  require_signature: true
  signature_secret: sig-secret
users:
  - id: "1"
    username: demo-user
    password: demo-pass
    role: writer
`)
		cfg, err := LoadWithPath(path)
		require.NoError(t, err)
		assert.Equal(t, "prefix_gated", cfg.Policy.Mode)
		assert.Equal(t, []string{"chat", "news"}, cfg.Policy.AllowedNamespaces)
		assert.True(t, cfg.Auth.SubscriptionTokenMode)
		assert.Equal(t, "redis", cfg.Session.Backend)

		user, ok := cfg.FindUser("demo-user", "demo-pass")
		require.True(t, ok)
		assert.Equal(t, "writer", user.Role)

		_, ok = cfg.FindUser("demo-user", "wrong")
		assert.False(t, ok)
	})

	t.Run("unknown session backend fails", func(t *testing.T) {
		path := writeConfig(t, "auth:\n  secret: s\nsession:\n  backend: dynamo\n")
		_, err := LoadWithPath(path)
		assert.Error(t, err)
	})
}
