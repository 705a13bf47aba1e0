package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Publish(t *testing.T) {
	t.Run("sends publish command with api key", func(t *testing.T) {
		var received apiCommand
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "apikey test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"result":{}}`))
		}))
		defer srv.Close()

		client := New(srv.URL, "test-key", time.Second)
		err := client.Publish(context.Background(), "chat", map[string]string{"text": "hello"})
		require.NoError(t, err)
		assert.Equal(t, "publish", received.Method)
	})

	t.Run("broker error field surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"error":{"code":100,"message":"internal server error"}}`))
		}))
		defer srv.Close()

		client := New(srv.URL, "test-key", time.Second)
		err := client.Publish(context.Background(), "chat", nil)
		assert.Error(t, err)
	})

	t.Run("non-200 status surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		client := New(srv.URL, "wrong-key", time.Second)
		err := client.Publish(context.Background(), "chat", nil)
		assert.Error(t, err)
	})
}

func TestClient_Broadcast(t *testing.T) {
	var received apiCommand
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", time.Second)
	err := client.Broadcast(context.Background(), []string{"a", "b"}, "x")
	require.NoError(t, err)
	assert.Equal(t, "broadcast", received.Method)
}

func TestClient_PresenceStats(t *testing.T) {
	var received apiCommand
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"num_clients":5,"num_users":4}}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", time.Second)
	stats, err := client.PresenceStats(context.Background(), "chat:index")
	require.NoError(t, err)
	assert.Equal(t, "presence_stats", received.Method)
	assert.JSONEq(t, `{"num_clients":5,"num_users":4}`, string(stats))
}
