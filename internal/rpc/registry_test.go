package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePublisher struct {
	channel string
	data    interface{}
	err     error

	statsChannel string
	stats        json.RawMessage
}

func (p *capturePublisher) Publish(_ context.Context, channel string, data interface{}) error {
	p.channel = channel
	p.data = data
	return p.err
}

func (p *capturePublisher) PresenceStats(_ context.Context, channel string) (json.RawMessage, error) {
	p.statsChannel = channel
	return p.stats, p.err
}

func TestRegistry_Dispatch(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(zap.NewNop())

	t.Run("unknown method", func(t *testing.T) {
		_, err := registry.Dispatch(ctx, "echo", Caller{UserID: "42"}, nil)
		require.Error(t, err)
		var unknown *UnknownMethodError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "Unknown RPC method: echo", err.Error())
	})

	t.Run("registered handler runs", func(t *testing.T) {
		registry.Register("double", func(_ context.Context, _ Caller, data json.RawMessage) (json.RawMessage, error) {
			var n int
			require.NoError(t, json.Unmarshal(data, &n))
			return json.Marshal(n * 2)
		})
		result, err := registry.Dispatch(ctx, "double", Caller{}, json.RawMessage(`21`))
		require.NoError(t, err)
		assert.JSONEq(t, `42`, string(result))
	})
}

func TestBuiltins(t *testing.T) {
	ctx := context.Background()
	publisher := &capturePublisher{}
	registry := NewRegistry(zap.NewNop())
	RegisterBuiltins(registry, publisher, zap.NewNop())

	t.Run("ping", func(t *testing.T) {
		result, err := registry.Dispatch(ctx, "ping", Caller{}, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"pong":true}`, string(result))
	})

	t.Run("server_time", func(t *testing.T) {
		result, err := registry.Dispatch(ctx, "server_time", Caller{}, nil)
		require.NoError(t, err)
		var payload map[string]int64
		require.NoError(t, json.Unmarshal(result, &payload))
		assert.NotZero(t, payload["unix_time"])
	})

	t.Run("presence_stats passes through broker counters", func(t *testing.T) {
		publisher.stats = json.RawMessage(`{"num_clients":3,"num_users":2}`)
		result, err := registry.Dispatch(ctx, "presence_stats", Caller{UserID: "42"},
			json.RawMessage(`{"channel":"chat:index"}`))
		require.NoError(t, err)
		assert.Equal(t, "chat:index", publisher.statsChannel)
		assert.JSONEq(t, `{"num_clients":3,"num_users":2}`, string(result))
	})

	t.Run("presence_stats defaults the channel", func(t *testing.T) {
		publisher.stats = json.RawMessage(`{}`)
		_, err := registry.Dispatch(ctx, "presence_stats", Caller{UserID: "42"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "chat", publisher.statsChannel)
	})

	t.Run("send_message publishes escaped text", func(t *testing.T) {
		result, err := registry.Dispatch(ctx, "send_message", Caller{UserID: "42"},
			json.RawMessage(`{"message":"<b>hi</b>"}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"sent":true}`, string(result))
		assert.Equal(t, "chat", publisher.channel)
		msg, ok := publisher.data.(chatMessage)
		require.True(t, ok)
		assert.Equal(t, "42", msg.User)
		assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", msg.Text)
	})

	t.Run("send_message custom channel", func(t *testing.T) {
		_, err := registry.Dispatch(ctx, "send_message", Caller{UserID: "42"},
			json.RawMessage(`{"channel":"news","message":"hello"}`))
		require.NoError(t, err)
		assert.Equal(t, "news", publisher.channel)
	})

	t.Run("send_message empty text is refused not failed", func(t *testing.T) {
		result, err := registry.Dispatch(ctx, "send_message", Caller{UserID: "42"},
			json.RawMessage(`{"message":"   "}`))
		require.NoError(t, err)
		var payload struct {
			Sent bool `json:"sent"`
		}
		require.NoError(t, json.Unmarshal(result, &payload))
		assert.False(t, payload.Sent)
	})

	t.Run("publish failure is an error", func(t *testing.T) {
		publisher.err = errors.New("broker down")
		defer func() { publisher.err = nil }()
		_, err := registry.Dispatch(ctx, "send_message", Caller{UserID: "42"},
			json.RawMessage(`{"message":"hello"}`))
		assert.Error(t, err)
	})
}
