package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultChatChannel = "chat"
	maxMessageLength   = 1000
)

// Publisher pushes data into broker channels. Satisfied by gateway.Client.
type Publisher interface {
	Publish(ctx context.Context, channel string, data interface{}) error
	PresenceStats(ctx context.Context, channel string) (json.RawMessage, error)
}

type presenceStatsData struct {
	Channel string `json:"channel"`
}

type sendMessageData struct {
	Channel string `json:"channel,omitempty"`
	Message string `json:"message"`
}

type chatMessage struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// RegisterBuiltins installs the fixed procedure set.
func RegisterBuiltins(registry *Registry, publisher Publisher, logger *zap.Logger) {
	registry.Register("ping", func(_ context.Context, _ Caller, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"pong":true}`), nil
	})

	registry.Register("server_time", func(_ context.Context, _ Caller, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(map[string]int64{"unix_time": time.Now().Unix()})
	})

	registry.Register("presence_stats", func(ctx context.Context, _ Caller, data json.RawMessage) (json.RawMessage, error) {
		var req presenceStatsData
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, fmt.Errorf("invalid presence_stats data: %w", err)
			}
		}
		if req.Channel == "" {
			req.Channel = defaultChatChannel
		}
		stats, err := publisher.PresenceStats(ctx, req.Channel)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch presence stats: %w", err)
		}
		return stats, nil
	})

	registry.Register("send_message", func(ctx context.Context, caller Caller, data json.RawMessage) (json.RawMessage, error) {
		var msg sendMessageData
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid message data: %w", err)
		}
		text := strings.TrimSpace(msg.Message)
		if text == "" {
			return json.RawMessage(`{"sent":false,"reason":"message is empty"}`), nil
		}
		if len(text) > maxMessageLength {
			return json.RawMessage(`{"sent":false,"reason":"message too long"}`), nil
		}
		channel := msg.Channel
		if channel == "" {
			channel = defaultChatChannel
		}
		err := publisher.Publish(ctx, channel, chatMessage{
			User:      caller.UserID,
			Text:      html.EscapeString(text),
			Timestamp: time.Now().Unix(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to publish message: %w", err)
		}
		logger.Info("chat message published",
			zap.String("user", caller.UserID),
			zap.String("channel", channel))
		return json.RawMessage(`{"sent":true}`), nil
	})
}
