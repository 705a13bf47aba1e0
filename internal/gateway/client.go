package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	publishMethod       = "publish"
	broadcastMethod     = "broadcast"
	presenceStatsMethod = "presence_stats"
)

type apiCommand struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type publishParams struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

type broadcastParams struct {
	Channels []string    `json:"channels"`
	Data     interface{} `json:"data"`
}

type channelParams struct {
	Channel string `json:"channel"`
}

type apiResponse struct {
	Error  interface{}     `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Client talks to the broker's server HTTP API for outbound publishes. The
// inbound callback surface never depends on it; only named procedures that
// push data back through the broker do.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// New creates a broker API client.
func New(apiURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Publish sends data into a single channel.
func (c *Client) Publish(ctx context.Context, channel string, data interface{}) error {
	_, err := c.send(ctx, apiCommand{
		Method: publishMethod,
		Params: publishParams{Channel: channel, Data: data},
	})
	return err
}

// Broadcast sends the same data into several channels at once.
func (c *Client) Broadcast(ctx context.Context, channels []string, data interface{}) error {
	_, err := c.send(ctx, apiCommand{
		Method: broadcastMethod,
		Params: broadcastParams{Channels: channels, Data: data},
	})
	return err
}

// PresenceStats returns the broker's presence counters for a channel.
func (c *Client) PresenceStats(ctx context.Context, channel string) (json.RawMessage, error) {
	return c.send(ctx, apiCommand{
		Method: presenceStatsMethod,
		Params: channelParams{Channel: channel},
	})
}

func (c *Client) send(ctx context.Context, cmd apiCommand) (json.RawMessage, error) {
	jsonData, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s command: %w", cmd.Method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "apikey "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var response apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("gateway error: %v", response.Error)
	}
	return response.Result, nil
}
