package models

import "encoding/json"

// Proxy event names as the broker sends them.
const (
	EventConnect    = "connect"
	EventRefresh    = "refresh"
	EventSubRefresh = "sub_refresh"
	EventSubscribe  = "subscribe"
	EventPublish    = "publish"
	EventRPC        = "rpc"
)

// Transport kinds reported by the broker. Unidirectional transports cannot
// send a subscribe command, so they may receive server-side default channels.
const (
	TransportWebsocket     = "websocket"
	TransportSSE           = "sse"
	TransportUniWebsocket  = "uni_ws"
	TransportUniSSE        = "uni_sse"
	TransportUniHTTPStream = "uni_http_stream"
	TransportUniGRPC       = "uni_grpc"
)

// IsUnidirectional reports whether the transport cannot carry client commands.
func IsUnidirectional(transport string) bool {
	switch transport {
	case TransportUniWebsocket, TransportUniSSE, TransportUniHTTPStream, TransportUniGRPC:
		return true
	}
	return false
}

// CallbackRequest is the body the broker posts to a proxy endpoint.
type CallbackRequest struct {
	Client    string          `json:"client"`
	Transport string          `json:"transport"`
	Protocol  string          `json:"protocol,omitempty"`
	Encoding  string          `json:"encoding,omitempty"`
	User      string          `json:"user"`
	Channel   string          `json:"channel,omitempty"`
	Method    string          `json:"method,omitempty"`
	Channels  []string        `json:"channels,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CallbackError is a structured refusal the broker relays to the client.
type CallbackError struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

// Disconnect instructs the broker to close the client connection.
type Disconnect struct {
	Code      uint32 `json:"code"`
	Reconnect bool   `json:"reconnect"`
	Reason    string `json:"reason"`
}

// CallbackResponse is the envelope every proxy endpoint returns. Exactly one
// of Result, Error or Disconnect is set.
type CallbackResponse struct {
	Result     interface{}    `json:"result,omitempty"`
	Error      *CallbackError `json:"error,omitempty"`
	Disconnect *Disconnect    `json:"disconnect,omitempty"`
}

// ConnectResult is the allow payload for a connect callback.
type ConnectResult struct {
	User     string          `json:"user"`
	ExpireAt int64           `json:"expire_at,omitempty"`
	Channels []string        `json:"channels,omitempty"`
	Meta     json.RawMessage `json:"meta,omitempty"`
	Caps     Capabilities    `json:"caps,omitempty"`
}

// RefreshResult extends an established connection. A zero ExpireAt keeps the
// connection alive without further refresh callbacks.
type RefreshResult struct {
	ExpireAt int64        `json:"expire_at,omitempty"`
	Caps     Capabilities `json:"caps,omitempty"`
}

// SubRefreshResult extends a single channel subscription.
type SubRefreshResult struct {
	ExpireAt int64 `json:"expire_at,omitempty"`
}

// SubscribeResult is the allow payload for a subscribe callback. Token is
// only set when the deployment runs in token-carrying mode.
type SubscribeResult struct {
	Token    string          `json:"token,omitempty"`
	Info     json.RawMessage `json:"info,omitempty"`
	ExpireAt int64           `json:"expire_at,omitempty"`
}

// RPCResult wraps the data returned by a named procedure.
type RPCResult struct {
	Data json.RawMessage `json:"data"`
}
