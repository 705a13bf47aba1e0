package models

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Capability names a permission a token bearer may exercise on a channel.
type Capability string

const (
	CapabilitySubscribe Capability = "subscribe"
	CapabilityPublish   Capability = "publish"
	CapabilityPresence  Capability = "presence"
	CapabilityHistory   Capability = "history"
)

// Capabilities is an ordered capability list with set semantics.
type Capabilities []Capability

// Has reports whether the set contains the given capability.
func (cs Capabilities) Has(c Capability) bool {
	for _, have := range cs {
		if have == c {
			return true
		}
	}
	return false
}

// ConnectionClaims are the facts a connection token asserts about its bearer.
type ConnectionClaims struct {
	Subject   string
	Info      json.RawMessage
	IssuedAt  time.Time
	ExpiresAt time.Time
	UniqueID  string
	Channels  []string
	Caps      Capabilities
	Meta      json.RawMessage
}

// SubscriptionClaims are the facts a subscription token asserts. A
// subscription token is scoped to exactly one channel.
type SubscriptionClaims struct {
	Subject    string
	Channel    string
	Info       json.RawMessage
	IssuedAt   time.Time
	ExpiresAt  time.Time
	UniqueID   string
	AllowedOps Capabilities
}

// ConnectionTokenClaims is the wire shape of a connection token payload.
type ConnectionTokenClaims struct {
	jwt.RegisteredClaims

	Info     json.RawMessage `json:"info,omitempty"`
	Channels []string        `json:"channels,omitempty"`
	Caps     Capabilities    `json:"caps,omitempty"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}

// SubscriptionTokenClaims is the wire shape of a subscription token payload.
type SubscriptionTokenClaims struct {
	jwt.RegisteredClaims

	Channel    string          `json:"channel"`
	Client     string          `json:"client,omitempty"`
	Info       json.RawMessage `json:"info,omitempty"`
	AllowedOps Capabilities    `json:"ops,omitempty"`
}
