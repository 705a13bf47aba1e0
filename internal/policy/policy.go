package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pushgate/pushgate/internal/models"
)

// Policy mode names, selected by configuration at startup.
const (
	ModeAllowAll    = "allow_all"
	ModeRoleGated   = "role_gated"
	ModePrefixGated = "prefix_gated"
)

// Denial reason codes relayed to clients through the broker.
const (
	CodeUnknownChannel   uint32 = 102
	CodePermissionDenied uint32 = 103
)

// DisconnectUnauthorized is the disconnect code for clients that fail
// connection authorization.
const DisconnectUnauthorized uint32 = 1000

const maxChannelLength = 255

// ConnectRequest describes a client asking to establish a connection.
type ConnectRequest struct {
	User      string
	ClientID  string
	Transport string
	Channels  []string
	Data      json.RawMessage
}

// SubscribeRequest describes a client asking to join a channel.
type SubscribeRequest struct {
	User      string
	ClientID  string
	Transport string
	Channel   string
	Data      json.RawMessage
}

// PublishRequest describes a client asking to publish into a channel.
type PublishRequest struct {
	User     string
	ClientID string
	Channel  string
	Data     json.RawMessage
}

// ConnectionGrant is what a policy awards to an accepted connection.
type ConnectionGrant struct {
	Subject  string
	TTL      time.Duration
	Channels []string
	Caps     models.Capabilities
	Info     json.RawMessage
	Meta     json.RawMessage
}

// SubscriptionGrant is what a policy awards to an accepted subscription.
type SubscriptionGrant struct {
	Channel    string
	TTL        time.Duration
	AllowedOps models.Capabilities
	Info       json.RawMessage
}

// Denial is a business refusal, not an error: it travels back to the client
// as a structured reason and never as a server fault.
type Denial struct {
	Code   uint32
	Reason string
}

// Policy decides what an authenticated (or anonymous) user may do. A nil
// denial means the action is allowed; a non-nil error means evaluation
// itself failed and surfaces as an internal fault.
type Policy interface {
	AuthorizeConnection(ctx context.Context, req ConnectRequest) (*ConnectionGrant, *Denial, error)
	AuthorizeSubscription(ctx context.Context, req SubscribeRequest) (*SubscriptionGrant, *Denial, error)
	AuthorizePublish(ctx context.Context, req PublishRequest) (*Denial, error)
}

// RoleSource resolves a user's role. Lookups may hit external state and must
// honor context deadlines.
type RoleSource interface {
	UserRole(ctx context.Context, userID string) (string, error)
}

// Options carries the deployment knobs shared by all policy variants.
type Options struct {
	// ConnectionTTL bounds connection grants; zero means connections are
	// kept alive without refresh.
	ConnectionTTL time.Duration
	// SubscriptionTTL bounds subscription grants. Kept shorter than the
	// connection TTL since re-subscription is cheaper than reconnection.
	SubscriptionTTL time.Duration
	// UniChannels are granted implicitly to unidirectional transports,
	// which cannot send a subscribe command themselves.
	UniChannels []string
	// AllowedNamespaces restricts which channel namespaces the
	// prefix-gated policy accepts.
	AllowedNamespaces []string
	// AllowAnonymous lets clients without a subject connect.
	AllowAnonymous bool
	// RoleLookupTimeout bounds role resolution in the role-gated policy.
	RoleLookupTimeout time.Duration
}

// New builds the policy variant named by mode.
func New(mode string, opts Options, roles RoleSource) (Policy, error) {
	switch mode {
	case ModeAllowAll:
		return NewAllowAll(opts), nil
	case ModeRoleGated:
		if roles == nil {
			return nil, fmt.Errorf("role_gated policy requires a role source")
		}
		return NewRoleGated(opts, roles), nil
	case ModePrefixGated:
		return NewPrefixGated(opts), nil
	default:
		return nil, fmt.Errorf("unknown policy mode: %s", mode)
	}
}

// validateChannel applies the checks every variant shares.
func validateChannel(channel string) *Denial {
	if channel == "" {
		return &Denial{Code: CodeUnknownChannel, Reason: "channel required"}
	}
	if len(channel) > maxChannelLength {
		return &Denial{Code: CodeUnknownChannel, Reason: "channel name too long"}
	}
	return nil
}

// defaultChannels returns the implicit channel grant for a transport.
func defaultChannels(opts Options, transport string, requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	if models.IsUnidirectional(transport) {
		return opts.UniChannels
	}
	return nil
}
