package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pushgate/pushgate/internal/models"
)

// Role names ordered from least to most privileged.
const (
	RoleReader    = "reader"
	RoleWriter    = "writer"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

const defaultRoleLookupTimeout = 2 * time.Second

// roleCaps maps a role to the capabilities it grants. Users without a
// recorded role fall back to the minimal subscribe-only grant.
var roleCaps = map[string]models.Capabilities{
	RoleReader:    {models.CapabilitySubscribe},
	RoleWriter:    {models.CapabilitySubscribe, models.CapabilityPublish},
	RoleModerator: {models.CapabilitySubscribe, models.CapabilityPublish, models.CapabilityPresence},
	RoleAdmin:     {models.CapabilitySubscribe, models.CapabilityPublish, models.CapabilityPresence, models.CapabilityHistory},
}

// RoleGated derives capability grants from a user's recorded role. The role
// lookup is the single suspension point and is timeout-bounded.
type RoleGated struct {
	opts  Options
	roles RoleSource
}

// NewRoleGated creates the role-driven policy variant.
func NewRoleGated(opts Options, roles RoleSource) *RoleGated {
	if opts.RoleLookupTimeout <= 0 {
		opts.RoleLookupTimeout = defaultRoleLookupTimeout
	}
	return &RoleGated{opts: opts, roles: roles}
}

func (p *RoleGated) AuthorizeConnection(ctx context.Context, req ConnectRequest) (*ConnectionGrant, *Denial, error) {
	if req.User == "" {
		return nil, &Denial{Code: DisconnectUnauthorized, Reason: "unauthorized"}, nil
	}
	for _, channel := range req.Channels {
		if denial := validateChannel(channel); denial != nil {
			return nil, denial, nil
		}
	}
	role, err := p.userRole(ctx, req.User)
	if err != nil {
		return nil, nil, err
	}
	return &ConnectionGrant{
		Subject:  req.User,
		TTL:      p.opts.ConnectionTTL,
		Channels: defaultChannels(p.opts, req.Transport, req.Channels),
		Caps:     capsForRole(role),
		Meta:     roleMeta(role),
	}, nil, nil
}

func (p *RoleGated) AuthorizeSubscription(ctx context.Context, req SubscribeRequest) (*SubscriptionGrant, *Denial, error) {
	if denial := validateChannel(req.Channel); denial != nil {
		return nil, denial, nil
	}
	if req.User == "" {
		return nil, &Denial{Code: CodePermissionDenied, Reason: "permission denied"}, nil
	}
	role, err := p.userRole(ctx, req.User)
	if err != nil {
		return nil, nil, err
	}
	return &SubscriptionGrant{
		Channel:    req.Channel,
		TTL:        p.opts.SubscriptionTTL,
		AllowedOps: capsForRole(role),
	}, nil, nil
}

func (p *RoleGated) AuthorizePublish(ctx context.Context, req PublishRequest) (*Denial, error) {
	if denial := validateChannel(req.Channel); denial != nil {
		return denial, nil
	}
	if req.User == "" {
		return &Denial{Code: CodePermissionDenied, Reason: "permission denied"}, nil
	}
	role, err := p.userRole(ctx, req.User)
	if err != nil {
		return nil, err
	}
	if !capsForRole(role).Has(models.CapabilityPublish) {
		return &Denial{Code: CodePermissionDenied, Reason: "publish not allowed"}, nil
	}
	return nil, nil
}

func (p *RoleGated) userRole(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.RoleLookupTimeout)
	defer cancel()
	role, err := p.roles.UserRole(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("role lookup for user %s: %w", userID, err)
	}
	return role, nil
}

func capsForRole(role string) models.Capabilities {
	if caps, ok := roleCaps[role]; ok {
		return caps
	}
	return models.Capabilities{models.CapabilitySubscribe}
}

func roleMeta(role string) json.RawMessage {
	if role == "" {
		return nil
	}
	meta, err := json.Marshal(map[string]string{"role": role})
	if err != nil {
		return nil
	}
	return meta
}
