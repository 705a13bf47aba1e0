package policy

import (
	"context"
	"strings"

	"github.com/pushgate/pushgate/internal/models"
)

const (
	// privatePrefix marks channels that require a subscription token.
	privatePrefix = "$"
	// personalSeparator splits a channel from the user it belongs to, as in
	// "notifications#42".
	personalSeparator  = "#"
	namespaceSeparator = ":"
)

// PrefixGated enforces channel naming conventions: $-prefixed channels are
// private and namespace-checked, #-suffixed channels belong to a single
// user, everything else must live in an allowed namespace.
type PrefixGated struct {
	opts       Options
	namespaces map[string]struct{}
}

// NewPrefixGated creates the prefix-driven policy variant.
func NewPrefixGated(opts Options) *PrefixGated {
	namespaces := make(map[string]struct{}, len(opts.AllowedNamespaces))
	for _, ns := range opts.AllowedNamespaces {
		namespaces[ns] = struct{}{}
	}
	return &PrefixGated{opts: opts, namespaces: namespaces}
}

func (p *PrefixGated) AuthorizeConnection(_ context.Context, req ConnectRequest) (*ConnectionGrant, *Denial, error) {
	if req.User == "" && !p.opts.AllowAnonymous {
		return nil, &Denial{Code: DisconnectUnauthorized, Reason: "unauthorized"}, nil
	}
	// Explicitly requested channels pass the same checks a subscribe would;
	// only the operator-configured uni defaults are exempt.
	for _, channel := range req.Channels {
		if denial := validateChannel(channel); denial != nil {
			return nil, denial, nil
		}
		if denial := p.checkChannelAccess(req.User, channel); denial != nil {
			return nil, denial, nil
		}
	}
	return &ConnectionGrant{
		Subject:  req.User,
		TTL:      p.opts.ConnectionTTL,
		Channels: defaultChannels(p.opts, req.Transport, req.Channels),
		Caps:     models.Capabilities{models.CapabilitySubscribe},
	}, nil, nil
}

func (p *PrefixGated) AuthorizeSubscription(_ context.Context, req SubscribeRequest) (*SubscriptionGrant, *Denial, error) {
	if denial := validateChannel(req.Channel); denial != nil {
		return nil, denial, nil
	}
	if denial := p.checkChannelAccess(req.User, req.Channel); denial != nil {
		return nil, denial, nil
	}
	ops := models.Capabilities{models.CapabilitySubscribe}
	if isPersonal(req.Channel) {
		// Users may publish and inspect history on their own channel.
		ops = models.Capabilities{models.CapabilitySubscribe, models.CapabilityPublish, models.CapabilityHistory}
	}
	return &SubscriptionGrant{
		Channel:    req.Channel,
		TTL:        p.opts.SubscriptionTTL,
		AllowedOps: ops,
	}, nil, nil
}

func (p *PrefixGated) AuthorizePublish(_ context.Context, req PublishRequest) (*Denial, error) {
	if denial := validateChannel(req.Channel); denial != nil {
		return denial, nil
	}
	if denial := p.checkChannelAccess(req.User, req.Channel); denial != nil {
		return denial, nil
	}
	// Private channels are read-only through the publish proxy; writes go
	// through the server API.
	if strings.HasPrefix(req.Channel, privatePrefix) && !isPersonal(req.Channel) {
		return &Denial{Code: CodePermissionDenied, Reason: "publish not allowed"}, nil
	}
	return nil, nil
}

// checkChannelAccess applies the naming rules shared by subscribe and
// publish decisions.
func (p *PrefixGated) checkChannelAccess(user, channel string) *Denial {
	if user == "" {
		return &Denial{Code: CodePermissionDenied, Reason: "permission denied"}
	}
	if owner, ok := personalOwner(channel); ok {
		if owner != user {
			return &Denial{Code: CodePermissionDenied, Reason: "channel belongs to another user"}
		}
		return nil
	}
	ns := channelNamespace(channel)
	if _, ok := p.namespaces[ns]; !ok {
		return &Denial{Code: CodePermissionDenied, Reason: "namespace not allowed"}
	}
	return nil
}

func isPersonal(channel string) bool {
	_, ok := personalOwner(channel)
	return ok
}

// personalOwner extracts the owning user from a "#"-suffixed channel name.
func personalOwner(channel string) (string, bool) {
	idx := strings.Index(channel, personalSeparator)
	if idx < 0 {
		return "", false
	}
	return channel[idx+len(personalSeparator):], true
}

// channelNamespace returns the part before ":", with a leading "$" stripped.
func channelNamespace(channel string) string {
	channel = strings.TrimPrefix(channel, privatePrefix)
	if idx := strings.Index(channel, namespaceSeparator); idx >= 0 {
		return channel[:idx]
	}
	return channel
}
