package policy

import (
	"context"

	"github.com/pushgate/pushgate/internal/models"
)

// AllowAll admits every authenticated user to every channel with a minimal
// subscribe-only capability grant. The tutorial-grade policy.
type AllowAll struct {
	opts Options
}

// NewAllowAll creates the permissive policy variant.
func NewAllowAll(opts Options) *AllowAll {
	return &AllowAll{opts: opts}
}

func (p *AllowAll) AuthorizeConnection(_ context.Context, req ConnectRequest) (*ConnectionGrant, *Denial, error) {
	if req.User == "" && !p.opts.AllowAnonymous {
		return nil, &Denial{Code: DisconnectUnauthorized, Reason: "unauthorized"}, nil
	}
	for _, channel := range req.Channels {
		if denial := validateChannel(channel); denial != nil {
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

func (p *AllowAll) AuthorizeSubscription(_ context.Context, req SubscribeRequest) (*SubscriptionGrant, *Denial, error) {
	if denial := validateChannel(req.Channel); denial != nil {
		return nil, denial, nil
	}
	return &SubscriptionGrant{
		Channel:    req.Channel,
		TTL:        p.opts.SubscriptionTTL,
		AllowedOps: models.Capabilities{models.CapabilitySubscribe},
	}, nil, nil
}

func (p *AllowAll) AuthorizePublish(_ context.Context, req PublishRequest) (*Denial, error) {
	if denial := validateChannel(req.Channel); denial != nil {
		return denial, nil
	}
	return nil, nil
}
