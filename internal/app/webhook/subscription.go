package webhook

import (
	"context"
	"fmt"
	"net/url"
)

// SubscriptionResolver maps a merchant to the endpoint its events go to.
type SubscriptionResolver interface {
	Resolve(ctx context.Context, merchantID int64) (string, error)
}

// StaticSubscriptionResolver sends every merchant's events to one configured
// endpoint.
type StaticSubscriptionResolver struct {
	subscriptionURL string
}

func NewStaticSubscriptionResolver(subscriptionURL string) (*StaticSubscriptionResolver, error) {
	u, err := url.Parse(subscriptionURL)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription URL %q: %w", subscriptionURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("subscription URL %q must use http or https", subscriptionURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("subscription URL %q has no host", subscriptionURL)
	}
	return &StaticSubscriptionResolver{subscriptionURL: subscriptionURL}, nil
}

func (r *StaticSubscriptionResolver) Resolve(_ context.Context, _ int64) (string, error) {
	return r.subscriptionURL, nil
}
