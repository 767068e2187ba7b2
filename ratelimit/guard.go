package ratelimit

import (
	"context"
	"fmt"
	"net/url"

	"github.com/goliatone/go-gateways/core"
)

// Guard wraps a gateway transport. Calls to a host that is cooling down fail
// fast with a rate limited error instead of reaching the network; every
// response updates the host's state.
type Guard struct {
	providerID string
	inner      core.TransportAdapter
	policy     *AdaptivePolicy
}

func NewGuard(providerID string, inner core.TransportAdapter, policy *AdaptivePolicy) *Guard {
	if policy == nil {
		policy = NewAdaptivePolicy(NewMemoryStateStore())
	}
	return &Guard{providerID: providerID, inner: inner, policy: policy}
}

func (g *Guard) Kind() string {
	if g == nil || g.inner == nil {
		return ""
	}
	return g.inner.Kind()
}

func (g *Guard) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if g == nil || g.inner == nil {
		return core.TransportResponse{}, fmt.Errorf("ratelimit: guarded transport is not configured")
	}
	key := Key{ProviderID: g.providerID, Host: hostOf(req.URL)}
	if err := g.policy.BeforeCall(ctx, key); err != nil {
		if throttled, ok := err.(ThrottledError); ok {
			return core.TransportResponse{}, throttled.ToGatewayError()
		}
		return core.TransportResponse{}, err
	}
	res, err := g.inner.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if err := g.policy.AfterCall(ctx, key, res); err != nil {
		return res, err
	}
	return res, nil
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Host
}

var _ core.TransportAdapter = (*Guard)(nil)
