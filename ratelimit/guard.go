package ratelimit

import (
	"context"

	"github.com/goliatone/go-donations/core"
)

// Guard wraps a transport mechanism so postbacks skip endpoints that are
// inside a backoff window.
type Guard struct {
	next   core.TransportMechanism
	policy *AdaptivePolicy
}

func NewGuard(next core.TransportMechanism, policy *AdaptivePolicy) *Guard {
	if policy == nil {
		policy = NewAdaptivePolicy(NewMemoryStateStore())
	}
	return &Guard{next: next, policy: policy}
}

func (g *Guard) Name() string {
	if g == nil || g.next == nil {
		return ""
	}
	return g.next.Name()
}

func (g *Guard) Available(ctx context.Context) bool {
	return g != nil && g.next != nil && g.next.Available(ctx)
}

func (g *Guard) Post(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if g == nil || g.next == nil {
		return core.TransportResponse{}, core.ErrNoTransport
	}
	key := g.key(req.Endpoint)
	wait, err := g.policy.BeforeCall(ctx, key)
	if err != nil {
		return core.TransportResponse{}, err
	}
	if wait > 0 {
		return core.TransportResponse{}, ThrottledError{
			Mechanism:  g.next.Name(),
			Endpoint:   req.Endpoint,
			RetryAfter: wait,
		}.ToServiceError()
	}

	res, err := g.next.Post(ctx, req)
	if err != nil {
		return res, err
	}
	if err := g.policy.AfterCall(ctx, key, res); err != nil {
		return res, err
	}
	return res, nil
}

func (g *Guard) key(endpoint string) string {
	return g.next.Name() + "|" + endpoint
}

var _ core.TransportMechanism = (*Guard)(nil)
