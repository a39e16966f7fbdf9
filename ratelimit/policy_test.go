package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-donations/core"

	goerrors "github.com/goliatone/go-errors"
)

const liveEndpoint = "http_client|https://ipnpb.paypal.com/cgi-bin/webscr"

func TestAdaptivePolicy_BeforeCallAllowsWhenNoState(t *testing.T) {
	policy := NewAdaptivePolicy(NewMemoryStateStore())

	wait, err := policy.BeforeCall(context.Background(), liveEndpoint)
	if err != nil {
		t.Fatalf("expected no error when no state exists, got %v", err)
	}
	if wait != 0 {
		t.Fatalf("expected no wait, got %s", wait)
	}
}

func TestAdaptivePolicy_RetryAfterHeaderOpensWindow(t *testing.T) {
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }

	if err := policy.AfterCall(context.Background(), liveEndpoint, core.TransportResponse{
		StatusCode: 429,
		Headers:    map[string]string{"Retry-After": "20"},
	}); err != nil {
		t.Fatalf("after call: %v", err)
	}

	state, err := store.Get(context.Background(), liveEndpoint)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.ThrottledUntil == nil || !state.ThrottledUntil.Equal(now.Add(20*time.Second)) {
		t.Fatalf("expected throttle window of 20s, got %+v", state.ThrottledUntil)
	}

	wait, err := policy.BeforeCall(context.Background(), liveEndpoint)
	if err != nil {
		t.Fatalf("before call: %v", err)
	}
	if wait != 20*time.Second {
		t.Fatalf("expected 20s wait, got %s", wait)
	}
}

func TestAdaptivePolicy_BackoffDoublesAndResets(t *testing.T) {
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)
	policy.InitialBackoff = time.Second
	policy.MaxBackoff = 3 * time.Second
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }
	ctx := context.Background()

	expected := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for i, delay := range expected {
		if err := policy.AfterCall(ctx, liveEndpoint, core.TransportResponse{StatusCode: 503}); err != nil {
			t.Fatalf("after call %d: %v", i+1, err)
		}
		state, _ := store.Get(ctx, liveEndpoint)
		if got := state.ThrottledUntil.Sub(now); got != delay {
			t.Fatalf("attempt %d: expected backoff %s, got %s", i+1, delay, got)
		}
	}

	if err := policy.AfterCall(ctx, liveEndpoint, core.TransportResponse{StatusCode: 200}); err != nil {
		t.Fatalf("after success: %v", err)
	}
	state, _ := store.Get(ctx, liveEndpoint)
	if state.Attempts != 0 || state.ThrottledUntil != nil {
		t.Fatalf("expected success to clear the window, got %+v", state)
	}
}

func TestGuard_ShortCircuitsWhileThrottled(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	policy.Now = func() time.Time { return now }
	next := &stubMechanism{response: core.TransportResponse{StatusCode: 429, Headers: map[string]string{"retry-after": "5"}}}
	guard := NewGuard(next, policy)

	req := core.TransportRequest{Endpoint: "https://ipnpb.paypal.com/cgi-bin/webscr"}
	if _, err := guard.Post(context.Background(), req); err != nil {
		t.Fatalf("first post: %v", err)
	}
	_, err := guard.Post(context.Background(), req)
	if err == nil {
		t.Fatalf("expected throttled error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryRateLimit || rich.TextCode != core.DonationErrorRateLimited {
		t.Fatalf("unexpected envelope category=%v text_code=%s", rich.Category, rich.TextCode)
	}
	if rich.Code != 429 {
		t.Fatalf("expected status code 429, got %d", rich.Code)
	}
	if next.calls != 1 {
		t.Fatalf("expected the throttled call to be skipped, got %d calls", next.calls)
	}

	now = now.Add(6 * time.Second)
	next.response = core.TransportResponse{StatusCode: 200, Body: []byte("VERIFIED")}
	res, err := guard.Post(context.Background(), req)
	if err != nil {
		t.Fatalf("post after window: %v", err)
	}
	if string(res.Body) != "VERIFIED" || next.calls != 2 {
		t.Fatalf("expected call to pass through after the window, got %q calls=%d", res.Body, next.calls)
	}
}

func TestGuard_PropagatesTransportErrors(t *testing.T) {
	next := &stubMechanism{err: errors.New("connection refused")}
	guard := NewGuard(next, nil)
	if _, err := guard.Post(context.Background(), core.TransportRequest{Endpoint: "https://example.test"}); err == nil {
		t.Fatalf("expected transport error")
	}
	if guard.Name() != "stub" || !guard.Available(context.Background()) {
		t.Fatalf("expected guard to mirror the wrapped mechanism")
	}

	var empty *Guard
	if _, err := empty.Post(context.Background(), core.TransportRequest{}); !errors.Is(err, core.ErrNoTransport) {
		t.Fatalf("expected no transport error, got %v", err)
	}
}

type stubMechanism struct {
	response core.TransportResponse
	err      error
	calls    int
}

func (m *stubMechanism) Name() string                   { return "stub" }
func (m *stubMechanism) Available(context.Context) bool { return true }

func (m *stubMechanism) Post(context.Context, core.TransportRequest) (core.TransportResponse, error) {
	m.calls++
	return m.response, m.err
}
