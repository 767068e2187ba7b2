// Package ratelimit keeps per-gateway throttle state learned from 429 replies
// and rate limit headers, and refuses calls while a gateway is cooling down.
// It never retries on its own.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
)

// ThrottledError is returned for calls made inside a throttle window.
type ThrottledError struct {
	ProviderID string
	Host       string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: gateway %q host %q throttled for %s", e.ProviderID, e.Host, e.RetryAfter)
}

// ToGatewayError wraps e in a 429 envelope carrying the retry hint.
func (e ThrottledError) ToGatewayError() *goerrors.Error {
	metadata := map[string]any{"provider_id": e.ProviderID, "host": e.Host}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.Wrap(e, goerrors.CategoryRateLimit, e.Error()).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.GatewayErrorRateLimited).
		WithMetadata(metadata)
}

// AdaptivePolicy honours Retry-After when a gateway sends it and otherwise
// backs off exponentially per consecutive throttled reply.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

// BeforeCall fails with ThrottledError while key is blocked.
func (p *AdaptivePolicy) BeforeCall(ctx context.Context, key Key) error {
	state, found, err := p.load(ctx, key)
	if err != nil || !found {
		return err
	}
	if wait, blocked := state.blockedFor(p.now()); blocked {
		return ThrottledError{ProviderID: state.Key.ProviderID, Host: state.Key.Host, RetryAfter: wait}
	}
	return nil
}

// AfterCall folds the response into the state of key.
func (p *AdaptivePolicy) AfterCall(ctx context.Context, key Key, res core.TransportResponse) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, found, err := p.load(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		state = State{Key: key.normalized()}
	}
	now := p.now()
	sig := readSignals(res.Headers, now)

	state.LastStatus = res.StatusCode
	state.UpdatedAt = now
	state.RetryAfter = nil
	if sig.hasLimit {
		state.Limit = sig.limit
	}
	if sig.hasRemaining {
		state.Remaining = sig.remaining
	}
	if !sig.resetAt.IsZero() {
		state.ResetAt = &sig.resetAt
	}
	if sig.retryAfter > 0 {
		state.RetryAfter = &sig.retryAfter
	}

	if !throttled(res.StatusCode, state.Remaining, sig.present()) {
		state.Attempts = 0
		state.ThrottledUntil = nil
		return p.Store.Upsert(ctx, state)
	}
	state.Attempts++
	wait := sig.retryAfter
	if wait <= 0 {
		wait = p.backoff(state.Attempts)
	}
	until := now.Add(wait)
	state.ThrottledUntil = &until
	return p.Store.Upsert(ctx, state)
}

// load returns found=false without an error when the store has no state or
// the policy has no store.
func (p *AdaptivePolicy) load(ctx context.Context, key Key) (State, bool, error) {
	if p == nil || p.Store == nil {
		return State{}, false, nil
	}
	state, err := p.Store.Get(ctx, key.normalized())
	switch {
	case errors.Is(err, ErrStateNotFound):
		return State{}, false, nil
	case err != nil:
		return State{}, false, err
	}
	return state, true, nil
}

func (p *AdaptivePolicy) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// backoff is InitialBackoff doubled per attempt after the first, capped at
// MaxBackoff.
func (p *AdaptivePolicy) backoff(attempt int) time.Duration {
	delay, ceiling := p.InitialBackoff, p.MaxBackoff
	if delay <= 0 {
		delay = time.Second
	}
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	for i := 1; i < attempt && delay < ceiling; i++ {
		delay *= 2
	}
	return min(delay, ceiling)
}

// throttled is true for a 429, or for a non-5xx reply that reports an empty
// quota through rate limit headers.
func throttled(status, remaining int, headers bool) bool {
	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return false
	default:
		return headers && remaining == 0
	}
}

// signals is what one response says about the gateway's limits. Zero times
// and durations mean the header was absent.
type signals struct {
	limit, remaining       int
	hasLimit, hasRemaining bool
	resetAt                time.Time
	retryAfter             time.Duration
}

func (s signals) present() bool {
	return s.hasLimit || s.hasRemaining || !s.resetAt.IsZero() || s.retryAfter > 0
}

func readSignals(headers map[string]string, now time.Time) signals {
	lower := make(map[string]string, len(headers))
	for key, value := range headers {
		lower[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	var sig signals
	if n, err := strconv.Atoi(lower["x-ratelimit-limit"]); err == nil {
		sig.limit, sig.hasLimit = n, true
	}
	if n, err := strconv.Atoi(lower["x-ratelimit-remaining"]); err == nil {
		sig.remaining, sig.hasRemaining = n, true
	}
	if unix, err := strconv.ParseInt(lower["x-ratelimit-reset"], 10, 64); err == nil && unix > 0 {
		sig.resetAt = time.Unix(unix, 0).UTC()
	}

	raw := lower["retry-after"]
	if seconds, err := strconv.Atoi(raw); err == nil {
		sig.retryAfter = max(time.Duration(seconds)*time.Second, 0)
	} else if at, err := http.ParseTime(raw); err == nil && at.After(now) {
		sig.retryAfter = at.Sub(now)
	}
	return sig
}
