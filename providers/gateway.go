package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/ratelimit"
	"github.com/goliatone/go-gateways/redact"
	"github.com/goliatone/go-gateways/transport"
)

const defaultCallTimeout = 60 * time.Second

// GatewayConfig carries what every provider adapter shares: identity, the
// transport, the response rules and the transcript redactor.
type GatewayConfig struct {
	ID        string
	TestMode  bool
	Transport core.TransportAdapter
	Strategy  core.Strategy
	Scrubber  *redact.Scrubber
	Headers   map[string]string
	Timeout   time.Duration
	// RateLimit, when set, guards the transport so calls fail fast while the
	// gateway host is cooling down after a 429.
	RateLimit *ratelimit.AdaptivePolicy
}

// Gateway is the shared base of the built-in adapters. A provider embeds it and
// adds the capability methods it supports.
type Gateway struct {
	cfg GatewayConfig
}

// Call describes one remote request and how to read its reply.
type Call struct {
	Action  string
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Signer  core.RequestSigner
	// Decode turns the raw response body into the bytes to parse, e.g. by
	// opening an encrypted envelope. It is skipped for overridden statuses.
	Decode func(ctx context.Context, body []byte) ([]byte, error)
	// Idempotency is sent as the Idempotency-Key header when set.
	Idempotency string
}

func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(nil)
	}
	if cfg.RateLimit != nil {
		cfg.Transport = ratelimit.NewGuard(cfg.ID, cfg.Transport, cfg.RateLimit)
	}
	if cfg.Strategy.ProviderID == "" {
		cfg.Strategy.ProviderID = cfg.ID
	}
	if cfg.Scrubber == nil {
		cfg.Scrubber = redact.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCallTimeout
	}
	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		headers[key] = value
	}
	cfg.Headers = headers
	return &Gateway{cfg: cfg}, nil
}

func (g *Gateway) ID() string {
	if g == nil {
		return ""
	}
	return g.cfg.ID
}

func (g *Gateway) TestMode() bool {
	return g != nil && g.cfg.TestMode
}

func (g *Gateway) Scrub(transcript string) string {
	if g == nil {
		return transcript
	}
	return g.cfg.Scrubber.Scrub(transcript)
}

func (g *Gateway) Strategy() core.Strategy {
	if g == nil {
		return core.Strategy{}
	}
	return g.cfg.Strategy
}

// Do executes call and normalizes the reply. Non-2xx statuses are normalized
// like any other reply; only transport, signing and decode failures are
// errors.
func (g *Gateway) Do(ctx context.Context, call Call) (core.Outcome, error) {
	if g == nil {
		return core.Outcome{}, fmt.Errorf("providers: gateway is nil")
	}
	method := strings.ToUpper(strings.TrimSpace(call.Method))
	if method == "" {
		method = http.MethodPost
	}
	headers := make(map[string]string, len(g.cfg.Headers)+len(call.Headers))
	for key, value := range g.cfg.Headers {
		headers[key] = value
	}
	for key, value := range call.Headers {
		headers[key] = value
	}
	req := core.TransportRequest{
		Method:      method,
		URL:         call.URL,
		Headers:     headers,
		Body:        call.Body,
		Timeout:     g.cfg.Timeout,
		Idempotency: call.Idempotency,
		Metadata: map[string]any{
			"provider_id": g.cfg.ID,
			"action":      call.Action,
		},
	}
	if call.Signer != nil {
		if err := call.Signer.Sign(ctx, &req); err != nil {
			return core.Outcome{}, err
		}
	}

	res, err := g.cfg.Transport.Do(ctx, req)
	if err != nil {
		return core.Outcome{}, err
	}
	if fixed, ok := g.cfg.Strategy.Override(res.StatusCode, g.cfg.TestMode); ok {
		return fixed, nil
	}
	body := res.Body
	if call.Decode != nil {
		body, err = call.Decode(ctx, body)
		if err != nil {
			return core.Outcome{}, err
		}
	}
	return g.cfg.Strategy.Normalize(core.ParseBody(body), call.Action, g.cfg.TestMode), nil
}

// Step wraps a call builder as a chain step. build receives the authorization
// passed forward by the chain.
func (g *Gateway) Step(name string, build func(previousAuthorization string) (Call, error)) core.Step {
	return core.NewStep(name, func(ctx context.Context, previous string) (core.Outcome, error) {
		call, err := build(previous)
		if err != nil {
			return core.Outcome{}, err
		}
		return g.Do(ctx, call)
	})
}

// Single runs one call as a one-step chain.
func (g *Gateway) Single(ctx context.Context, name string, call Call) (core.ChainResult, error) {
	return core.RunChain(ctx, core.PolicyDefault, g.Step(name, func(string) (Call, error) {
		return call, nil
	}))
}

// JSONBody encodes payload for a request body.
func JSONBody(payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("providers: encode request body: %w", err)
	}
	return encoded, nil
}

// URL joins a base URL and a path with exactly one slash.
func URL(base string, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
}

// RequireCard returns the card of req or a bad input error naming the provider.
func RequireCard(providerID string, req core.PaymentRequest) (core.CreditCard, error) {
	if req.Source.Card == nil {
		return core.CreditCard{}, fmt.Errorf("%w: %s requires a card", core.ErrInvalidPaymentSource, providerID)
	}
	return *req.Source.Card, nil
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
