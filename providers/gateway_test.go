package providers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers"
	"github.com/goliatone/go-gateways/providers/devkit"
	"github.com/goliatone/go-gateways/ratelimit"
)

type headerSigner struct {
	calls int
}

func (s *headerSigner) Sign(_ context.Context, req *core.TransportRequest) error {
	s.calls++
	req.Headers["X-Signature"] = "signed:" + string(req.Body)
	return nil
}

type failingSigner struct{}

func (failingSigner) Sign(context.Context, *core.TransportRequest) error {
	return errors.New("no key")
}

func newBase(t *testing.T, fake core.TransportAdapter) *providers.Gateway {
	t.Helper()
	gateway, err := providers.NewGateway(providers.GatewayConfig{
		ID:        " Acme ",
		TestMode:  true,
		Transport: fake,
		Strategy:  devkit.ScriptedStrategy(""),
		Headers:   map[string]string{"Accept": "application/json", "X-Api-Key": "base"},
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gateway
}

func TestNewGateway_RequiresID(t *testing.T) {
	if _, err := providers.NewGateway(providers.GatewayConfig{ID: "  "}); err == nil {
		t.Fatalf("expected missing id error")
	}
}

func TestNewGateway_NormalizesIdentity(t *testing.T) {
	gateway := newBase(t, devkit.NewFakeREST())
	if gateway.ID() != "acme" {
		t.Fatalf("expected normalized id, got %q", gateway.ID())
	}
	if gateway.Strategy().ProviderID != "acme" {
		t.Fatalf("expected strategy to inherit provider id, got %q", gateway.Strategy().ProviderID)
	}
	if !gateway.TestMode() {
		t.Fatalf("expected test mode")
	}
	if got := gateway.Scrub("nothing to hide"); got != "nothing to hide" {
		t.Fatalf("expected empty scrubber to keep transcript, got %q", got)
	}
}

func TestGatewayDo_MergesHeadersAndSigns(t *testing.T) {
	fake := devkit.NewFakeREST(devkit.Reply(200, `{"ok":true,"id":"tx_1","message":"Approved"}`))
	gateway := newBase(t, fake)
	signer := &headerSigner{}

	outcome, err := gateway.Do(context.Background(), providers.Call{
		Action:      "purchase",
		URL:         "https://gateway.test/purchase",
		Headers:     map[string]string{"X-Api-Key": "call"},
		Body:        []byte(`{"amount":100}`),
		Signer:      signer,
		Idempotency: "idem-1",
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !outcome.Success || outcome.Authorization != "tx_1" || outcome.Message != "Approved" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if !outcome.Test {
		t.Fatalf("expected test outcome")
	}

	sent, ok := fake.Request(0)
	if !ok {
		t.Fatalf("expected a recorded request")
	}
	if sent.Method != "POST" {
		t.Fatalf("expected default POST, got %q", sent.Method)
	}
	if sent.Headers["X-Api-Key"] != "call" || sent.Headers["Accept"] != "application/json" {
		t.Fatalf("unexpected headers %v", sent.Headers)
	}
	if sent.Headers["X-Signature"] != `signed:{"amount":100}` || signer.calls != 1 {
		t.Fatalf("expected signed request, got %v", sent.Headers)
	}
	if sent.Idempotency != "idem-1" {
		t.Fatalf("expected idempotency key, got %q", sent.Idempotency)
	}
	if sent.Metadata["provider_id"] != "acme" || sent.Metadata["action"] != "purchase" {
		t.Fatalf("unexpected metadata %v", sent.Metadata)
	}
	if sent.Timeout <= 0 {
		t.Fatalf("expected default timeout")
	}
}

func TestGatewayDo_NonSuccessStatusIsAnOutcome(t *testing.T) {
	fake := devkit.NewFakeREST(devkit.Reply(402, `{"ok":false,"message":"Card declined","error":"card_declined"}`))
	gateway := newBase(t, fake)

	outcome, err := gateway.Do(context.Background(), providers.Call{Action: "purchase", URL: "https://gateway.test/purchase"})
	if err != nil {
		t.Fatalf("expected declines to be outcomes, got %v", err)
	}
	if outcome.Success || outcome.ErrorCode != "card_declined" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestGatewayDo_StatusOverrideSkipsDecode(t *testing.T) {
	fake := devkit.NewFakeREST(devkit.Reply(401, `not json`))
	gateway := newBase(t, fake)
	decoded := false

	outcome, err := gateway.Do(context.Background(), providers.Call{
		Action: "purchase",
		URL:    "https://gateway.test/purchase",
		Decode: func(context.Context, []byte) ([]byte, error) {
			decoded = true
			return nil, errors.New("should not run")
		},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if decoded {
		t.Fatalf("expected decode to be skipped")
	}
	if outcome.Success || outcome.Message != "Invalid credentials" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestGatewayDo_DecodeAndSignerErrors(t *testing.T) {
	fake := devkit.NewFakeREST(devkit.Reply(200, `{"ok":true}`))
	gateway := newBase(t, fake)

	_, err := gateway.Do(context.Background(), providers.Call{
		URL: "https://gateway.test/purchase",
		Decode: func(context.Context, []byte) ([]byte, error) {
			return nil, errors.New("bad envelope")
		},
	})
	if err == nil || err.Error() != "bad envelope" {
		t.Fatalf("expected decode error, got %v", err)
	}

	_, err = gateway.Do(context.Background(), providers.Call{URL: "https://gateway.test/purchase", Signer: failingSigner{}})
	if err == nil {
		t.Fatalf("expected signer error")
	}
	if len(fake.Requests()) != 1 {
		t.Fatalf("expected unsigned call to stay local, got %d requests", len(fake.Requests()))
	}
}

func TestGatewaySingle_RecordsOneStep(t *testing.T) {
	fake := devkit.NewFakeREST(devkit.Reply(200, `{"ok":true,"id":"auth_9"}`))
	gateway := newBase(t, fake)

	result, err := gateway.Single(context.Background(), "authorize", providers.Call{
		Action: "authorize",
		URL:    providers.URL("https://gateway.test/", "/authorize"),
	})
	if err != nil {
		t.Fatalf("single: %v", err)
	}
	if !result.Success() || result.Authorization != "auth_9" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Steps) != 1 || result.Steps[0].Name != "authorize" {
		t.Fatalf("unexpected steps %+v", result.Steps)
	}
	sent, _ := fake.Request(0)
	if sent.URL != "https://gateway.test/authorize" {
		t.Fatalf("unexpected url %q", sent.URL)
	}
}

func TestGatewayDo_TransportErrorPropagates(t *testing.T) {
	fake := devkit.NewFakeREST(devkit.Failure(errors.New("connection reset")))
	gateway := newBase(t, fake)

	if _, err := gateway.Do(context.Background(), providers.Call{URL: "https://gateway.test/purchase"}); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestNewGateway_RateLimitGuard(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	policy.Now = func() time.Time { return now }

	fake := devkit.NewFakeREST(devkit.TransportScript{Response: core.TransportResponse{
		StatusCode: 429,
		Headers:    map[string]string{"Retry-After": "10"},
		Body:       []byte(`{"ok":false,"error":"rate_limited"}`),
	}})
	gateway, err := providers.NewGateway(providers.GatewayConfig{
		ID:        "acme",
		Transport: fake,
		Strategy:  devkit.ScriptedStrategy("acme"),
		RateLimit: policy,
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	call := providers.Call{Action: "purchase", URL: "https://gateway.test/purchase"}

	outcome, err := gateway.Do(context.Background(), call)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if outcome.Success || outcome.ErrorCode != "rate_limited" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	_, err = gateway.Do(context.Background(), call)
	var throttled ratelimit.ThrottledError
	if !errors.As(err, &throttled) || throttled.ProviderID != "acme" || throttled.Host != "gateway.test" {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if len(fake.Requests()) != 1 {
		t.Fatalf("expected guarded call to stay local, got %d requests", len(fake.Requests()))
	}
}

func TestRequireCardAndFirstNonEmpty(t *testing.T) {
	req := devkit.TokenRequest("acme", 100, "USD", "tok_1")
	if _, err := providers.RequireCard("acme", req); !errors.Is(err, core.ErrInvalidPaymentSource) {
		t.Fatalf("expected invalid source error, got %v", err)
	}
	card, err := providers.RequireCard("acme", devkit.CardRequest("acme", 100, "USD"))
	if err != nil || card.Number == "" {
		t.Fatalf("expected card, got %+v %v", card, err)
	}
	if got := providers.FirstNonEmpty("", "  ", "b", "c"); got != "b" {
		t.Fatalf("unexpected first non empty %q", got)
	}
}
