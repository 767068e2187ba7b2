package devkit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/redact"
)

func TestFakeTransportAdapter_ScriptsAndCapturesRequests(t *testing.T) {
	adapter := NewFakeREST(
		Reply(429, `{"error":"slow down"}`),
		Reply(200, `{"ok":true}`),
	)

	first, err := adapter.Do(context.Background(), core.TransportRequest{
		Method: "GET",
		URL:    "https://api.example.test/items",
	})
	if err != nil {
		t.Fatalf("first fake call: %v", err)
	}
	if first.StatusCode != 429 {
		t.Fatalf("expected first scripted status 429, got %d", first.StatusCode)
	}

	second, err := adapter.Do(context.Background(), core.TransportRequest{
		Method: "POST",
		URL:    "https://api.example.test/items",
		Body:   []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("second fake call: %v", err)
	}
	if second.StatusCode != 200 {
		t.Fatalf("expected second scripted status 200, got %d", second.StatusCode)
	}

	third, _ := adapter.Do(context.Background(), core.TransportRequest{Method: "GET"})
	if third.StatusCode != 200 {
		t.Fatalf("expected last script to repeat, got %d", third.StatusCode)
	}

	requests := adapter.Requests()
	if len(requests) != 3 {
		t.Fatalf("expected three captured requests, got %d", len(requests))
	}
	if req, ok := adapter.Request(1); !ok || string(req.Body) != "{}" {
		t.Fatalf("expected second request body to be recorded")
	}
}

func TestFakeTransportAdapter_FailureAndTranscript(t *testing.T) {
	boom := errors.New("connection refused")
	adapter := NewFakeREST(Reply(200, `{"token":"abc"}`), Failure(boom))
	ctx, transcript := core.ContextWithTranscript(context.Background())

	if _, err := adapter.Do(ctx, core.TransportRequest{Method: "POST", URL: "https://api.example.test/login", Body: []byte(" ")}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := adapter.Do(ctx, core.TransportRequest{Method: "POST", URL: "https://api.example.test/pay"}); !errors.Is(err, boom) {
		t.Fatalf("expected scripted failure, got %v", err)
	}
	if !strings.Contains(transcript.String(), `-> "{\"token\":\"abc\"}"`) {
		t.Fatalf("expected reply in transcript, got %q", transcript.String())
	}
}

func TestValidateTransportAdapterConformance(t *testing.T) {
	adapter := NewFakeREST(Reply(200, ""))
	if err := ValidateTransportAdapterConformance(context.Background(), adapter, core.TransportRequest{
		Method: "GET",
		URL:    "https://api.example.test/items",
	}); err != nil {
		t.Fatalf("validate transport adapter conformance: %v", err)
	}
	if err := ValidateTransportAdapterConformance(context.Background(), nil, core.TransportRequest{}); err == nil {
		t.Fatalf("expected nil adapter error")
	}
}

func TestValidateScrubConformance(t *testing.T) {
	scrubber := redact.New(redact.JSONDigits("card-number"))
	transcript := `<- "{\"card-number\":\"4000100011112224\"}"`
	if err := ValidateScrubConformance(scrubber.Scrub, transcript, "4000100011112224"); err != nil {
		t.Fatalf("validate scrub conformance: %v", err)
	}
	if err := ValidateScrubConformance(func(s string) string { return s }, transcript, "4000100011112224"); err == nil {
		t.Fatalf("expected leaked secret error")
	}
}

func TestScriptedGateway_PostsEveryAction(t *testing.T) {
	adapter := NewFakeREST(Reply(200, `{"ok":true,"id":"ch_1","message":"Approved"}`))
	gateway := NewScriptedGateway("scripted", adapter)
	req := TokenRequest("scripted", 1250, "USD", "tok_1")
	req.Authorization = "auth_0"
	req.IdempotencyKey = "idem-7"

	calls := []func(context.Context, core.PaymentRequest) (core.ChainResult, error){
		gateway.Purchase, gateway.Authorize, gateway.Capture, gateway.Void,
		gateway.Refund, gateway.Verify, gateway.Store,
	}
	for _, call := range calls {
		result, err := call(context.Background(), req)
		if err != nil {
			t.Fatalf("scripted call: %v", err)
		}
		if !result.Success() || result.Authorization != "ch_1" {
			t.Fatalf("unexpected result %+v", result)
		}
	}

	requests := adapter.Requests()
	if len(requests) != len(core.AllActions()) {
		t.Fatalf("expected one request per action, got %d", len(requests))
	}
	for i, action := range core.AllActions() {
		if want := "https://gateway.test/" + string(action); requests[i].URL != want {
			t.Fatalf("expected %s, got %s", want, requests[i].URL)
		}
	}
	first := requests[0]
	if first.Idempotency != "idem-7" {
		t.Fatalf("expected idempotency key, got %q", first.Idempotency)
	}
	body := string(first.Body)
	for _, want := range []string{`"amount":1250`, `"authorization":"auth_0"`, `"token":"tok_1"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
}

func TestScriptedGateway_DeclineAndConformance(t *testing.T) {
	adapter := NewFakeREST(Reply(200, `{"ok":false,"message":"Declined","error":"card_declined"}`))
	gateway := NewScriptedGateway("scripted", adapter)

	result, err := gateway.Purchase(context.Background(), CardRequest("scripted", 100, "USD"))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if result.Success() || result.Primary.ErrorCode != "card_declined" {
		t.Fatalf("unexpected result %+v", result.Primary)
	}

	transcript := `<- "{\"number\":\"4000100011112224\"}"` + "\n" + `<- "Authorization: Bearer sk_test_123\r\n"`
	if err := ValidateGatewayConformance(gateway, transcript, "4000100011112224", "sk_test_123"); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}
