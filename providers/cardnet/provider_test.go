package cardnet

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers/devkit"
)

const (
	successfulAuthorizeResponse = `ikey:f73898e8a77f479bb08d124d629b1be0`

	successfulPurchaseResponse = `{
  "idempotency-key" : "6fc3f9bf974443f18e854ff50d31fe73",
  "response-code" : "00",
  "internal-response-code" : "0000",
  "response-code-desc" : "Transaction Approved",
  "response-code-source" : "gw",
  "approval-code" : "013140",
  "pnRef" : "txn-89b3c6abcbf044b0a7a3da998bb7a456"
}`

	failedPurchaseResponse = `{
  "path" : "/api/payment/transactions/sales",
  "error" : "Incoming data validation error",
  "message" : "Incoming data validation error",
  "errors" : [ {
    "field" : "amount",
    "message" : "must be greater than 0"
  } ],
  "status" : "400",
  "timestamp" : "1624401063753"
}`
)

func newTestGateway(t *testing.T, scripts ...devkit.TransportScript) (*Gateway, *devkit.FakeTransportAdapter) {
	t.Helper()
	fake := devkit.NewFakeREST(scripts...)
	gateway, err := New(Config{
		MerchantID: "349000000",
		TerminalID: "58585858",
		Currency:   "214",
		TestMode:   true,
		Transport:  fake,
	})
	if err != nil {
		t.Fatalf("new cardnet gateway: %v", err)
	}
	return gateway, fake
}

func TestPurchase_Success(t *testing.T) {
	gateway, fake := newTestGateway(t,
		devkit.Reply(200, successfulAuthorizeResponse),
		devkit.Reply(200, successfulPurchaseResponse),
	)
	req := devkit.CardRequest(ProviderID, 100, "DOP")
	req.Customer.IP = "1.1.1.1"

	result, err := gateway.Purchase(context.Background(), req)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got %+v", result.Primary)
	}
	if result.Primary.Authorization != "013140" {
		t.Fatalf("expected authorization 013140, got %q", result.Primary.Authorization)
	}
	if !result.Primary.Test {
		t.Fatalf("expected test outcome")
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected two steps, got %d", len(result.Steps))
	}

	requests := fake.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected two requests, got %d", len(requests))
	}
	if requests[0].URL != TestURL+PathIdempotencyKeys || string(requests[0].Body) != "{}" {
		t.Fatalf("unexpected key request %s %q", requests[0].URL, requests[0].Body)
	}
	if requests[1].URL != TestURL+PathSales {
		t.Fatalf("unexpected sale url %s", requests[1].URL)
	}
	var sale map[string]any
	if err := json.Unmarshal(requests[1].Body, &sale); err != nil {
		t.Fatalf("decode sale body: %v", err)
	}
	expected := map[string]any{
		"idempotency-key": "f73898e8a77f479bb08d124d629b1be0",
		"card-number":     "4000100011112224",
		"cvv":             "123",
		"expiration-date": "09/30",
		"currency":        "214",
		"client-ip":       "1.1.1.1",
		"environment":     "ECommerce",
		"merchant-id":     "349000000",
		"terminal-id":     "58585858",
		"invoice-number":  "1",
	}
	for key, want := range expected {
		if sale[key] != want {
			t.Fatalf("expected %s=%v, got %v", key, want, sale[key])
		}
	}
	if sale["amount"] != float64(100) {
		t.Fatalf("expected amount in cents, got %v", sale["amount"])
	}
}

func TestPurchase_FailedSaleReportsFieldErrors(t *testing.T) {
	gateway, _ := newTestGateway(t,
		devkit.Reply(200, successfulAuthorizeResponse),
		devkit.Reply(400, failedPurchaseResponse),
	)

	result, err := gateway.Purchase(context.Background(), devkit.CardRequest(ProviderID, 100, "DOP"))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if result.Success() {
		t.Fatalf("expected failure")
	}
	if result.Primary.ErrorCode != "amount: must be greater than 0" {
		t.Fatalf("unexpected error code %q", result.Primary.ErrorCode)
	}
	if result.Primary.Message != "amount: must be greater than 0" {
		t.Fatalf("unexpected message %q", result.Primary.Message)
	}
}

func TestPurchase_StopsWhenKeyRequestFails(t *testing.T) {
	gateway, fake := newTestGateway(t, devkit.Reply(500, ``))

	result, err := gateway.Purchase(context.Background(), devkit.CardRequest(ProviderID, 100, "DOP"))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if result.Success() {
		t.Fatalf("expected failure on empty key reply")
	}
	if len(fake.Requests()) != 1 {
		t.Fatalf("expected the sale to be skipped, got %d requests", len(fake.Requests()))
	}
}

func TestAuthorize_ReturnsIdempotencyKey(t *testing.T) {
	gateway, _ := newTestGateway(t, devkit.Reply(200, successfulAuthorizeResponse))

	result, err := gateway.Authorize(context.Background(), devkit.CardRequest(ProviderID, 100, "DOP"))
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !result.Success() || result.Authorization != "f73898e8a77f479bb08d124d629b1be0" {
		t.Fatalf("unexpected authorize result %+v", result.Primary)
	}
}

func TestPurchase_RequiresCard(t *testing.T) {
	gateway, _ := newTestGateway(t,
		devkit.Reply(200, successfulAuthorizeResponse),
		devkit.Reply(200, successfulPurchaseResponse),
	)
	req := devkit.CardRequest(ProviderID, 100, "DOP")
	req.Source = core.TokenSource("tok_1")

	_, err := gateway.Purchase(context.Background(), req)
	if !errors.Is(err, core.ErrInvalidPaymentSource) {
		t.Fatalf("expected invalid payment source, got %v", err)
	}
}

func TestVoid_PostsPnRef(t *testing.T) {
	gateway, fake := newTestGateway(t, devkit.Reply(200, `{"response-code":"00","response-code-desc":"Transaction Approved","approval-code":"013141"}`))
	req := devkit.CardRequest(ProviderID, 100, "DOP")
	req.Authorization = "txn-89b3c6abcbf044b0a7a3da998bb7a456"

	result, err := gateway.Void(context.Background(), req)
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected void success, got %+v", result.Primary)
	}
	request, _ := fake.Request(0)
	if request.URL != TestURL+PathVoids || !strings.Contains(string(request.Body), `"pnRef":"txn-89b3c6abcbf044b0a7a3da998bb7a456"`) {
		t.Fatalf("unexpected void request %s %s", request.URL, request.Body)
	}
}

func TestNew_RequiresMerchant(t *testing.T) {
	if _, err := New(Config{TerminalID: "1", Currency: "214"}); err == nil {
		t.Fatalf("expected missing merchant id error")
	}
}

func TestScrub(t *testing.T) {
	pre := `<- "POST /api/payment/transactions/sales HTTP/1.1\r\nContent-Type: application/json\r\nHost: lab.cardnet.com.do\r\nContent-Length: 379\r\n\r\n"
<- "{\"tax\":0,\"tip\":0,\"amount\":100,\"currency\":\"214\",\"invoice-number\":\"BhLRJ7alVT\",\"card-number\":\"4000100011112224\",\"cvv\":\"123\",\"expiration-date\":\"09/22\",\"client-ip\":\"1.1.1.1\",\"environment\":\"ECommerce\",\"merchant-id\":\"349000000\",\"terminal-id\":\"58585858\",\"idempotency-key\":\"f73898e8a77f479bb08d124d629b1be0\",\"token\":\"TpCIj5Rqp3\"}"
`
	post := `<- "POST /api/payment/transactions/sales HTTP/1.1\r\nContent-Type: application/json\r\nHost: lab.cardnet.com.do\r\nContent-Length: 379\r\n\r\n"
<- "{\"tax\":0,\"tip\":0,\"amount\":100,\"currency\":\"214\",\"invoice-number\":\"BhLRJ7alVT\",\"card-number\":\"[FILTERED]\",\"cvv\":\"[FILTERED]\",\"expiration-date\":\"09/22\",\"client-ip\":\"1.1.1.1\",\"environment\":\"ECommerce\",\"merchant-id\":\"[FILTERED]\",\"terminal-id\":\"[FILTERED]\",\"idempotency-key\":\"f73898e8a77f479bb08d124d629b1be0\",\"token\":\"TpCIj5Rqp3\"}"
`
	gateway, _ := newTestGateway(t)
	if got := gateway.Scrub(pre); got != post {
		t.Fatalf("unexpected scrub output:\n%s", got)
	}
	if err := devkit.ValidateGatewayConformance(gateway, pre, "4000100011112224", "349000000", "58585858"); err != nil {
		t.Fatalf("gateway conformance: %v", err)
	}
}
