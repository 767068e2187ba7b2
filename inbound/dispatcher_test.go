package inbound

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/webhooks"
)

const ipn = `{"orderRef":"101","transactionId":99325369,"status":"FINISHED"}`

func TestDispatcher_ServeHTTPRoutesByProvider(t *testing.T) {
	sink := &recordingSink{}
	dispatcher := NewDispatcher()
	if err := dispatcher.RegisterTemplate(webhooks.NewSimplePayTemplate("secret"), nil, sink); err != nil {
		t.Fatalf("register template: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("POST /notifications/{provider}", dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/notifications/simplepay", strings.NewReader(ipn))
	req.Header.Set("Signature", sign("secret", ipn))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"receiveDate"`) {
		t.Fatalf("expected acknowledgement body, got %s", rec.Body.String())
	}
	if rec.Header().Get("Signature") != sign("secret", rec.Body.String()) {
		t.Fatalf("expected signed acknowledgement")
	}
	if len(sink.records) != 1 || sink.records[0].Authorization != "99325369" {
		t.Fatalf("unexpected records %+v", sink.records)
	}
}

func TestDispatcher_ServeHTTPStatuses(t *testing.T) {
	dispatcher := NewDispatcher()
	if err := dispatcher.RegisterTemplate(webhooks.NewSimplePayTemplate("secret"), nil, &recordingSink{}); err != nil {
		t.Fatalf("register template: %v", err)
	}

	cases := []struct {
		name   string
		method string
		path   string
		sig    string
		want   int
	}{
		{"wrong method", http.MethodGet, "/hooks/simplepay", "", http.StatusMethodNotAllowed},
		{"unknown provider", http.MethodPost, "/hooks/stripeintents", "", http.StatusNotFound},
		{"bad signature", http.MethodPost, "/hooks/simplepay", sign("other", ipn), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(ipn))
			if tc.sig != "" {
				req.Header.Set("Signature", tc.sig)
			}
			rec := httptest.NewRecorder()
			dispatcher.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestDispatcher_BodyLimit(t *testing.T) {
	dispatcher := NewDispatcher()
	dispatcher.MaxBodyBytes = 8
	req := httptest.NewRequest(http.MethodPost, "/hooks/simplepay", strings.NewReader(ipn))
	rec := httptest.NewRecorder()
	dispatcher.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestDispatch_VerificationFailureReturnsRichError(t *testing.T) {
	dispatcher := NewDispatcher()
	if err := dispatcher.Register("simplepay", stubProcessor{
		result: webhooks.Result{StatusCode: http.StatusUnauthorized},
		err:    errors.New("signature mismatch"),
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := dispatcher.Dispatch(context.Background(), webhooks.Notification{ProviderID: "SimplePay"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryAuth || rich.TextCode != core.GatewayErrorUnauthorized || rich.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected error envelope %+v", rich)
	}
}

func TestDispatch_ProcessingFailureIsBadGateway(t *testing.T) {
	dispatcher := NewDispatcher()
	if err := dispatcher.Register("epayco", stubProcessor{err: errors.New("db down")}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := dispatcher.Dispatch(context.Background(), webhooks.Notification{ProviderID: "epayco"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.GatewayErrorOperationFailed || rich.Code != http.StatusBadGateway {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDispatcher_RegisterValidation(t *testing.T) {
	dispatcher := NewDispatcher()
	var rich *goerrors.Error
	if err := dispatcher.Register(" ", stubProcessor{}); !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryBadInput {
		t.Fatalf("expected bad input for empty provider, got %v", err)
	}
	if err := dispatcher.Register("simplepay", nil); err == nil {
		t.Fatalf("expected nil processor error")
	}
	if err := dispatcher.Register("SimplePay", stubProcessor{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := dispatcher.Register("simplepay", stubProcessor{}); !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := dispatcher.Providers(); len(got) != 1 || got[0] != "simplepay" {
		t.Fatalf("unexpected providers %v", got)
	}
	if _, err := dispatcher.Dispatch(context.Background(), webhooks.Notification{}); err == nil {
		t.Fatalf("expected missing provider error")
	}
}

func sign(secret string, body string) string {
	mac := hmac.New(sha512.New384, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type stubProcessor struct {
	result webhooks.Result
	err    error
}

func (p stubProcessor) Process(context.Context, webhooks.Notification) (webhooks.Result, error) {
	return p.result, p.err
}

type recordingSink struct {
	records []core.Transaction
}

func (s *recordingSink) Record(_ context.Context, txn core.Transaction) (core.Transaction, error) {
	txn.ID = "txn_1"
	s.records = append(s.records, txn)
	return txn, nil
}
