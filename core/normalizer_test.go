package core

import (
	"strings"
	"testing"
)

func testStrategy() Strategy {
	return Strategy{
		ProviderID: "cardnet",
		Success: func(response any, action string) bool {
			if strings.Contains(action, "idenpotency-keys") {
				return Present(response, "ikey")
			}
			return String(response, "response-code") == "00"
		},
		Message: func(response any, _ string) string {
			if joined := JoinFieldErrors(Slice(response, "errors"), FieldErrorPair{Field: "field", Message: "message"}, ""); joined != "" {
				return joined
			}
			return String(response, "response-code-desc")
		},
		Authorization: func(response any, _ string) string {
			return FirstString(response, []any{"ikey"}, []any{"approval-code"})
		},
		ErrorCode: func(response any, _ string) string {
			return String(response, "internal-response-code")
		},
		StatusOverrides: InvalidCredentialsOverride(),
	}
}

func TestStrategyNormalizeSuccessDropsErrorCode(t *testing.T) {
	outcome := testStrategy().NormalizeResponse(TransportResponse{
		StatusCode: 200,
		Body:       []byte(`{"response-code":"00","response-code-desc":"Transaction Approved","approval-code":"013140","internal-response-code":"0000"}`),
	}, "/transactions/sales", true)
	if !outcome.Success {
		t.Fatalf("expected success")
	}
	if outcome.Authorization != "013140" {
		t.Fatalf("expected approval code authorization, got %q", outcome.Authorization)
	}
	if outcome.ErrorCode != "" {
		t.Fatalf("expected no error code on success, got %q", outcome.ErrorCode)
	}
	if !outcome.Test {
		t.Fatalf("expected test flag to be carried")
	}
}

func TestStrategyNormalizeFailureJoinsFieldErrors(t *testing.T) {
	outcome := testStrategy().NormalizeResponse(TransportResponse{
		StatusCode: 400,
		Body:       []byte(`{"errors":[{"field":"amount","message":"must be greater than 0"},{"field":"cvv","message":"is required"}],"internal-response-code":"9999"}`),
	}, "/transactions/sales", false)
	if outcome.Success {
		t.Fatalf("expected failure")
	}
	if outcome.Message != "amount: must be greater than 0cvv: is required" {
		t.Fatalf("unexpected message %q", outcome.Message)
	}
	if outcome.ErrorCode != "9999" {
		t.Fatalf("expected error code 9999, got %q", outcome.ErrorCode)
	}
}

func TestStrategyNormalizeUsesActionContext(t *testing.T) {
	outcome := testStrategy().NormalizeResponse(TransportResponse{
		StatusCode: 200,
		Body:       []byte("ikey:f73898e8a77f479bb08d124d629b1be0"),
	}, "/idenpotency-keys", true)
	if !outcome.Success || outcome.Authorization != "f73898e8a77f479bb08d124d629b1be0" {
		t.Fatalf("expected idempotency key outcome, got %#v", outcome)
	}
}

func TestStrategyStatusOverrideSkipsParsing(t *testing.T) {
	outcome := testStrategy().NormalizeResponse(TransportResponse{
		StatusCode: 401,
		Body:       []byte(`{"messageId":10000000,"message":"Invalid api key [foobar]"}`),
	}, "/ens/service/authenticate", true)
	if outcome.Success {
		t.Fatalf("expected override to fail")
	}
	if outcome.Message != "Invalid credentials" {
		t.Fatalf("expected fixed message, got %q", outcome.Message)
	}
	if len(outcome.Params()) != 0 {
		t.Fatalf("expected empty raw params, got %#v", outcome.Params())
	}
}

func TestStrategyNormalizeNilResponse(t *testing.T) {
	outcome := Strategy{}.Normalize(nil, "purchase", false)
	if outcome.Success || outcome.Params() == nil {
		t.Fatalf("expected empty failing outcome, got %#v", outcome)
	}
}
