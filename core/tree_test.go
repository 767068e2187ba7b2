package core

import "testing"

func TestParseBodyDecodesJSONWithNumbers(t *testing.T) {
	tree := ParseBody([]byte(`{"response-code":"00","amount":1000,"errors":[{"field":"amount","message":"must be greater than 0"}]}`))
	if got := String(tree, "amount"); got != "1000" {
		t.Fatalf("expected numeric amount to render as 1000, got %q", got)
	}
	if got := String(tree, "errors", 0, "field"); got != "amount" {
		t.Fatalf("expected nested array access, got %q", got)
	}
	if Present(tree, "errors", 1) {
		t.Fatalf("expected out of range index to be absent")
	}
}

func TestParseBodyFallsBackToKeyValueLines(t *testing.T) {
	tree := ParseBody([]byte("ikey:f73898e8a77f479bb08d124d629b1be0"))
	if got := String(tree, "ikey"); got != "f73898e8a77f479bb08d124d629b1be0" {
		t.Fatalf("expected ikey from fallback parse, got %q", got)
	}

	tree = ParseBody([]byte("<html>Bad Gateway</html>\nstatus: 502"))
	if got := String(tree, "status"); got != "502" {
		t.Fatalf("expected status line, got %q", got)
	}
	if got := String(tree, FallbackBodyKey); got != "<html>Bad Gateway</html>" {
		t.Fatalf("expected loose lines under fallback key, got %q", got)
	}
}

func TestParseBodyEmptyBodyIsEmptyMapping(t *testing.T) {
	tree, ok := ParseBody(nil).(map[string]any)
	if !ok || len(tree) != 0 {
		t.Fatalf("expected empty mapping, got %#v", tree)
	}
}

func TestExtractionHelpers(t *testing.T) {
	tree := ParseBody([]byte(`{"success":true,"data":{"estado":"Aceptada","items":[1,2]},"flag":"TRUE"}`))
	if !Bool(tree, "success") || !Bool(tree, "flag") {
		t.Fatalf("expected bool helpers to accept bool and string true")
	}
	if Bool(tree, "missing") {
		t.Fatalf("expected missing path to be false")
	}
	if got := FirstString(tree, []any{"data", "respuesta"}, []any{"data", "estado"}); got != "Aceptada" {
		t.Fatalf("expected first present string, got %q", got)
	}
	if len(Slice(tree, "data", "items")) != 2 {
		t.Fatalf("expected slice helper to return items")
	}
	if Mapping(tree, "data") == nil {
		t.Fatalf("expected mapping helper to return data")
	}
	if got := String(tree, "data", "items"); got != "[1,2]" {
		t.Fatalf("expected nested value to be marshaled, got %q", got)
	}
}
