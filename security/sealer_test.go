package security

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
)

func encodeStd(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

func TestAppKeySealerRoundTrip(t *testing.T) {
	sealer, err := NewAppKeySealerFromString("super-secret-test-key", WithKeyID("gateways-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	plaintext := []byte("sk_test_4eC39HqLyjWDarjtT1zdp7dc")
	sealed, err := sealer.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !bytes.HasPrefix(sealed, []byte(SealedPrefix)) {
		t.Fatalf("expected sealed prefix")
	}
	opened, err := sealer.Decrypt(context.Background(), sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("expected round trip, got %q", opened)
	}
}

func TestAppKeySealerUnsealsAfterRotation(t *testing.T) {
	old, err := NewAppKeySealerFromString("old-key", WithKeyID("gateways-v1"))
	if err != nil {
		t.Fatalf("new old sealer: %v", err)
	}
	sealed, err := old.Seal(context.Background(), "api-key-123")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	rotated, err := NewAppKeySealerFromString("new-key",
		WithKeyID("gateways-v2"),
		WithPreviousKey([]byte("old-key"), "gateways-v1", 1),
	)
	if err != nil {
		t.Fatalf("new rotated sealer: %v", err)
	}
	value, err := rotated.Unseal(context.Background(), sealed)
	if err != nil || value != "api-key-123" {
		t.Fatalf("expected previous key to unseal, got %q (%v)", value, err)
	}

	stranger, _ := NewAppKeySealerFromString("new-key", WithKeyID("gateways-v2"))
	if _, err := stranger.Unseal(context.Background(), sealed); err == nil {
		t.Fatalf("expected unknown key id to fail")
	}
}

func TestUnsealAllPassesPlainValuesThrough(t *testing.T) {
	sealer, _ := NewAppKeySealerFromString("key")
	secret, _ := sealer.Seal(context.Background(), "client-secret")
	plain := "client-id"
	if err := UnsealAll(context.Background(), sealer, &secret, &plain, nil); err != nil {
		t.Fatalf("unseal all: %v", err)
	}
	if secret != "client-secret" || plain != "client-id" {
		t.Fatalf("unexpected values %q %q", secret, plain)
	}
	sealedAgain, _ := sealer.Seal(context.Background(), "x")
	if err := UnsealAll(context.Background(), nil, &sealedAgain); err == nil {
		t.Fatalf("expected missing provider to fail for sealed values")
	}
}
