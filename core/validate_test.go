package core

import (
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type sampleProviderConfig struct {
	PublicKey  string `koanf:"public_key" validate:"required"`
	PrivateKey string `koanf:"private_key" validate:"required"`
	BaseURL    string `koanf:"base_url" validate:"omitempty,url"`
}

func TestValidateProviderConfigReportsEveryField(t *testing.T) {
	err := ValidateProviderConfig("epayco", sampleProviderConfig{BaseURL: "not a url"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.Category != goerrors.CategoryValidation || richErr.TextCode != GatewayErrorBadInput {
		t.Fatalf("unexpected envelope %s/%s", richErr.Category, richErr.TextCode)
	}
	if len(richErr.ValidationErrors) != 3 {
		t.Fatalf("expected three field errors, got %#v", richErr.ValidationErrors)
	}
	if !strings.Contains(richErr.Message, "public_key") {
		t.Fatalf("expected koanf field names in message, got %q", richErr.Message)
	}
}

func TestValidateProviderConfigAcceptsCompleteConfig(t *testing.T) {
	if err := ValidateProviderConfig("epayco", sampleProviderConfig{PublicKey: "pub", PrivateKey: "priv"}); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
