// Package hsbc adapts the HSBC Hong Kong direct debit collection API. Request
// bodies are signed and encrypted with PGP and travel base64 encoded inside a
// JSON envelope.
package hsbc

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers"
	"github.com/goliatone/go-gateways/redact"
	"github.com/goliatone/go-gateways/security"
)

const (
	ProviderID = "hsbc"
	TestURL    = "https://devcluster.api.p2g.netd2.hsbc.com.hk/cmb-connect-payments-pa-collection-cert-proxy/v1/direct-debits/"

	ActionAuthorisations = "authorisations"
	ActionCancellations  = "authorisations/cancellations"

	// Only HKD monthly mandates without an end date are supported.
	Currency         = "HKD"
	CountryCode      = "HK"
	FrequencyMonthly = "MNTH"
	OpenEndedDate    = "9999-12-31"

	HeaderCountryCode  = "x-hsbc-country-code"
	HeaderClientID     = "x-hsbc-client-id"
	HeaderClientSecret = "x-hsbc-client-secret"
	HeaderProfileID    = "x-hsbc-profile-id"
)

type Config struct {
	ClientID     string `koanf:"client_id" validate:"required"`
	ClientSecret string `koanf:"client_secret" validate:"required"`
	ProfileID    string `koanf:"profile_id" validate:"required"`
	// PublicKey is the bank's armored key; PrivateKey is ours and signs requests.
	PublicKey  string `koanf:"public_key" validate:"required"`
	PrivateKey string `koanf:"private_key" validate:"required"`
	Passphrase string `koanf:"passphrase"`
	TestMode   bool   `koanf:"test_mode"`
	TestURL    string `koanf:"test_url" validate:"omitempty,url"`
	LiveURL    string `koanf:"live_url" validate:"omitempty,url"`

	Transport core.TransportAdapter `koanf:"-"`
	PGP       *security.PGP         `koanf:"-"`
}

type Gateway struct {
	*providers.Gateway
	cfg      Config
	envelope *security.Envelope
}

func New(cfg Config) (*Gateway, error) {
	cfg.TestURL = providers.FirstNonEmpty(cfg.TestURL, TestURL)
	if err := core.ValidateProviderConfig(ProviderID, cfg); err != nil {
		return nil, err
	}
	base, err := providers.NewGateway(providers.GatewayConfig{
		ID:        ProviderID,
		TestMode:  cfg.TestMode,
		Transport: cfg.Transport,
		Strategy:  Strategy(),
		Scrubber:  Scrubber(),
		Headers: map[string]string{
			"Content-Type":     "application/json",
			HeaderCountryCode:  CountryCode,
			HeaderClientID:     cfg.ClientID,
			HeaderClientSecret: cfg.ClientSecret,
			HeaderProfileID:    cfg.ProfileID,
		},
	})
	if err != nil {
		return nil, err
	}
	keys := security.KeyMaterial{
		PublicKey:  cfg.PublicKey,
		PrivateKey: cfg.PrivateKey,
		Passphrase: cfg.Passphrase,
	}
	return &Gateway{
		Gateway:  base,
		cfg:      cfg,
		envelope: security.NewEnvelope(keys, cfg.PGP),
	}, nil
}

func (g *Gateway) baseURL() string {
	if g.cfg.TestMode || strings.TrimSpace(g.cfg.LiveURL) == "" {
		return g.cfg.TestURL
	}
	return g.cfg.LiveURL
}

// Authorize registers a direct debit mandate capped at req.Money.
func (g *Gateway) Authorize(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	call, err := g.sealedCall(ctx, ActionAuthorisations, authorisationPayload(req))
	if err != nil {
		return core.ChainResult{}, err
	}
	return g.Single(ctx, "authorize", call)
}

// Void cancels the mandate identified by req.Authorization.
func (g *Gateway) Void(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	call, err := g.sealedCall(ctx, ActionCancellations, cancellationPayload(req, req.Authorization))
	if err != nil {
		return core.ChainResult{}, err
	}
	return g.Single(ctx, "void", call)
}

// Verify authorizes a mandate of 1.00 HKD and cancels it. The authorization
// decides the result; the cancellation is best effort.
func (g *Gateway) Verify(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	verify := req
	verify.Money = core.MoneyFromCents(100, Currency)
	return core.RunChain(ctx, core.PolicyUseFirstResponse,
		core.NewStep("authorize", func(ctx context.Context, _ string) (core.Outcome, error) {
			call, err := g.sealedCall(ctx, ActionAuthorisations, authorisationPayload(verify))
			if err != nil {
				return core.Outcome{}, err
			}
			return g.Do(ctx, call)
		}),
		core.NewStep("void", func(ctx context.Context, previous string) (core.Outcome, error) {
			call, err := g.sealedCall(ctx, ActionCancellations, cancellationPayload(verify, previous))
			if err != nil {
				return core.Outcome{}, err
			}
			return g.Do(ctx, call)
		}).Ignored(),
	)
}

func (g *Gateway) sealedCall(ctx context.Context, action string, payload map[string]any) (providers.Call, error) {
	plaintext, err := providers.JSONBody(payload)
	if err != nil {
		return providers.Call{}, err
	}
	body, err := g.envelope.Seal(ctx, plaintext)
	if err != nil {
		return providers.Call{}, err
	}
	return providers.Call{
		Action: action,
		Method: http.MethodPost,
		URL:    g.baseURL() + action,
		Body:   body,
		Decode: g.open,
	}, nil
}

// open decrypts enveloped replies; validation errors arrive as plain JSON.
func (g *Gateway) open(ctx context.Context, body []byte) ([]byte, error) {
	plaintext, _, err := g.envelope.Open(ctx, body)
	return plaintext, err
}

func authorisationPayload(req core.PaymentRequest) map[string]any {
	return map[string]any{
		"MerchantRequestIdentification": req.Option("merchant_request_identification"),
		"CreditorReference":             req.Option("creditor_reference"),
		"DebtorName":                    req.Option("debtor_name"),
		"DebtorAccount": map[string]any{
			"BankCode":              debtorBankCode(req),
			"AccountIdentification": debtorAccount(req),
			"Currency":              Currency,
		},
		"CreditorName":                          req.Option("creditor_name"),
		"DebtorPrivateIdentification":           providers.FirstNonEmpty(req.Option("debtor_private_identification"), req.Customer.DocumentNumber),
		"DebtorPrivateIdentificationSchemeName": providers.FirstNonEmpty(req.Option("debtor_private_identification_scheme_name"), req.Customer.DocumentType),
		"DebtorMobileNumber":                    providers.FirstNonEmpty(req.Option("debtor_mobile_number"), req.Customer.Mobile),
		"MaximumAmountCurrency":                 Currency,
		"MaximumAmount":                         req.Money.Major(),
		"Occurrences": map[string]any{
			"FrequencyType":  FrequencyMonthly,
			"DurationToDate": OpenEndedDate,
		},
		"CreditorAccount": map[string]any{
			"BankCode":              req.Option("creditor_bank_code"),
			"AccountIdentification": providers.FirstNonEmpty(req.Option("creditor_account_identification"), req.Option("account_identification")),
			"Currency":              Currency,
		},
	}
}

func cancellationPayload(req core.PaymentRequest, authorization string) map[string]any {
	return map[string]any{
		"MerchantRequestIdentification": req.Option("merchant_request_identification"),
		"AuthorisationIdentification":   authorization,
	}
}

func debtorBankCode(req core.PaymentRequest) string {
	if bank := req.Source.Bank; bank != nil && bank.BankCode != "" {
		return bank.BankCode
	}
	return req.Option("debtor_bank_code")
}

func debtorAccount(req core.PaymentRequest) string {
	if bank := req.Source.Bank; bank != nil && bank.AccountNumber != "" {
		return bank.AccountNumber
	}
	return providers.FirstNonEmpty(req.Option("account_identification"), req.Source.Token)
}

func Strategy() core.Strategy {
	return core.Strategy{
		ProviderID: ProviderID,
		Success:    success,
		Message: func(response any, _ string) string {
			return core.FirstString(response, []any{"description"}, []any{"Message"})
		},
		Authorization: func(response any, _ string) string {
			return core.FirstString(response,
				[]any{"AuthorisationIdentification"},
				[]any{"MandateIdentification"},
				[]any{"Id"},
			)
		},
		ErrorCode: func(response any, action string) string {
			if success(response, action) {
				return ""
			}
			return core.FirstString(response, []any{"Code"}, []any{"Errors", 0, "ErrorCode"})
		},
	}
}

func success(response any, _ string) bool {
	return !core.Present(response, "error") && !core.Present(response, "Errors")
}

func Scrubber() *redact.Scrubber {
	return redact.New(
		redact.Header(HeaderClientID),
		redact.Header(HeaderClientSecret),
	)
}

var (
	_ core.Authorizer = (*Gateway)(nil)
	_ core.Voider     = (*Gateway)(nil)
	_ core.Verifier   = (*Gateway)(nil)
)
