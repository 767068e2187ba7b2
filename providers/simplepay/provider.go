// Package simplepay starts OTP SimplePay (Hungary) hosted card payments. The
// request body is signed with HMAC-SHA384 under the merchant secret and the
// reply carries the payment page the customer is redirected to.
package simplepay

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-gateways/auth"
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers"
	"github.com/goliatone/go-gateways/redact"
)

const (
	ProviderID = "simplepay"
	TestURL    = "https://sandbox.simplepay.hu/payment"
	LiveURL    = "https://secure.simplepay.hu/payment"

	ActionStart = "v2/start"

	SDKVersion      = "go-gateways:1.0"
	SignatureHeader = "Signature"

	defaultLanguage = "HU"
	defaultTimeout  = 30 * time.Minute
)

type Config struct {
	Merchant  string `koanf:"merchant" validate:"required"`
	SecretKey string `koanf:"secret_key" validate:"required"`
	TestMode  bool   `koanf:"test_mode"`
	TestURL   string `koanf:"test_url" validate:"omitempty,url"`
	LiveURL   string `koanf:"live_url" validate:"omitempty,url"`
	// ReturnURL receives the customer after the hosted page.
	ReturnURL string `koanf:"return_url" validate:"omitempty,url"`
	// PaymentTimeout bounds how long the hosted page stays valid.
	PaymentTimeout time.Duration `koanf:"payment_timeout"`

	Transport core.TransportAdapter `koanf:"-"`
	Now       func() time.Time      `koanf:"-"`
	Salt      func() string         `koanf:"-"`
}

type Gateway struct {
	*providers.Gateway
	cfg    Config
	signer *auth.HMACSigner
}

func New(cfg Config) (*Gateway, error) {
	cfg.TestURL = providers.FirstNonEmpty(cfg.TestURL, TestURL)
	cfg.LiveURL = providers.FirstNonEmpty(cfg.LiveURL, LiveURL)
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = defaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Salt == nil {
		cfg.Salt = newSalt
	}
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
			"Accept":       "application/json",
			"Content-Type": "application/json;charset=utf-8",
		},
	})
	if err != nil {
		return nil, err
	}
	return &Gateway{
		Gateway: base,
		cfg:     cfg,
		signer: auth.NewHMACSigner(auth.HMACSignerConfig{
			Secret:          cfg.SecretKey,
			Algorithm:       auth.HMACSHA384,
			SignatureHeader: SignatureHeader,
			Encoding:        auth.HMACBase64,
			BodyOnly:        true,
		}),
	}, nil
}

func (g *Gateway) baseURL() string {
	if g.cfg.TestMode {
		return g.cfg.TestURL
	}
	return g.cfg.LiveURL
}

// Purchase starts a hosted card payment. The outcome message is the payment
// page URL and the authorization is the SimplePay transaction id.
func (g *Gateway) Purchase(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	body, err := providers.JSONBody(g.startPayload(req))
	if err != nil {
		return core.ChainResult{}, err
	}
	return g.Single(ctx, "purchase", providers.Call{
		Action: ActionStart,
		Method: http.MethodPost,
		URL:    providers.URL(g.baseURL(), ActionStart),
		Body:   body,
		Signer: g.signer,
	})
}

func (g *Gateway) startPayload(req core.PaymentRequest) map[string]any {
	money := req.Money.WithDefaultCurrency("HUF")
	return map[string]any{
		"salt":          g.cfg.Salt(),
		"merchant":      g.cfg.Merchant,
		"orderRef":      req.OrderID,
		"currency":      money.Currency,
		"customerEmail": req.Customer.Email,
		"language":      strings.ToUpper(providers.FirstNonEmpty(req.Option("language"), defaultLanguage)),
		"sdkVersion":    SDKVersion,
		"methods":       []string{"CARD"},
		"total":         money.Major(),
		"timeout":       g.cfg.Now().Add(g.cfg.PaymentTimeout).UTC().Format(time.RFC3339),
		"url":           providers.FirstNonEmpty(req.Option("return_url"), g.cfg.ReturnURL),
		"invoice":       invoice(req),
	}
}

func invoice(req core.PaymentRequest) map[string]any {
	address := req.BillingAddress
	name := providers.FirstNonEmpty(address.Name, strings.TrimSpace(req.Customer.FirstName+" "+req.Customer.LastName))
	return map[string]any{
		"name":     name,
		"company":  req.Option("company"),
		"country":  strings.ToLower(address.Country),
		"state":    address.State,
		"city":     address.City,
		"zip":      address.Zip,
		"address":  address.Address1,
		"address2": address.Address2,
		"phone":    providers.FirstNonEmpty(address.Phone, req.Customer.Phone),
	}
}

func newSalt() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Strategy reads /v2/start replies. A rejected start lists numeric codes in
// errorCodes and carries no transaction id.
func Strategy() core.Strategy {
	return core.Strategy{
		ProviderID: ProviderID,
		Success: func(response any, _ string) bool {
			return len(core.Slice(response, "errorCodes")) == 0 && core.Present(response, "transactionId")
		},
		Message: func(response any, _ string) string {
			if codes := errorCodes(response); codes != "" {
				return "SimplePay error " + codes
			}
			return core.String(response, "paymentUrl")
		},
		Authorization: func(response any, _ string) string {
			return core.String(response, "transactionId")
		},
		ErrorCode: func(response any, _ string) string {
			return errorCodes(response)
		},
		StatusOverrides: core.InvalidCredentialsOverride(),
	}
}

func errorCodes(response any) string {
	codes := core.Slice(response, "errorCodes")
	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		if text := core.String(code); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ",")
}

func Scrubber() *redact.Scrubber {
	return redact.New(
		redact.Header(SignatureHeader),
		redact.JSONField("customerEmail"),
	)
}

var _ core.Purchaser = (*Gateway)(nil)
