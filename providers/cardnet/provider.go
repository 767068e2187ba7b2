// Package cardnet adapts the CardNet (Dominican Republic) card API. A purchase
// first requests an idempotency key and then posts the sale under that key.
package cardnet

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers"
	"github.com/goliatone/go-gateways/redact"
)

const (
	ProviderID = "cardnet"
	TestURL    = "https://lab.cardnet.com.do/api/payment"
	LiveURL    = "https://ecommerce.cardnet.com.do/api/payment"

	PathIdempotencyKeys = "/idenpotency-keys"
	PathSales           = "/transactions/sales"
	PathVoids           = "/transactions/voids"

	defaultEnvironment = "ECommerce"
)

type Config struct {
	MerchantID string `koanf:"merchant_id" validate:"required"`
	TerminalID string `koanf:"terminal_id" validate:"required"`
	// Currency is the ISO numeric code CardNet expects, e.g. 214 for DOP.
	Currency string `koanf:"currency" validate:"required"`
	TestMode bool   `koanf:"test_mode"`
	TestURL  string `koanf:"test_url" validate:"omitempty,url"`
	LiveURL  string `koanf:"live_url" validate:"omitempty,url"`

	Transport core.TransportAdapter `koanf:"-"`
}

func DefaultConfig() Config {
	return Config{
		Currency: "214",
		TestURL:  TestURL,
		LiveURL:  LiveURL,
	}
}

type Gateway struct {
	*providers.Gateway
	cfg Config
}

func New(cfg Config) (*Gateway, error) {
	defaults := DefaultConfig()
	cfg.TestURL = providers.FirstNonEmpty(cfg.TestURL, defaults.TestURL)
	cfg.LiveURL = providers.FirstNonEmpty(cfg.LiveURL, defaults.LiveURL)
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
			"Content-Type": "application/json",
		},
	})
	if err != nil {
		return nil, err
	}
	return &Gateway{Gateway: base, cfg: cfg}, nil
}

func (g *Gateway) baseURL() string {
	if g.cfg.TestMode {
		return g.cfg.TestURL
	}
	return g.cfg.LiveURL
}

// Purchase requests an idempotency key and captures the sale under it.
func (g *Gateway) Purchase(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return core.RunChain(ctx, core.PolicyDefault,
		g.Step("authorize", func(string) (providers.Call, error) {
			return g.keyCall(), nil
		}),
		g.Step("capture", func(previous string) (providers.Call, error) {
			req.Authorization = previous
			return g.saleCall(req)
		}),
	)
}

// Authorize only reserves an idempotency key; no funds are held.
func (g *Gateway) Authorize(ctx context.Context, _ core.PaymentRequest) (core.ChainResult, error) {
	return g.Single(ctx, "authorize", g.keyCall())
}

// Capture posts a sale under the idempotency key in req.Authorization.
func (g *Gateway) Capture(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	call, err := g.saleCall(req)
	if err != nil {
		return core.ChainResult{}, err
	}
	return g.Single(ctx, "capture", call)
}

// Void cancels the sale whose pnRef is req.Authorization.
func (g *Gateway) Void(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	post := map[string]any{"pnRef": req.Authorization}
	g.addReferences(post, req, req.Option("idempotency_key"))
	addCustomerData(post, req)
	g.addInvoice(post, req)
	body, err := providers.JSONBody(post)
	if err != nil {
		return core.ChainResult{}, err
	}
	return g.Single(ctx, "void", providers.Call{
		Action: PathVoids,
		Method: http.MethodPost,
		URL:    g.baseURL() + PathVoids,
		Body:   body,
	})
}

func (g *Gateway) keyCall() providers.Call {
	return providers.Call{
		Action: PathIdempotencyKeys,
		Method: http.MethodPost,
		URL:    g.baseURL() + PathIdempotencyKeys,
		Body:   []byte("{}"),
	}
}

func (g *Gateway) saleCall(req core.PaymentRequest) (providers.Call, error) {
	card, err := providers.RequireCard(ProviderID, req)
	if err != nil {
		return providers.Call{}, err
	}
	post := map[string]any{}
	g.addInvoice(post, req)
	post["card-number"] = card.Number
	post["cvv"] = card.VerificationValue
	post["expiration-date"] = card.ExpiryMMYY("/")
	addCustomerData(post, req)
	g.addReferences(post, req, req.Authorization)
	body, err := providers.JSONBody(post)
	if err != nil {
		return providers.Call{}, err
	}
	return providers.Call{
		Action: PathSales,
		Method: http.MethodPost,
		URL:    g.baseURL() + PathSales,
		Body:   body,
	}, nil
}

func (g *Gateway) addInvoice(post map[string]any, req core.PaymentRequest) {
	post["tax"] = intOption(req, "tax")
	post["tip"] = intOption(req, "tip")
	post["amount"] = req.Money.Cents()
	post["currency"] = providers.FirstNonEmpty(g.cfg.Currency, req.Money.Currency)
	if invoice := providers.FirstNonEmpty(req.Option("invoice"), req.OrderID); invoice != "" {
		post["invoice-number"] = invoice
	}
	if pstr43 := req.Option("pstr43"); pstr43 != "" {
		post["pstr43"] = pstr43
	}
}

func (g *Gateway) addReferences(post map[string]any, req core.PaymentRequest, idempotencyKey string) {
	post["merchant-id"] = g.cfg.MerchantID
	post["terminal-id"] = g.cfg.TerminalID
	post["idempotency-key"] = idempotencyKey
	post["token"] = providers.FirstNonEmpty(req.Option("token"), req.Source.Token)
	if reference := req.Option("reference"); reference != "" {
		post["reference-number"] = reference
	}
}

func addCustomerData(post map[string]any, req core.PaymentRequest) {
	post["client-ip"] = req.Customer.IP
	post["environment"] = providers.FirstNonEmpty(req.Option("environment"), defaultEnvironment)
}

func intOption(req core.PaymentRequest, key string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(req.Option(key)), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// Strategy reads CardNet replies. The idempotency key endpoint answers with a
// plain "ikey:<key>" line, which the fallback parser turns into a mapping.
func Strategy() core.Strategy {
	return core.Strategy{
		ProviderID: ProviderID,
		Success:    success,
		Message: func(response any, action string) string {
			if action == PathIdempotencyKeys {
				return core.String(response)
			}
			if joined := joinedErrors(response); joined != "" {
				return joined
			}
			return core.String(response, "response-code-desc")
		},
		Authorization: func(response any, _ string) string {
			return core.FirstString(response,
				[]any{"ikey"},
				[]any{"approval-code"},
				[]any{"idempotency-key"},
			)
		},
		ErrorCode: func(response any, _ string) string {
			return providers.FirstNonEmpty(core.String(response, "internal-response-code"), joinedErrors(response))
		},
	}
}

func success(response any, action string) bool {
	if action == PathIdempotencyKeys {
		values, ok := response.(map[string]any)
		return ok && len(values) > 0
	}
	return core.String(response, "response-code") == "00"
}

func joinedErrors(response any) string {
	return core.JoinFieldErrors(core.Slice(response, "errors"), core.FieldErrorPair{Field: "field", Message: "message"}, "")
}

func Scrubber() *redact.Scrubber {
	return redact.New(
		redact.JSONDigits("card-number"),
		redact.JSONDigits("terminal-id"),
		redact.JSONDigits("merchant-id"),
		redact.JSONDigits("cvv"),
	)
}

var (
	_ core.Purchaser  = (*Gateway)(nil)
	_ core.Authorizer = (*Gateway)(nil)
	_ core.Capturer   = (*Gateway)(nil)
	_ core.Voider     = (*Gateway)(nil)
)
