// Package stripeintents adapts the Stripe Payment Intents API. Cards are first
// turned into payment methods, then charged through a confirmed intent.
package stripeintents

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-gateways/auth"
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers"
	"github.com/goliatone/go-gateways/redact"
)

const (
	ProviderID        = "stripeintents"
	BaseURL           = "https://api.stripe.com/v1"
	DefaultAPIVersion = "2019-05-16"

	ActionCreatePaymentMethod = "payment_methods"
	ActionAttachPaymentMethod = "payment_methods/attach"
	ActionCreateIntent        = "payment_intents"
	ActionShowIntent          = "payment_intents/show"
	ActionCaptureIntent       = "payment_intents/capture"
	ActionCancelIntent        = "payment_intents/cancel"
	ActionCreateCustomer      = "customers"
	ActionRefund              = "refunds"

	CaptureAutomatic = "automatic"
	CaptureManual    = "manual"

	statusSucceeded = "succeeded"
)

var cancellationReasons = map[string]bool{
	"duplicate":             true,
	"fraudulent":            true,
	"requested_by_customer": true,
	"abandoned":             true,
}

// errorCodes maps Stripe error and decline codes to gateway error codes.
var errorCodes = map[string]string{
	"incorrect_number":     "incorrect_number",
	"invalid_number":       "invalid_number",
	"invalid_expiry_month": "invalid_expiry_date",
	"invalid_expiry_year":  "invalid_expiry_date",
	"invalid_cvc":          "invalid_cvc",
	"expired_card":         "expired_card",
	"incorrect_cvc":        "incorrect_cvc",
	"incorrect_zip":        "incorrect_zip",
	"card_declined":        "card_declined",
	"call_issuer":          "call_issuer",
	"processing_error":     "processing_error",
	"incorrect_pin":        "incorrect_pin",
	"test_mode_live_card":  "card_declined",
	"pickup_card":          "pickup_card",
}

type Config struct {
	SecretKey  string `koanf:"secret_key" validate:"required"`
	APIVersion string `koanf:"api_version"`
	// TestMode is implied by sk_test_ keys.
	TestMode bool   `koanf:"test_mode"`
	BaseURL  string `koanf:"base_url" validate:"omitempty,url"`

	Transport core.TransportAdapter `koanf:"-"`
}

type Gateway struct {
	*providers.Gateway
	cfg    Config
	signer *auth.BasicSigner
}

func New(cfg Config) (*Gateway, error) {
	cfg.BaseURL = providers.FirstNonEmpty(cfg.BaseURL, BaseURL)
	cfg.APIVersion = providers.FirstNonEmpty(cfg.APIVersion, DefaultAPIVersion)
	if err := core.ValidateProviderConfig(ProviderID, cfg); err != nil {
		return nil, err
	}
	cfg.TestMode = cfg.TestMode || strings.HasPrefix(cfg.SecretKey, "sk_test_")
	base, err := providers.NewGateway(providers.GatewayConfig{
		ID:        ProviderID,
		TestMode:  cfg.TestMode,
		Transport: cfg.Transport,
		Strategy:  Strategy(),
		Scrubber:  Scrubber(),
		Headers: map[string]string{
			"Content-Type":   "application/x-www-form-urlencoded",
			"Stripe-Version": cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Gateway{
		Gateway: base,
		cfg:     cfg,
		signer: auth.NewBasicSigner(auth.BasicSignerConfig{
			Username:           cfg.SecretKey,
			AllowEmptyPassword: true,
		}),
	}, nil
}

// Purchase creates and confirms an intent captured automatically.
func (g *Gateway) Purchase(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return g.createIntent(ctx, req, CaptureAutomatic)
}

// Authorize creates and confirms an intent held for manual capture.
func (g *Gateway) Authorize(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return g.createIntent(ctx, req, CaptureManual)
}

func (g *Gateway) createIntent(ctx context.Context, req core.PaymentRequest, captureMethod string) (core.ChainResult, error) {
	var steps []core.Step
	if req.Source.Card != nil {
		steps = append(steps, g.paymentMethodStep(req))
	}
	steps = append(steps, g.Step("create_intent", func(previous string) (providers.Call, error) {
		form := url.Values{}
		form.Set("amount", strconv.FormatInt(req.Money.Cents(), 10))
		form.Set("currency", strings.ToLower(req.Money.Currency))
		form.Set("capture_method", captureMethod)
		form.Set("confirm", "true")
		if customer := req.Customer.ID; strings.HasPrefix(customer, "cus_") {
			form.Set("customer", customer)
		}
		paymentMethod := previous
		if req.Source.Card == nil {
			paymentMethod = splitToken(form, req.Source.Token)
		}
		if paymentMethod == "" {
			return providers.Call{}, fmt.Errorf("%w: %s requires a card or a payment method", core.ErrInvalidPaymentSource, ProviderID)
		}
		form.Set("payment_method", paymentMethod)
		if req.Description != "" {
			form.Set("description", req.Description)
		}
		if email := req.Customer.Email; email != "" {
			form.Set("receipt_email", email)
		}
		for _, key := range []string{"statement_descriptor", "return_url", "setup_future_usage", "off_session"} {
			if value := req.Option(key); value != "" {
				form.Set(key, value)
			}
		}
		if req.OrderID != "" {
			form.Set("metadata[order_id]", req.OrderID)
		}
		return g.formCall(ActionCreateIntent, http.MethodPost, "payment_intents", form, req.IdempotencyKey), nil
	}))
	return core.RunChain(ctx, core.PolicyDefault, steps...)
}

// Capture captures a manual intent, up to req.Money when set.
func (g *Gateway) Capture(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	form := url.Values{}
	if !req.Money.IsZero() {
		form.Set("amount_to_capture", strconv.FormatInt(req.Money.Cents(), 10))
	}
	if fee := req.Option("application_fee"); fee != "" {
		form.Set("application_fee_amount", fee)
	}
	return g.Single(ctx, "capture", g.formCall(ActionCaptureIntent, http.MethodPost, "payment_intents/"+url.PathEscape(req.Authorization)+"/capture", form, req.IdempotencyKey))
}

// Void cancels an intent. Unknown cancellation reasons are not sent.
func (g *Gateway) Void(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	form := url.Values{}
	if reason := req.Option("cancellation_reason"); cancellationReasons[reason] {
		form.Set("cancellation_reason", reason)
	}
	return g.Single(ctx, "void", g.formCall(ActionCancelIntent, http.MethodPost, "payment_intents/"+url.PathEscape(req.Authorization)+"/cancel", form, req.IdempotencyKey))
}

// Refund looks up the intent and refunds its first charge.
func (g *Gateway) Refund(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return core.RunChain(ctx, core.PolicyDefault,
		g.Step("show_intent", func(string) (providers.Call, error) {
			return g.formCall(ActionShowIntent, http.MethodGet, "payment_intents/"+url.PathEscape(req.Authorization), nil, ""), nil
		}),
		g.Step("refund", func(charge string) (providers.Call, error) {
			if charge == "" {
				return providers.Call{}, fmt.Errorf("stripeintents: intent %s has no charge to refund", req.Authorization)
			}
			form := url.Values{}
			form.Set("charge", charge)
			if !req.Money.IsZero() {
				form.Set("amount", strconv.FormatInt(req.Money.Cents(), 10))
			}
			if reason := req.Option("reason"); reason != "" {
				form.Set("reason", reason)
			}
			return g.formCall(ActionRefund, http.MethodPost, "refunds", form, req.IdempotencyKey), nil
		}),
	)
}

// Store saves a card or payment method on a customer. A customer is created
// unless the customer option names one. The authorization is "customer|method".
func (g *Gateway) Store(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	var paymentMethod string
	var steps []core.Step
	if req.Source.Card != nil {
		steps = append(steps, g.paymentMethodStep(req))
	} else {
		paymentMethod = req.Source.Token
		if _, id, found := strings.Cut(paymentMethod, "|"); found {
			paymentMethod = id
		}
	}
	customerID := req.Option("customer")
	if customerID == "" {
		steps = append(steps, g.Step("create_customer", func(previous string) (providers.Call, error) {
			if paymentMethod == "" {
				paymentMethod = previous
			}
			form := url.Values{}
			if req.Description != "" {
				form.Set("description", req.Description)
			}
			if email := req.Customer.Email; email != "" {
				form.Set("email", email)
			}
			return g.formCall(ActionCreateCustomer, http.MethodPost, "customers", form, req.IdempotencyKey), nil
		}))
	}
	steps = append(steps, g.Step("attach", func(previous string) (providers.Call, error) {
		customer := customerID
		if customer == "" {
			customer, _, _ = strings.Cut(previous, "|")
		} else if paymentMethod == "" {
			paymentMethod = previous
		}
		if paymentMethod == "" || customer == "" {
			return providers.Call{}, fmt.Errorf("%w: %s store requires a payment method and a customer", core.ErrInvalidPaymentSource, ProviderID)
		}
		form := url.Values{}
		form.Set("customer", customer)
		return g.formCall(ActionAttachPaymentMethod, http.MethodPost, "payment_methods/"+url.PathEscape(paymentMethod)+"/attach", form, ""), nil
	}))
	return core.RunChain(ctx, core.PolicyDefault, steps...)
}

func (g *Gateway) paymentMethodStep(req core.PaymentRequest) core.Step {
	return g.Step("create_payment_method", func(string) (providers.Call, error) {
		card := req.Source.Card
		form := url.Values{}
		form.Set("type", "card")
		form.Set("card[number]", card.Number)
		form.Set("card[exp_month]", strconv.Itoa(card.Month))
		form.Set("card[exp_year]", strconv.Itoa(card.Year))
		if card.VerificationValue != "" {
			form.Set("card[cvc]", card.VerificationValue)
		}
		addBillingDetails(form, req)
		return g.formCall(ActionCreatePaymentMethod, http.MethodPost, "payment_methods", form, ""), nil
	})
}

func (g *Gateway) formCall(action string, method string, path string, form url.Values, idempotency string) providers.Call {
	var body []byte
	if len(form) > 0 {
		body = []byte(form.Encode())
	}
	return providers.Call{
		Action:      action,
		Method:      method,
		URL:         providers.URL(g.cfg.BaseURL, path),
		Body:        body,
		Signer:      g.signer,
		Idempotency: idempotency,
	}
}

// splitToken accepts "pm_x" or "cus_x|pm_x" and sets the customer for the
// latter.
func splitToken(form url.Values, token string) string {
	customer, paymentMethod, found := strings.Cut(strings.TrimSpace(token), "|")
	if !found {
		return customer
	}
	if customer != "" {
		form.Set("customer", customer)
	}
	return paymentMethod
}

func addBillingDetails(form url.Values, req core.PaymentRequest) {
	address := req.BillingAddress
	for key, value := range map[string]string{
		"billing_details[address][city]":        address.City,
		"billing_details[address][country]":     address.Country,
		"billing_details[address][line1]":       address.Address1,
		"billing_details[address][line2]":       address.Address2,
		"billing_details[address][postal_code]": address.Zip,
		"billing_details[address][state]":       address.State,
		"billing_details[email]":                req.Customer.Email,
		"billing_details[name]":                 address.Name,
		"billing_details[phone]":                address.Phone,
	} {
		if value != "" {
			form.Set(key, value)
		}
	}
}

func Strategy() core.Strategy {
	return core.Strategy{
		ProviderID: ProviderID,
		Success: func(response any, _ string) bool {
			return paymentError(response) == nil && !requiresAction(response)
		},
		Message: func(response any, _ string) string {
			failure := paymentError(response)
			switch {
			case failure == nil && !requiresAction(response):
				return "Transaction approved"
			case failure != nil:
				return core.String(failure, "message")
			}
			return humanize(core.String(response, "status"))
		},
		Authorization: func(response any, action string) string {
			if failure := paymentError(response); failure != nil {
				return core.String(failure, "charge")
			}
			switch action {
			case ActionCreateCustomer:
				return core.String(response, "id") + "|" + core.String(response, "sources", "data", 0, "id")
			case ActionAttachPaymentMethod:
				return core.String(response, "customer") + "|" + core.String(response, "id")
			case ActionShowIntent:
				// the refund step reads the charge from here
				return core.FirstString(response, []any{"charges", "data", 0, "id"}, []any{"latest_charge"})
			}
			return core.String(response, "id")
		},
		ErrorCode: func(response any, _ string) string {
			failure := paymentError(response)
			if failure == nil {
				return ""
			}
			code := core.String(failure, "code")
			if code == "card_declined" {
				if mapped, ok := errorCodes[core.String(failure, "decline_code")]; ok {
					return mapped
				}
			}
			return errorCodes[code]
		},
	}
}

func paymentError(response any) map[string]any {
	if failure := core.Mapping(response, "error"); failure != nil {
		return failure
	}
	return core.Mapping(response, "last_payment_error")
}

// requiresAction flags automatic captures that have not succeeded yet, e.g.
// pending 3DS. Manual captures may legitimately wait.
func requiresAction(response any) bool {
	status := core.String(response, "status")
	return status != statusSucceeded && core.String(response, "capture_method") == CaptureAutomatic
}

// humanize turns "requires_payment_method" into "Requires Payment Method".
func humanize(status string) string {
	parts := strings.Split(status, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, " ")
}

func Scrubber() *redact.Scrubber {
	return redact.New(
		redact.Basic(),
		redact.FormField("card[number]"),
		redact.FormField("card[cvc]"),
		redact.FormField("card%5Bnumber%5D"),
		redact.FormField("card%5Bcvc%5D"),
	)
}

var (
	_ core.Purchaser  = (*Gateway)(nil)
	_ core.Authorizer = (*Gateway)(nil)
	_ core.Capturer   = (*Gateway)(nil)
	_ core.Voider     = (*Gateway)(nil)
	_ core.Refunder   = (*Gateway)(nil)
	_ core.Storer     = (*Gateway)(nil)
)
