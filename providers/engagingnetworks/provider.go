// Package engagingnetworks adapts the Engaging Networks donation pages. It acts
// more like a CRM than a gateway: each donation carries the supporter record,
// survey answers and campaign codes alongside the payment.
package engagingnetworks

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/goliatone/go-gateways/auth"
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers"
	"github.com/goliatone/go-gateways/redact"
)

const (
	ProviderID      = "engagingnetworks"
	BaseURL         = "https://e-activist.com"
	DefaultCurrency = "USD"

	PathAuthenticate = "/ens/service/authenticate"

	ActionAuth = "auth"
	ActionSale = "sale"

	HeaderAuthToken = "ens-auth-token"

	birthdayLayout = "2006-01-02"
)

var cardBrands = map[string]string{
	"visa":             "VI",
	"master":           "MC",
	"american_express": "AX",
	"discover":         "DI",
	"diners_club":      "DC",
	"jcb":              "JC",
}

// Questions are the survey fields configured on the CRM side. Answers are read
// from request options keyed by the snake_case form of the label, e.g.
// "get_involved_membership".
var Questions = []string{
	"Stay Informed - Nature News",
	"Get Involved - Advocacy",
	"Get Involved - Events",
	"Get Involved - Membership",
	"Get Involved - Volunteer",
	"Mobile Text Opt In",
	"Mobile Call Opt In",
	"Home Phone Opt In",
	"F2F-How do you identify",
	"F2F-How was your experience",
	"Tip Jar",
}

var nonWord = regexp.MustCompile(`\W+`)

// QuestionKey returns the option key answering a question label.
func QuestionKey(label string) string {
	return strings.ToLower(nonWord.ReplaceAllString(label, "_"))
}

type Config struct {
	APIKey   string `koanf:"api_key" validate:"required"`
	PageID   string `koanf:"page_id"`
	TestMode bool   `koanf:"test_mode"`
	BaseURL  string `koanf:"base_url" validate:"omitempty,url"`

	Transport core.TransportAdapter `koanf:"-"`
	// Now stamps placeholder emails.
	Now func() time.Time `koanf:"-"`
}

type Gateway struct {
	*providers.Gateway
	cfg Config
}

func New(cfg Config) (*Gateway, error) {
	cfg.BaseURL = providers.FirstNonEmpty(cfg.BaseURL, BaseURL)
	if cfg.Now == nil {
		cfg.Now = time.Now
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
			"content-type":    "application/json",
			"Accept-Encoding": "identity",
		},
	})
	if err != nil {
		return nil, err
	}
	return &Gateway{Gateway: base, cfg: cfg}, nil
}

// Purchase authenticates with the api key and posts the donation to the page.
// A recurrfreq option marks the donation as recurring.
func (g *Gateway) Purchase(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	pageID := providers.FirstNonEmpty(req.Option("page_id"), g.cfg.PageID)
	if pageID == "" {
		return core.ChainResult{}, fmt.Errorf("engagingnetworks: page_id is required")
	}
	return core.RunChain(ctx, core.PolicyDefault,
		g.Step("authenticate", func(string) (providers.Call, error) {
			return providers.Call{
				Action: ActionAuth,
				Method: http.MethodPost,
				URL:    g.cfg.BaseURL + PathAuthenticate,
				Body:   []byte(g.cfg.APIKey),
			}, nil
		}),
		g.Step("sale", func(token string) (providers.Call, error) {
			post, err := g.salePayload(req)
			if err != nil {
				return providers.Call{}, err
			}
			body, err := providers.JSONBody(post)
			if err != nil {
				return providers.Call{}, err
			}
			return providers.Call{
				Action: ActionSale,
				Method: http.MethodPost,
				URL:    g.cfg.BaseURL + "/ens/service/page/" + pageID + "/process",
				Body:   body,
				Signer: auth.NewHeaderSigner(map[string]string{HeaderAuthToken: token}),
			}, nil
		}),
	)
}

func (g *Gateway) salePayload(req core.PaymentRequest) (map[string]any, error) {
	transaction, err := paymentDetails(req)
	if err != nil {
		return nil, err
	}
	post := map[string]any{
		"supporter":   g.supporter(req),
		"transaction": transaction,
		"appealCode":  nullable(req.Option("appealcode")),
		"txn7":        nullable(req.Option("txn7")),
	}
	if g.cfg.TestMode {
		post["demo"] = true
	}
	return post, nil
}

func (g *Gateway) supporter(req core.PaymentRequest) map[string]any {
	customer := req.Customer
	supporter := map[string]any{
		"Email Address": g.email(req),
		"First Name":    nullable(customer.FirstName),
		"Last Name":     nullable(customer.LastName),
		"Mobile Phone":  nullable(customer.Mobile),
		"Home Phone":    nullable(customer.Phone),
		"questions":     questions(req),
	}
	if customer.Birthday != nil && !customer.Birthday.IsZero() {
		supporter["Birthday yyyy mm dd"] = customer.Birthday.Format(birthdayLayout)
	} else {
		supporter["Birthday yyyy mm dd"] = nil
	}
	address := req.BillingAddress
	for field, value := range map[string]string{
		"Address 1":          address.Address1,
		"Address 2":          address.Address2,
		"City":               address.City,
		"State or Province":  address.State,
		"ZIP or Postal Code": address.Zip,
		"Country":            address.Country,
	} {
		if strings.TrimSpace(value) != "" {
			supporter[field] = value
		}
	}
	return supporter
}

// email falls back to a placeholder of the form <unix>@fakeemail<label>.com.
func (g *Gateway) email(req core.PaymentRequest) string {
	if email := strings.TrimSpace(req.Customer.Email); email != "" {
		return email
	}
	return fmt.Sprintf("%d@fakeemail%s.com", g.cfg.Now().Unix(), req.Option("email_label"))
}

func questions(req core.PaymentRequest) map[string]any {
	out := map[string]any{}
	for _, label := range Questions {
		if value, ok := req.Options[QuestionKey(label)]; ok && value != nil {
			out[label] = value
		}
	}
	return out
}

func paymentDetails(req core.PaymentRequest) (map[string]any, error) {
	frequency := req.Option("recurrfreq")
	recurring := "N"
	if frequency != "" {
		recurring = "Y"
	}
	txn := map[string]string{
		"donationAmt": req.Money.Major(),
		"recurrpay":   recurring,
		"recurrfreq":  frequency,
	}
	switch {
	case req.Source.Bank != nil:
		bank := req.Source.Bank
		txn["paymenttype"] = "Check"
		txn["bankaccnum"] = bank.AccountNumber
		txn["bankrtenum"] = bank.RoutingNumber
		txn["bankacctype"] = string(bank.AccountType)
	case req.Source.Card != nil:
		card := req.Source.Card
		txn["paymenttype"] = cardBrands[strings.ToLower(strings.TrimSpace(card.Brand))]
		txn["ccnumber"] = card.Number
		txn["ccvv"] = card.VerificationValue
		txn["ccexpire"] = card.ExpiryMMYY("")
	default:
		return nil, fmt.Errorf("%w: %s requires a card or a bank account", core.ErrInvalidPaymentSource, ProviderID)
	}

	out := make(map[string]any, len(txn))
	for key, value := range txn {
		if strings.TrimSpace(value) != "" {
			out[key] = value
		}
	}
	return out, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func Strategy() core.Strategy {
	return core.Strategy{
		ProviderID: ProviderID,
		Success:    success,
		Message: func(response any, action string) string {
			if action == ActionAuth {
				return core.String(response, HeaderAuthToken)
			}
			if !success(response, action) {
				return core.String(response, "error")
			}
			return core.String(response, "status") + "|" + core.String(response, "type")
		},
		Authorization: func(response any, action string) string {
			if action == ActionAuth {
				return core.String(response, HeaderAuthToken)
			}
			return core.String(response, "transactionId")
		},
		ErrorCode: func(response any, action string) string {
			if success(response, action) {
				return ""
			}
			return core.String(response, "error")
		},
		StatusOverrides: core.InvalidCredentialsOverride(),
	}
}

func success(response any, action string) bool {
	if action == ActionAuth {
		return core.Present(response, HeaderAuthToken)
	}
	return core.String(response, "status") == "SUCCESS"
}

// Scrubber removes the api key and session tokens, which are UUIDs, and the
// payment details.
func Scrubber() *redact.Scrubber {
	return redact.New(
		redact.UUID(),
		redact.Header(HeaderAuthToken),
		redact.JSONField("ccnumber"),
		redact.JSONDigits("ccvv"),
		redact.JSONDigits("bankaccnum"),
		redact.JSONDigits("bankrtenum"),
	)
}

var _ core.Purchaser = (*Gateway)(nil)
