// Package epayco adapts the ePayco (Colombia) API. Every call logs in first with
// the merchant key pair and then sends the operation with the returned bearer
// token.
package epayco

import (
	"context"
	"net/http"
	"strconv"

	"github.com/goliatone/go-gateways/auth"
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers"
	"github.com/goliatone/go-gateways/redact"
)

const (
	ProviderID      = "epayco"
	BaseURL         = "https://apify.epayco.co"
	DefaultCurrency = "COP"

	PathLogin           = "/login"
	PathProcess         = "/payment/process"
	PathProcessPSE      = "/payment/process/pse"
	PathBanks           = "/payment/pse/banks"
	PathBankTransaction = "/payment/pse/transaction"

	defaultMethodConfirmation = "GET"
)

// BankEndpoints answer with a top level success flag instead of a transaction
// state.
var BankEndpoints = []string{PathBanks, PathProcessPSE, PathBankTransaction}

type Config struct {
	PublicKey  string `koanf:"public_key" validate:"required"`
	PrivateKey string `koanf:"private_key" validate:"required"`
	TestMode   bool   `koanf:"test_mode"`
	BaseURL    string `koanf:"base_url" validate:"omitempty,url"`

	Transport core.TransportAdapter `koanf:"-"`
}

type Gateway struct {
	*providers.Gateway
	cfg   Config
	basic *auth.BasicSigner
}

func New(cfg Config) (*Gateway, error) {
	cfg.BaseURL = providers.FirstNonEmpty(cfg.BaseURL, BaseURL)
	if err := core.ValidateProviderConfig(ProviderID, cfg); err != nil {
		return nil, err
	}
	base, err := providers.NewGateway(providers.GatewayConfig{
		ID:        ProviderID,
		TestMode:  cfg.TestMode,
		Transport: cfg.Transport,
		Strategy:  Strategy(),
		Scrubber:  Scrubber(),
		Headers:   map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		return nil, err
	}
	return &Gateway{
		Gateway: base,
		cfg:     cfg,
		basic:   auth.NewBasicSigner(auth.BasicSignerConfig{Username: cfg.PublicKey, Password: cfg.PrivateKey}),
	}, nil
}

// Purchase charges a card, a PSE bank transfer or a stored card token.
func (g *Gateway) Purchase(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	post := map[string]any{}
	addInvoice(post, req)
	addPayment(post, req)
	post["address"] = nullable(req.BillingAddress.Address1)
	addCustomerData(post, req)
	if url := req.Option("url_response"); url != "" {
		post["urlResponse"] = url
	}
	addMiscData(post, req)

	path := PathProcessPSE
	if req.Source.Card != nil {
		path = PathProcess
	}
	body, err := providers.JSONBody(post)
	if err != nil {
		return core.ChainResult{}, err
	}
	return g.withToken(ctx, "purchase", http.MethodPost, path, body)
}

// Banks lists the financial institutions available for PSE transfers.
func (g *Gateway) Banks(ctx context.Context) (core.ChainResult, error) {
	return g.withToken(ctx, "banks", http.MethodGet, PathBanks, nil)
}

// BankTransaction reads the state of a PSE transfer by its transaction id.
func (g *Gateway) BankTransaction(ctx context.Context, authorization string) (core.ChainResult, error) {
	body, err := providers.JSONBody(map[string]any{"transactionID": authorization})
	if err != nil {
		return core.ChainResult{}, err
	}
	return g.withToken(ctx, "bank_transaction", http.MethodPost, PathBankTransaction, body)
}

func (g *Gateway) withToken(ctx context.Context, name string, method string, path string, body []byte) (core.ChainResult, error) {
	return core.RunChain(ctx, core.PolicyDefault,
		g.Step("login", func(string) (providers.Call, error) {
			return providers.Call{
				Action: PathLogin,
				Method: http.MethodPost,
				URL:    g.cfg.BaseURL + PathLogin,
				Body:   []byte(" "),
				Signer: g.basic,
			}, nil
		}),
		g.Step(name, func(token string) (providers.Call, error) {
			return providers.Call{
				Action: path,
				Method: method,
				URL:    g.cfg.BaseURL + path,
				Body:   body,
				Signer: auth.NewBearerSigner(token),
			}, nil
		}),
	)
}

func addInvoice(post map[string]any, req core.PaymentRequest) {
	money := req.Money.WithDefaultCurrency(DefaultCurrency)
	post["value"] = money.Major()
	post["currency"] = providers.FirstNonEmpty(req.Option("currency"), money.Currency)
	post["dues"] = providers.FirstNonEmpty(req.Option("dues"), "1")
	setOption(post, "tax", req, "tax")
	setOption(post, "taxBase", req, "tax_base")
	if req.Description != "" {
		post["description"] = req.Description
	}
	setOption(post, "invoice", req, "invoice")
}

func addPayment(post map[string]any, req core.PaymentRequest) {
	switch {
	case req.Source.Card != nil:
		card := req.Source.Card
		post["cardNumber"] = card.Number
		post["cardExpMonth"] = twoDigits(card.Month)
		post["cardExpYear"] = strconv.Itoa(card.Year)
		if card.VerificationValue != "" {
			post["cardCvc"] = card.VerificationValue
		}
	case req.Option("bank_id") != "":
		post["bank"] = req.Option("bank_id")
	case req.Source.Bank != nil && req.Source.Bank.BankCode != "":
		post["bank"] = req.Source.Bank.BankCode
	default:
		post["cardTokenId"] = req.Source.Token
	}
}

func addCustomerData(post map[string]any, req core.PaymentRequest) {
	customer := req.Customer
	post["docType"] = providers.FirstNonEmpty(req.Option("client_id_type"), customer.DocumentType)
	post["docNumber"] = providers.FirstNonEmpty(req.Option("client_id_number"), customer.DocumentNumber)
	post["name"] = customer.FirstName
	post["email"] = customer.Email
	post["cellPhone"] = customer.Mobile
	post["phone"] = customer.Phone
	post["ip"] = customer.IP

	// 0 person, 1 company
	personType := 0
	if value, err := strconv.Atoi(req.Option("person_type")); err == nil {
		personType = value
	}
	post["typePerson"] = personType

	if customer.LastName != "" {
		post["lastName"] = customer.LastName
	}
	if customer.ID != "" {
		post["customerId"] = customer.ID
	}
}

func addMiscData(post map[string]any, req core.PaymentRequest) {
	setOption(post, "urlConfirmation", req, "url_confirmation")
	for i := 1; i <= 10; i++ {
		key := "extra" + strconv.Itoa(i)
		setOption(post, key, req, key)
	}
	post["methodConfimation"] = providers.FirstNonEmpty(req.Option("method_confirmation"), defaultMethodConfirmation)
}

func setOption(post map[string]any, field string, req core.PaymentRequest, option string) {
	if value := req.Option(option); value != "" {
		post[field] = value
	}
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func twoDigits(value int) string {
	if value < 10 {
		return "0" + strconv.Itoa(value)
	}
	return strconv.Itoa(value)
}

func Strategy() core.Strategy {
	return core.Strategy{
		ProviderID: ProviderID,
		Success: func(response any, action string) bool {
			switch {
			case action == PathLogin:
				return core.String(response, "token") != ""
			case isBankEndpoint(action):
				return core.Bool(response, "success")
			}
			state := core.String(transactionData(response), "estado")
			return state == "Aceptada" || state == "Pendiente"
		},
		Message: func(response any, action string) string {
			if action == PathBanks {
				return core.String(response, "textResponse")
			}
			data := transactionData(response)
			return providers.FirstNonEmpty(
				core.String(data, "estado"),
				core.String(data, "respuesta"),
				core.String(response, "titleResponse"),
				core.String(response, "textResponse"),
			)
		},
		Authorization: func(response any, action string) string {
			switch action {
			case PathLogin:
				return core.String(response, "token")
			case PathBanks:
				return ""
			}
			return core.String(transactionData(response), "autorizacion")
		},
		ErrorCode: errorCode,
	}
}

func errorCode(response any, action string) string {
	if action == PathBanks || action == PathLogin {
		return ""
	}
	data := core.Mapping(response, "data")
	switch {
	case core.Bool(data, "transaction", "success"):
		return core.String(data, "transaction", "data", "respuesta")
	case core.String(data, "estado") == "Pendiente":
		return core.String(data, "respuesta")
	}
	items := core.Slice(data, "errors")
	if len(items) == 0 {
		items = core.Slice(data, "error", "errors")
	}
	return core.JoinFieldErrors(items, core.FieldErrorPair{Field: "codError", Message: "errorMessage"}, " ")
}

// transactionData finds the transaction record, which ePayco nests differently
// for card and PSE payments.
func transactionData(response any) any {
	if items := core.Slice(response, "data"); items != nil {
		return items
	}
	if nested, ok := core.Dig(response, "data", "transaction", "data"); ok && nested != nil {
		return nested
	}
	if data, ok := core.Dig(response, "data"); ok {
		return data
	}
	return map[string]any{}
}

func isBankEndpoint(action string) bool {
	for _, endpoint := range BankEndpoints {
		if endpoint == action {
			return true
		}
	}
	return false
}

func Scrubber() *redact.Scrubber {
	return redact.New(
		redact.MustRule(`(Authorization:\s+Basic\s+)[A-Za-z0-9+/]+`, `${1}`+redact.Marker),
		redact.Bearer(),
		redact.MustRule(`(\{\\{0,3}"token\\{0,3}":)[^}\s]+(\})`, `${1}`+redact.Marker+`${2}`),
		redact.JSONDigits("cardNumber"),
		redact.JSONDigits("cardCvc"),
	)
}

var _ core.Purchaser = (*Gateway)(nil)
