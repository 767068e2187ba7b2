package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPaymentSource   = errors.New("core: invalid payment source")
	ErrAuthorizationRequired  = errors.New("core: authorization is required")
	ErrTransactionNotFound    = errors.New("core: transaction not found")
	ErrTransactionStoreNeeded = errors.New("core: transaction store is required")
)

type CreditCard struct {
	Number            string
	Month             int
	Year              int
	VerificationValue string
	FirstName         string
	LastName          string
	Brand             string
}

func (c CreditCard) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ExpiryMMYY renders the expiry as MM/YY when separator is "/", MMYY when empty.
func (c CreditCard) ExpiryMMYY(separator string) string {
	return fmt.Sprintf("%02d%s%02d", c.Month, separator, c.Year%100)
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Number) == "" {
		return fmt.Errorf("%w: card number is required", ErrInvalidPaymentSource)
	}
	if c.Month < 1 || c.Month > 12 {
		return fmt.Errorf("%w: card month %d", ErrInvalidPaymentSource, c.Month)
	}
	if c.Year <= 0 {
		return fmt.Errorf("%w: card year is required", ErrInvalidPaymentSource)
	}
	return nil
}

type BankAccountType string

const (
	BankAccountChecking BankAccountType = "checking"
	BankAccountSavings  BankAccountType = "savings"
)

type BankAccount struct {
	AccountNumber string
	RoutingNumber string
	AccountType   BankAccountType
	BankCode      string
	HolderName    string
}

func (b BankAccount) Validate() error {
	if strings.TrimSpace(b.AccountNumber) == "" && strings.TrimSpace(b.BankCode) == "" {
		return fmt.Errorf("%w: bank account number or bank code is required", ErrInvalidPaymentSource)
	}
	return nil
}

// PaymentSource carries exactly one of a card, a bank account or a stored token.
type PaymentSource struct {
	Card  *CreditCard
	Bank  *BankAccount
	Token string
}

func CardSource(card CreditCard) PaymentSource {
	return PaymentSource{Card: &card}
}

func BankSource(account BankAccount) PaymentSource {
	return PaymentSource{Bank: &account}
}

func TokenSource(token string) PaymentSource {
	return PaymentSource{Token: strings.TrimSpace(token)}
}

func (p PaymentSource) Kind() string {
	switch {
	case p.Card != nil:
		return "card"
	case p.Bank != nil:
		return "bank"
	case p.Token != "":
		return "token"
	default:
		return ""
	}
}

func (p PaymentSource) IsZero() bool {
	return p.Kind() == ""
}

func (p PaymentSource) Validate() error {
	set := 0
	if p.Card != nil {
		set++
	}
	if p.Bank != nil {
		set++
	}
	if p.Token != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: exactly one of card, bank or token must be set", ErrInvalidPaymentSource)
	}
	if p.Card != nil {
		return p.Card.Validate()
	}
	if p.Bank != nil {
		return p.Bank.Validate()
	}
	return nil
}

type Address struct {
	Name     string
	Address1 string
	Address2 string
	City     string
	State    string
	Zip      string
	Country  string
	Phone    string
}

type Customer struct {
	ID             string
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Mobile         string
	IP             string
	Birthday       *time.Time
	DocumentType   string
	DocumentNumber string
}

type PaymentRequest struct {
	ProviderID     string
	Money          Money
	Source         PaymentSource
	Authorization  string
	OrderID        string
	Description    string
	IdempotencyKey string
	Customer       Customer
	BillingAddress Address
	Options        map[string]any
}

// Option reads a provider specific option as trimmed text.
func (r PaymentRequest) Option(key string) string {
	return readString(r.Options, key)
}

func (r PaymentRequest) Flag(key string) bool {
	if len(r.Options) == 0 {
		return false
	}
	switch typed := r.Options[key].(type) {
	case bool:
		return typed
	case string:
		return strings.EqualFold(strings.TrimSpace(typed), "true")
	default:
		return false
	}
}

type OperationResult struct {
	TransactionID string
	ProviderID    string
	Action        Action
	Outcome       Outcome
	Chain         ChainResult
	Transcript    string
}

func (r OperationResult) Success() bool {
	return r.Outcome.Success
}

type Transaction struct {
	ID            string
	ProviderID    string
	Action        Action
	Success       bool
	Message       string
	Authorization string
	ErrorCode     string
	Test          bool
	Amount        string
	Currency      string
	OrderID       string
	Steps         []string
	Raw           map[string]any
	Transcript    string
	CreatedAt     time.Time
}

type TransactionFilter struct {
	ProviderID    string
	Action        Action
	OrderID       string
	Authorization string
	Success       *bool
	Since         *time.Time
	Limit         int
	Offset        int
}

type TransactionPage struct {
	Items []Transaction
	Total int
}

func readString(values map[string]any, key string) string {
	if len(values) == 0 {
		return ""
	}
	switch typed := values[key].(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
