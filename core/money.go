package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount string, currency string) (Money, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("core: invalid amount %q: %w", amount, err)
	}
	return Money{Amount: value, Currency: normalizeCurrency(currency)}, nil
}

// MoneyFromCents builds a money value from minor units.
func MoneyFromCents(cents int64, currency string) Money {
	return Money{
		Amount:   decimal.New(cents, -2),
		Currency: normalizeCurrency(currency),
	}
}

func (m Money) Cents() int64 {
	return m.Amount.Mul(hundred).Round(0).IntPart()
}

// Major renders the amount with two decimals, e.g. "1.00".
func (m Money) Major() string {
	return m.Amount.StringFixed(2)
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) Validate() error {
	if m.Amount.IsNegative() {
		return fmt.Errorf("core: amount must not be negative")
	}
	return nil
}

func (m Money) WithDefaultCurrency(currency string) Money {
	if strings.TrimSpace(m.Currency) == "" {
		m.Currency = normalizeCurrency(currency)
	}
	return m
}

func (m Money) String() string {
	if m.Currency == "" {
		return m.Major()
	}
	return m.Major() + " " + m.Currency
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}
