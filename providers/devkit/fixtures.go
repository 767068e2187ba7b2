package devkit

import "github.com/goliatone/go-gateways/core"

// Card returns the usual test card.
func Card() core.CreditCard {
	return core.CreditCard{
		Number:            "4000100011112224",
		Month:             9,
		Year:              2030,
		VerificationValue: "123",
		FirstName:         "Longbob",
		LastName:          "Longsen",
		Brand:             "visa",
	}
}

func Check() core.BankAccount {
	return core.BankAccount{
		AccountNumber: "15378535",
		RoutingNumber: "244183602",
		AccountType:   core.BankAccountChecking,
		HolderName:    "Jim Smith",
	}
}

func Address() core.Address {
	return core.Address{
		Name:     "Jim Smith",
		Address1: "456 My Street",
		Address2: "Apt 1",
		City:     "Ottawa",
		State:    "ON",
		Zip:      "K1C2N6",
		Country:  "CA",
		Phone:    "(555)555-5555",
	}
}

// CardRequest builds a card payment for amount cents.
func CardRequest(providerID string, cents int64, currency string) core.PaymentRequest {
	return core.PaymentRequest{
		ProviderID:     providerID,
		Money:          core.MoneyFromCents(cents, currency),
		Source:         core.CardSource(Card()),
		OrderID:        "1",
		Description:    "Store Purchase",
		BillingAddress: Address(),
		Customer: core.Customer{
			FirstName: "Longbob",
			LastName:  "Longsen",
			Email:     "longbob@example.com",
			IP:        "127.0.0.1",
		},
		Options: map[string]any{},
	}
}

// TokenRequest builds a payment against a stored token. It is the only source
// the job queue accepts.
func TokenRequest(providerID string, cents int64, currency string, token string) core.PaymentRequest {
	return core.PaymentRequest{
		ProviderID:  providerID,
		Money:       core.MoneyFromCents(cents, currency),
		Source:      core.TokenSource(token),
		OrderID:     "1",
		Description: "Store Purchase",
		Options:     map[string]any{},
	}
}
