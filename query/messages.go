package query

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
)

const (
	TypeGetTransaction   = "gateways.query.transaction.get"
	TypeListTransactions = "gateways.query.transaction.list"

	maxListLimit = 500
)

type GetTransactionMessage struct {
	ID string
}

func (GetTransactionMessage) Type() string { return TypeGetTransaction }

func (m GetTransactionMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return core.FieldError("query", "id", "is required")
	}
	return nil
}

type ListTransactionsMessage struct {
	Filter core.TransactionFilter
}

func (ListTransactionsMessage) Type() string { return TypeListTransactions }

func (m ListTransactionsMessage) Validate() error {
	if m.Filter.Action != "" && !m.Filter.Action.Valid() {
		return core.FieldError("query", "action", "must be a supported operation")
	}
	if m.Filter.Limit < 0 || m.Filter.Limit > maxListLimit {
		return core.GatewayError("query: limit must be between 0 and 500", goerrors.CategoryBadInput, 0, "", nil)
	}
	if m.Filter.Offset < 0 {
		return core.GatewayError("query: offset must be >= 0", goerrors.CategoryBadInput, 0, "", nil)
	}
	return nil
}
