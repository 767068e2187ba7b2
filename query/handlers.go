package query

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
)

// TransactionReader is satisfied by core.Service and by the sql stores.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, filter core.TransactionFilter) (core.TransactionPage, error)
}

type GetTransactionQuery struct {
	reader TransactionReader
}

func NewGetTransactionQuery(reader TransactionReader) *GetTransactionQuery {
	return &GetTransactionQuery{reader: reader}
}

func (q *GetTransactionQuery) Query(ctx context.Context, msg GetTransactionMessage) (core.Transaction, error) {
	if q == nil || q.reader == nil {
		return core.Transaction{}, core.GatewayError("query: transaction reader is required", goerrors.CategoryInternal, 0, "", nil)
	}
	return q.reader.GetTransaction(ctx, msg.ID)
}

type ListTransactionsQuery struct {
	reader TransactionReader
}

func NewListTransactionsQuery(reader TransactionReader) *ListTransactionsQuery {
	return &ListTransactionsQuery{reader: reader}
}

func (q *ListTransactionsQuery) Query(
	ctx context.Context,
	msg ListTransactionsMessage,
) (core.TransactionPage, error) {
	if q == nil || q.reader == nil {
		return core.TransactionPage{}, core.GatewayError("query: transaction reader is required", goerrors.CategoryInternal, 0, "", nil)
	}
	return q.reader.ListTransactions(ctx, msg.Filter)
}
