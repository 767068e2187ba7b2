package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-gateways/core"
)

var (
	_ gocmd.Querier[GetTransactionMessage, core.Transaction]       = (*GetTransactionQuery)(nil)
	_ gocmd.Querier[ListTransactionsMessage, core.TransactionPage] = (*ListTransactionsQuery)(nil)

	_ TransactionReader = (*core.Service)(nil)
)
