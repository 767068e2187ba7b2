package sqlstore

import (
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/webhooks"
)

var (
	_ core.TransactionStore       = (*TransactionStore)(nil)
	_ core.TransactionStore       = (*CachedTransactionStore)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
	_ webhooks.DeliveryLedger     = (*DeliveryLedger)(nil)
)
