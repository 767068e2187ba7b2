package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-gateways/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	transactionStore *TransactionStore
	store            core.TransactionStore
	deliveryLedger   *DeliveryLedger
}

type FactoryOption func(*RepositoryFactory)

// WithTransactionCache fronts transaction reads with a go-repository-cache
// service.
func WithTransactionCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores resolves the bun db from a *bun.DB or any client exposing DB()
// and wires the transaction store and delivery ledger once.
func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.TransactionStore, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.store != nil {
		return f.store, nil
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	transactionStore, err := NewTransactionStore(f.db)
	if err != nil {
		return nil, err
	}
	deliveryLedger, err := NewDeliveryLedger(f.db)
	if err != nil {
		return nil, err
	}
	f.transactionStore = transactionStore
	f.deliveryLedger = deliveryLedger
	f.store = transactionStore
	if f.cache != nil {
		cached, err := NewCachedTransactionStore(transactionStore, f.cache)
		if err != nil {
			return nil, err
		}
		f.store = cached
	}
	return f.store, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// TransactionStore returns the uncached store.
func (f *RepositoryFactory) TransactionStore() *TransactionStore {
	if f == nil {
		return nil
	}
	return f.transactionStore
}

// Store returns the store handed to the service, cached when configured.
func (f *RepositoryFactory) Store() core.TransactionStore {
	if f == nil {
		return nil
	}
	return f.store
}

// DeliveryLedger returns the notification delivery ledger.
func (f *RepositoryFactory) DeliveryLedger() *DeliveryLedger {
	if f == nil {
		return nil
	}
	return f.deliveryLedger
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
