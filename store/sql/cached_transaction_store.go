package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-gateways/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const transactionCacheKeyPrefix = "go-gateways::transaction::v1"

// CachedTransactionStore serves Get from a read cache. Recorded transactions
// never change, so entries only expire by TTL; List always reads the base store.
type CachedTransactionStore struct {
	base  core.TransactionStore
	cache repositorycache.CacheService
}

func NewCachedTransactionStore(base core.TransactionStore, cacheService repositorycache.CacheService) (*CachedTransactionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base transaction store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: transaction cache service is required")
	}
	return &CachedTransactionStore{base: base, cache: cacheService}, nil
}

// TransactionCacheKey returns go-gateways::transaction::v1::<escaped id>.
func TransactionCacheKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("sqlstore: transaction id is required")
	}
	return transactionCacheKeyPrefix + "::" + url.PathEscape(id), nil
}

func (s *CachedTransactionStore) Record(ctx context.Context, txn core.Transaction) (core.Transaction, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: cached transaction store is not configured")
	}
	recorded, err := s.base.Record(ctx, txn)
	if err != nil {
		return core.Transaction{}, err
	}
	cacheKey, err := TransactionCacheKey(recorded.ID)
	if err != nil {
		return recorded, nil
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return recorded, err
	}
	return recorded, nil
}

func (s *CachedTransactionStore) Get(ctx context.Context, id string) (core.Transaction, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: cached transaction store is not configured")
	}
	cacheKey, err := TransactionCacheKey(id)
	if err != nil {
		return core.Transaction{}, err
	}
	txn, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Transaction, error) {
		return s.base.Get(ctx, strings.TrimSpace(id))
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return cloneTransaction(txn), nil
}

func (s *CachedTransactionStore) List(ctx context.Context, filter core.TransactionFilter) (core.TransactionPage, error) {
	if s == nil || s.base == nil {
		return core.TransactionPage{}, fmt.Errorf("sqlstore: cached transaction store is not configured")
	}
	return s.base.List(ctx, filter)
}

func cloneTransaction(txn core.Transaction) core.Transaction {
	cloned := txn
	cloned.Steps = append([]string{}, txn.Steps...)
	cloned.Raw = copyAnyMap(txn.Raw)
	return cloned
}
