package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-gateways/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultListLimit = 25
	maxListLimit     = 500
)

// TransactionStore persists one row per completed gateway operation.
type TransactionStore struct {
	db   *bun.DB
	repo repository.Repository[*transactionRecord]
	now  func() time.Time
}

func NewTransactionStore(db *bun.DB) (*TransactionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*transactionRecord](db, transactionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid transaction repository wiring: %w", err)
		}
	}
	return &TransactionStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *TransactionStore) Record(ctx context.Context, txn core.Transaction) (core.Transaction, error) {
	if s == nil || s.repo == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	if strings.TrimSpace(txn.ProviderID) == "" {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction provider_id is required")
	}
	if !txn.Action.Valid() {
		return core.Transaction{}, fmt.Errorf("sqlstore: invalid transaction action %q", txn.Action)
	}
	record := newTransactionRecord(txn, s.now())
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Transaction{}, err
	}
	return created.toDomain(), nil
}

func (s *TransactionStore) Get(ctx context.Context, id string) (core.Transaction, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &transactionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, fmt.Errorf("%w: id %q", core.ErrTransactionNotFound, id)
		}
		return core.Transaction{}, err
	}
	return record.toDomain(), nil
}

// List returns transactions newest first.
func (s *TransactionStore) List(ctx context.Context, filter core.TransactionFilter) (core.TransactionPage, error) {
	if s == nil || s.repo == nil {
		return core.TransactionPage{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, offset),
	}
	if providerID := strings.TrimSpace(filter.ProviderID); providerID != "" {
		selectors = append(selectors, repository.SelectBy("provider_id", "=", providerID))
	}
	if action := strings.TrimSpace(string(filter.Action)); action != "" {
		selectors = append(selectors, repository.SelectBy("action", "=", action))
	}
	if orderID := strings.TrimSpace(filter.OrderID); orderID != "" {
		selectors = append(selectors, repository.SelectBy("order_id", "=", orderID))
	}
	if authorization := strings.TrimSpace(filter.Authorization); authorization != "" {
		selectors = append(selectors, repository.SelectBy("authorization_code", "=", authorization))
	}
	if filter.Success != nil {
		success := *filter.Success
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.success = ?", success)
		}))
	}
	if filter.Since != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.Since.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.TransactionPage{}, err
	}
	items := make([]core.Transaction, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.TransactionPage{Items: items, Total: total}, nil
}
