package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-gateways/webhooks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeliveryLedger persists notification delivery claims in
// gateway_notification_deliveries. Claims survive restarts, and the unique
// (provider_id, delivery_id) index keeps concurrent receivers from both
// claiming one delivery.
type DeliveryLedger struct {
	db  *bun.DB
	now func() time.Time
}

func NewDeliveryLedger(db *bun.DB) (*DeliveryLedger, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &DeliveryLedger{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (l *DeliveryLedger) Claim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if l == nil || l.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery ledger is not configured")
	}
	providerID = strings.ToLower(strings.TrimSpace(providerID))
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: provider id and delivery id are required")
	}
	now := l.now().UTC()

	record := &deliveryRecord{
		ID:         uuid.NewString(),
		ClaimID:    uuid.NewString(),
		ProviderID: providerID,
		DeliveryID: deliveryID,
		Status:     webhooks.DeliveryStatusProcessing,
		Attempts:   1,
		Payload:    append([]byte(nil), payload...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res, err := l.db.NewInsert().
		Model(record).
		On("CONFLICT (provider_id, delivery_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if inserted, _ := res.RowsAffected(); inserted == 1 {
		return record.toDomain(), true, nil
	}

	existing, err := l.load(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	switch existing.Status {
	case webhooks.DeliveryStatusProcessed, webhooks.DeliveryStatusDead:
		return existing.toDomain(), false, nil
	case webhooks.DeliveryStatusProcessing:
		if lease > 0 && now.Before(existing.UpdatedAt.Add(lease)) {
			return existing.toDomain(), false, nil
		}
	}

	claimID := uuid.NewString()
	res, err = l.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Where("claim_id = ?", existing.ClaimID).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if updated, _ := res.RowsAffected(); updated != 1 {
		// Another receiver reclaimed it first.
		current, loadErr := l.load(ctx, providerID, deliveryID)
		if loadErr != nil {
			return webhooks.DeliveryRecord{}, false, loadErr
		}
		return current.toDomain(), false, nil
	}
	existing.ClaimID = claimID
	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.NextAttemptAt = nil
	existing.UpdatedAt = now
	return existing.toDomain(), true, nil
}

func (l *DeliveryLedger) Get(ctx context.Context, providerID string, deliveryID string) (webhooks.DeliveryRecord, error) {
	if l == nil || l.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery ledger is not configured")
	}
	record, err := l.load(ctx, strings.ToLower(strings.TrimSpace(providerID)), strings.TrimSpace(deliveryID))
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return record.toDomain(), nil
}

func (l *DeliveryLedger) Complete(ctx context.Context, claimID string) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("sqlstore: delivery ledger is not configured")
	}
	res, err := l.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("last_error = ''").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", l.now().UTC()).
		Where("claim_id = ?", strings.TrimSpace(claimID)).
		Exec(ctx)
	return requireOneRow(res, err, claimID)
}

func (l *DeliveryLedger) Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("sqlstore: delivery ledger is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	record := &deliveryRecord{}
	if err := l.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_id = ?", claimID).
		Limit(1).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlstore: delivery claim %q not found", claimID)
		}
		return err
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	update := l.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", l.now().UTC()).
		Where("claim_id = ?", claimID)
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		update = update.
			Set("status = ?", webhooks.DeliveryStatusDead).
			Set("next_attempt_at = NULL")
	} else {
		update = update.
			Set("status = ?", webhooks.DeliveryStatusRetryReady).
			Set("next_attempt_at = ?", nextAttemptAt.UTC())
	}
	res, err := update.Exec(ctx)
	return requireOneRow(res, err, claimID)
}

func (l *DeliveryLedger) load(ctx context.Context, providerID string, deliveryID string) (*deliveryRecord, error) {
	record := &deliveryRecord{}
	err := l.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.delivery_id = ?", deliveryID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlstore: delivery %s:%s not found", providerID, deliveryID)
		}
		return nil, err
	}
	return record, nil
}

func requireOneRow(res sql.Result, err error, claimID string) error {
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected != 1 {
		return fmt.Errorf("sqlstore: delivery claim %q not found", claimID)
	}
	return nil
}
