package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger keeps delivery claims in process memory. Claims are lost on
// restart, so a gateway redelivery after a crash is processed again.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord
	claims  map[string]string
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: map[string]DeliveryRecord{},
		claims:  map[string]string{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the ledger clock.
func (l *MemoryLedger) WithClock(now func() time.Time) *MemoryLedger {
	if l != nil && now != nil {
		l.now = now
	}
	return l
}

// Claim takes a delivery for processing. Processed and dead deliveries, and
// deliveries under a live lease, are not claimed again.
func (l *MemoryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: ledger is nil")
	}
	key, err := ledgerKey(providerID, deliveryID)
	if err != nil {
		return DeliveryRecord{}, false, err
	}
	now := l.now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.records[key]
	if exists {
		switch record.Status {
		case DeliveryStatusProcessed, DeliveryStatusDead:
			return record, false, nil
		case DeliveryStatusProcessing:
			if lease > 0 && now.Before(record.UpdatedAt.Add(lease)) {
				return record, false, nil
			}
		}
		delete(l.claims, record.ClaimID)
		record.Attempts++
	} else {
		record = DeliveryRecord{
			ID:         key,
			ProviderID: strings.TrimSpace(providerID),
			DeliveryID: strings.TrimSpace(deliveryID),
			Attempts:   1,
			CreatedAt:  now,
		}
	}
	record.ClaimID = uuid.NewString()
	record.Status = DeliveryStatusProcessing
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	l.records[key] = record
	l.claims[record.ClaimID] = key
	return record, true, nil
}

func (l *MemoryLedger) Get(_ context.Context, providerID string, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: ledger is nil")
	}
	key, err := ledgerKey(providerID, deliveryID)
	if err != nil {
		return DeliveryRecord{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[key]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery %s not found", key)
	}
	return record, nil
}

func (l *MemoryLedger) Complete(_ context.Context, claimID string) error {
	return l.update(claimID, func(record *DeliveryRecord) {
		record.Status = DeliveryStatusProcessed
		record.LastError = ""
	})
}

func (l *MemoryLedger) Fail(_ context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	return l.update(claimID, func(record *DeliveryRecord) {
		if cause != nil {
			record.LastError = cause.Error()
		}
		if maxAttempts > 0 && record.Attempts >= maxAttempts {
			record.Status = DeliveryStatusDead
			return
		}
		next := nextAttemptAt.UTC()
		record.Status = DeliveryStatusRetryReady
		record.NextAttemptAt = &next
	})
}

func (l *MemoryLedger) update(claimID string, apply func(record *DeliveryRecord)) error {
	if l == nil {
		return fmt.Errorf("webhooks: ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[strings.TrimSpace(claimID)]
	if !ok {
		return fmt.Errorf("webhooks: claim %q not found", claimID)
	}
	record := l.records[key]
	apply(&record)
	record.UpdatedAt = l.now().UTC()
	l.records[key] = record
	delete(l.claims, claimID)
	return nil
}

func ledgerKey(providerID string, deliveryID string) (string, error) {
	providerID = strings.ToLower(strings.TrimSpace(providerID))
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return "", fmt.Errorf("webhooks: provider id and delivery id are required")
	}
	return providerID + ":" + deliveryID, nil
}

var _ DeliveryLedger = (*MemoryLedger)(nil)
