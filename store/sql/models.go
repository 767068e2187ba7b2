package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/webhooks"
	"github.com/uptrace/bun"
)

type transactionRecord struct {
	bun.BaseModel `bun:"table:gateway_transactions,alias:gt"`

	ID            string         `bun:"id,pk"`
	ProviderID    string         `bun:"provider_id,notnull"`
	Action        string         `bun:"action,notnull"`
	Success       bool           `bun:"success,notnull"`
	Message       string         `bun:"message,notnull"`
	Authorization string         `bun:"authorization_code,notnull"`
	ErrorCode     string         `bun:"error_code,notnull"`
	Test          bool           `bun:"test,notnull"`
	Amount        string         `bun:"amount,notnull"`
	Currency      string         `bun:"currency,notnull"`
	OrderID       string         `bun:"order_id,notnull"`
	Steps         []string       `bun:"steps,type:jsonb,notnull"`
	Raw           map[string]any `bun:"raw,type:jsonb,notnull"`
	Transcript    string         `bun:"transcript,notnull"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newTransactionRecord(txn core.Transaction, now time.Time) *transactionRecord {
	createdAt := txn.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	amount := strings.TrimSpace(txn.Amount)
	if amount == "" {
		amount = "0"
	}
	steps := append([]string{}, txn.Steps...)
	raw := copyAnyMap(txn.Raw)
	return &transactionRecord{
		ID:            strings.TrimSpace(txn.ID),
		ProviderID:    strings.TrimSpace(txn.ProviderID),
		Action:        strings.TrimSpace(string(txn.Action)),
		Success:       txn.Success,
		Message:       txn.Message,
		Authorization: strings.TrimSpace(txn.Authorization),
		ErrorCode:     strings.TrimSpace(txn.ErrorCode),
		Test:          txn.Test,
		Amount:        amount,
		Currency:      strings.ToUpper(strings.TrimSpace(txn.Currency)),
		OrderID:       strings.TrimSpace(txn.OrderID),
		Steps:         steps,
		Raw:           raw,
		Transcript:    txn.Transcript,
		CreatedAt:     createdAt,
	}
}

func (r *transactionRecord) toDomain() core.Transaction {
	if r == nil {
		return core.Transaction{}
	}
	return core.Transaction{
		ID:            r.ID,
		ProviderID:    r.ProviderID,
		Action:        core.Action(r.Action),
		Success:       r.Success,
		Message:       r.Message,
		Authorization: r.Authorization,
		ErrorCode:     r.ErrorCode,
		Test:          r.Test,
		Amount:        r.Amount,
		Currency:      r.Currency,
		OrderID:       r.OrderID,
		Steps:         append([]string{}, r.Steps...),
		Raw:           copyAnyMap(r.Raw),
		Transcript:    r.Transcript,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

type deliveryRecord struct {
	bun.BaseModel `bun:"table:gateway_notification_deliveries,alias:gnd"`

	ID            string     `bun:"id,pk"`
	ClaimID       string     `bun:"claim_id,notnull"`
	ProviderID    string     `bun:"provider_id,notnull"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	LastError     string     `bun:"last_error,notnull"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *deliveryRecord) toDomain() webhooks.DeliveryRecord {
	if r == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         r.ID,
		ClaimID:    r.ClaimID,
		ProviderID: r.ProviderID,
		DeliveryID: r.DeliveryID,
		Status:     r.Status,
		Attempts:   r.Attempts,
		LastError:  r.LastError,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.NextAttemptAt != nil {
		value := r.NextAttemptAt.UTC()
		result.NextAttemptAt = &value
	}
	return result
}
