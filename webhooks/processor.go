package webhooks

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
)

// Delivery states kept by a DeliveryLedger. Processed and dead deliveries are
// final; a redelivery of either is acknowledged without running the handler.
const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

const (
	defaultClaimLease  = 30 * time.Second
	defaultMaxAttempts = 8
)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	ProviderID    string
	DeliveryID    string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger dedupes notifications per gateway and delivery id. Claim
// returns claimed=false when another caller holds the lease or the delivery
// reached a final state.
type DeliveryLedger interface {
	Claim(ctx context.Context, providerID, deliveryID string, payload []byte, lease time.Duration) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type Verifier interface {
	Verify(ctx context.Context, n Notification) error
}

type DeliveryIDExtractor func(n Notification) (string, error)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type Handler interface {
	Handle(ctx context.Context, n Notification) (Result, error)
}

// ExponentialRetryPolicy doubles Initial (1s) per attempt up to Max (30s).
type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	delay, ceiling := p.Initial, p.Max
	if delay <= 0 {
		delay = time.Second
	}
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	for ; attempt > 1 && delay < ceiling; attempt-- {
		delay *= 2
	}
	return min(delay, ceiling)
}

// Processor runs one notification through verification, the delivery ledger,
// burst control and the handler, in that order.
type Processor struct {
	Verifier    Verifier
	Ledger      DeliveryLedger
	Handler     Handler
	ExtractID   DeliveryIDExtractor
	Burst       BurstController
	RetryPolicy RetryPolicy
	Logger      core.Logger
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, handler Handler) *Processor {
	return &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Handler:     handler,
		ExtractID:   DefaultDeliveryIDExtractor,
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  defaultClaimLease,
		MaxAttempts: defaultMaxAttempts,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

// Process verifies, dedupes and handles one notification. A duplicate of a
// processed delivery is acknowledged without running the handler again.
func (p *Processor) Process(ctx context.Context, n Notification) (Result, error) {
	if p == nil || p.Handler == nil || p.Ledger == nil {
		return Result{}, core.GatewayError("webhooks: processor requires handler and ledger", goerrors.CategoryInternal, 0, "", nil)
	}
	n.ProviderID = strings.ToLower(strings.TrimSpace(n.ProviderID))
	if n.ProviderID == "" {
		return Result{}, core.FieldError("webhooks", "provider_id", "provider id is required")
	}
	n, err := p.admit(ctx, n)
	if err != nil {
		return rejected(n.ProviderID), err
	}
	deliveryID, err := p.extractor()(n)
	if err != nil {
		return Result{}, err
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, n.ProviderID, deliveryID, n.Body, p.claimLease())
	switch {
	case err != nil:
		return Result{}, err
	case !claimed:
		return acknowledged(n.ProviderID, delivery.DeliveryID, map[string]any{"status": delivery.Status}), nil
	}

	if suppressed, ok, err := p.suppress(ctx, n, delivery); err != nil || ok {
		return suppressed, err
	}
	return p.run(ctx, n, delivery)
}

// admit stamps the notification and runs the verifier. Rejected notifications
// never reach the ledger.
func (p *Processor) admit(ctx context.Context, n Notification) (Notification, error) {
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = p.now()
	}
	if p.Verifier == nil {
		return n, nil
	}
	if err := p.Verifier.Verify(ctx, n); err != nil {
		p.warn("notification rejected", "provider_id", n.ProviderID, "error", err.Error())
		return n, err
	}
	return n, nil
}

// suppress completes the claim without running the handler when burst
// control holds the notification back.
func (p *Processor) suppress(ctx context.Context, n Notification, delivery DeliveryRecord) (Result, bool, error) {
	if p.Burst == nil {
		return Result{}, false, nil
	}
	decision, err := p.Burst.Allow(ctx, n)
	if err != nil || decision.Allow {
		return Result{}, false, err
	}
	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		return Result{}, true, err
	}
	return acknowledged(n.ProviderID, delivery.DeliveryID, decision.Metadata), true, nil
}

// run calls the handler and settles the claim. A rejected result or a 5xx
// counts as a failure so the delivery is retried.
func (p *Processor) run(ctx context.Context, n Notification, delivery DeliveryRecord) (Result, error) {
	result, err := p.Handler.Handle(ctx, n)
	if err == nil && (!result.Accepted || result.StatusCode >= http.StatusInternalServerError) {
		err = fmt.Errorf("webhooks: notification handler returned retryable status %d", result.StatusCode)
	}
	if err != nil {
		next := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		if failErr := p.Ledger.Fail(ctx, delivery.ClaimID, err, next, p.maxAttempts()); failErr != nil {
			p.warn("notification ledger update failed", "provider_id", n.ProviderID, "delivery_id", delivery.DeliveryID, "error", failErr.Error())
		}
		p.warn("notification failed", "provider_id", n.ProviderID, "delivery_id", delivery.DeliveryID, "attempt", delivery.Attempts, "error", err.Error())
		return result, err
	}
	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		return Result{}, err
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["provider_id"] = n.ProviderID
	result.Metadata["delivery_id"] = delivery.DeliveryID
	return result, nil
}

func rejected(providerID string) Result {
	return Result{
		StatusCode: http.StatusUnauthorized,
		Metadata:   map[string]any{"provider_id": providerID, "rejected": true},
	}
}

// acknowledged answers a notification that was deduped without running the
// handler.
func acknowledged(providerID, deliveryID string, extra map[string]any) Result {
	metadata := maps.Clone(extra)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["provider_id"] = providerID
	metadata["delivery_id"] = deliveryID
	metadata["deduped"] = true
	return Result{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}
}

// DefaultDeliveryIDExtractor reads metadata["delivery_id"] and then the
// X-Delivery-Id header.
func DefaultDeliveryIDExtractor(n Notification) (string, error) {
	if id := metadataString(n.Metadata, "delivery_id"); id != "" {
		return id, nil
	}
	if id := n.Header("x-delivery-id"); id != "" {
		return id, nil
	}
	return "", core.FieldError("webhooks", "delivery_id", "delivery id is required for dedupe")
}

func (p *Processor) extractor() DeliveryIDExtractor {
	if p.ExtractID != nil {
		return p.ExtractID
	}
	return DefaultDeliveryIDExtractor
}

func (p *Processor) warn(message string, args ...any) {
	if p.Logger != nil {
		p.Logger.Warn(message, args...)
	}
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return defaultClaimLease
}

func (p *Processor) maxAttempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return defaultMaxAttempts
}
