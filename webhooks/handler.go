package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-gateways/core"
)

// TransactionHandler records the payment state of each notification through a
// transaction sink, so a status that settles after the synchronous call is
// visible to transaction queries.
type TransactionHandler struct {
	Sink        core.TransactionSink
	Parse       Parser
	Acknowledge Acknowledger
	Now         func() time.Time
}

func NewTransactionHandler(sink core.TransactionSink, parse Parser) *TransactionHandler {
	return &TransactionHandler{Sink: sink, Parse: parse}
}

func (h *TransactionHandler) Handle(ctx context.Context, n Notification) (Result, error) {
	if h == nil || h.Parse == nil {
		return Result{}, fmt.Errorf("webhooks: transaction handler requires a parser")
	}
	update, err := h.Parse(n)
	if err != nil {
		// A body we cannot read will not improve on redelivery.
		return Result{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata:   map[string]any{"ignored": true, "reason": err.Error()},
		}, nil
	}

	result := Result{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"status":        update.Status,
			"authorization": update.Authorization,
		},
	}
	if update.Ignore {
		result.Metadata["ignored"] = true
	} else {
		if h.Sink == nil {
			return Result{}, core.ErrTransactionStoreNeeded
		}
		recorded, err := h.Sink.Record(ctx, transactionFrom(n, update))
		if err != nil {
			return Result{StatusCode: http.StatusServiceUnavailable}, err
		}
		result.Metadata["transaction_id"] = recorded.ID
	}

	if h.Acknowledge != nil {
		headers, body, err := h.Acknowledge(ctx, n, h.now())
		if err != nil {
			return Result{StatusCode: http.StatusInternalServerError}, err
		}
		result.Headers = headers
		result.Body = body
	}
	return result, nil
}

func (h *TransactionHandler) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func transactionFrom(n Notification, update Update) core.Transaction {
	action := update.Action
	if !action.Valid() {
		action = core.ActionPurchase
	}
	txn := core.Transaction{
		ProviderID:    n.ProviderID,
		Action:        action,
		Success:       update.Success,
		Message:       update.Message,
		Authorization: update.Authorization,
		Test:          update.Test,
		OrderID:       update.OrderID,
		Steps:         []string{"notification"},
		Raw:           core.RedactSensitiveMap(update.Raw),
		CreatedAt:     n.ReceivedAt,
	}
	if !update.Success {
		txn.ErrorCode = update.ErrorCode
	}
	if update.Money.Currency != "" || !update.Money.IsZero() {
		txn.Amount = update.Money.Major()
		txn.Currency = update.Money.Currency
	}
	if txn.Raw == nil {
		txn.Raw = map[string]any{}
	}
	if update.Status != "" {
		txn.Raw["notification_status"] = update.Status
	}
	return txn
}

var _ Handler = (*TransactionHandler)(nil)
