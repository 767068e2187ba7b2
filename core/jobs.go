package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	JobIDOperation         = "gateways.operation"
	OperationJobScriptPath = "gateways/operation"
)

// NewOperationJobMessage encodes a queued payment operation. Raw card and bank
// data never go on a queue; only stored tokens and authorizations do.
func NewOperationJobMessage(action Action, req PaymentRequest) (*JobExecutionMessage, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("core: invalid action %q", action)
	}
	if req.Source.Card != nil || req.Source.Bank != nil {
		return nil, fmt.Errorf("core: queued operations must use a token or authorization, card and bank data are invalid")
	}
	if strings.TrimSpace(req.ProviderID) == "" {
		return nil, fmt.Errorf("core: provider id is required")
	}
	params := map[string]any{
		"action":      string(action),
		"provider_id": strings.TrimSpace(req.ProviderID),
		"amount":      req.Money.Amount.String(),
		"currency":    req.Money.Currency,
	}
	setIfPresent(params, "authorization", req.Authorization)
	setIfPresent(params, "token", req.Source.Token)
	setIfPresent(params, "order_id", req.OrderID)
	setIfPresent(params, "description", req.Description)
	if len(req.Options) > 0 {
		params["options"] = copyAnyMap(req.Options)
	}
	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = strings.Join([]string{string(action), req.ProviderID, req.OrderID, req.Authorization}, ":")
	}
	return &JobExecutionMessage{
		JobID:          JobIDOperation,
		ScriptPath:     OperationJobScriptPath,
		Parameters:     params,
		IdempotencyKey: idempotencyKey,
		DedupPolicy:    "drop",
	}, nil
}

func DecodeOperationJobMessage(msg *JobExecutionMessage) (Action, PaymentRequest, error) {
	if msg == nil {
		return "", PaymentRequest{}, fmt.Errorf("core: job message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDOperation {
		return "", PaymentRequest{}, fmt.Errorf("core: unexpected job id %q", msg.JobID)
	}
	action, ok := ParseAction(readString(msg.Parameters, "action"))
	if !ok {
		return "", PaymentRequest{}, fmt.Errorf("core: invalid action %q in job", readString(msg.Parameters, "action"))
	}
	amount := readString(msg.Parameters, "amount")
	if amount == "" {
		amount = "0"
	}
	money, err := NewMoney(amount, readString(msg.Parameters, "currency"))
	if err != nil {
		return "", PaymentRequest{}, err
	}
	req := PaymentRequest{
		ProviderID:     readString(msg.Parameters, "provider_id"),
		Money:          money,
		Authorization:  readString(msg.Parameters, "authorization"),
		OrderID:        readString(msg.Parameters, "order_id"),
		Description:    readString(msg.Parameters, "description"),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
	}
	if token := readString(msg.Parameters, "token"); token != "" {
		req.Source = TokenSource(token)
	}
	if options, ok := msg.Parameters["options"].(map[string]any); ok {
		req.Options = copyAnyMap(options)
	}
	return action, req, nil
}

// OperationJobHandler executes queued operations. Declines are acked since a
// retry would repeat a business decision; transport failures are requeued.
type OperationJobHandler struct {
	Service    *Service
	RetryDelay time.Duration
}

func (h OperationJobHandler) Handle(ctx context.Context, delivery JobDelivery) (OperationResult, error) {
	if delivery == nil {
		return OperationResult{}, fmt.Errorf("core: job delivery is required")
	}
	if h.Service == nil {
		return OperationResult{}, fmt.Errorf("core: job handler service is required")
	}
	action, req, err := DecodeOperationJobMessage(delivery.Message())
	if err != nil {
		if nackErr := delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: err.Error()}); nackErr != nil {
			return OperationResult{}, nackErr
		}
		return OperationResult{}, h.Service.mapError(err)
	}

	result, err := h.Service.Execute(ctx, action, req)
	if err != nil {
		opts := JobNackOptions{DeadLetter: true, Reason: err.Error()}
		if IsTransportFailure(err) {
			opts = JobNackOptions{Requeue: true, Delay: h.retryDelay(), Reason: err.Error()}
		}
		if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
			return result, nackErr
		}
		return result, err
	}
	if ackErr := delivery.Ack(ctx); ackErr != nil {
		return result, ackErr
	}
	return result, nil
}

// RunOnce pulls one delivery and handles it.
func (h OperationJobHandler) RunOnce(ctx context.Context, dequeuer JobDequeuer) (OperationResult, error) {
	if dequeuer == nil {
		return OperationResult{}, fmt.Errorf("core: job dequeuer is required")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return OperationResult{}, err
	}
	return h.Handle(ctx, delivery)
}

// Enqueue queues an operation for asynchronous execution.
func Enqueue(ctx context.Context, enqueuer JobEnqueuer, action Action, req PaymentRequest) (*JobExecutionMessage, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("core: job enqueuer is required")
	}
	msg, err := NewOperationJobMessage(action, req)
	if err != nil {
		return nil, err
	}
	if err := enqueuer.Enqueue(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (h OperationJobHandler) retryDelay() time.Duration {
	if h.RetryDelay > 0 {
		return h.RetryDelay
	}
	return 5 * time.Second
}

func setIfPresent(values map[string]any, key string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		values[key] = value
	}
}
