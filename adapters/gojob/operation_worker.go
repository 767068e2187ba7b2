package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-gateways/core"

	"github.com/goliatone/go-job/queue"
)

// OperationWorker drains queued gateway operations one delivery at a time and
// reports each run to an optional worker hook.
type OperationWorker struct {
	handler  core.OperationJobHandler
	dequeuer queue.Dequeuer
	policy   RetryPolicy
	hook     core.JobWorkerHook
	now      func() time.Time
}

type OperationWorkerOption func(*OperationWorker)

func WithRetryPolicy(policy RetryPolicy) OperationWorkerOption {
	return func(w *OperationWorker) {
		w.policy = policy
	}
}

func WithRetryDelay(delay time.Duration) OperationWorkerOption {
	return func(w *OperationWorker) {
		w.handler.RetryDelay = delay
	}
}

func WithWorkerHook(hook core.JobWorkerHook) OperationWorkerOption {
	return func(w *OperationWorker) {
		w.hook = hook
	}
}

func WithClock(now func() time.Time) OperationWorkerOption {
	return func(w *OperationWorker) {
		if now != nil {
			w.now = now
		}
	}
}

func NewOperationWorker(service *core.Service, dequeuer queue.Dequeuer, opts ...OperationWorkerOption) *OperationWorker {
	w := &OperationWorker{
		handler:  core.OperationJobHandler{Service: service},
		dequeuer: dequeuer,
		policy:   DefaultRetryPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// RunOnce dequeues and executes a single operation. Declines are acked and
// returned as a successful run; transport failures are requeued and surface
// as a retry event.
func (w *OperationWorker) RunOnce(ctx context.Context) (core.OperationResult, error) {
	if w == nil || w.dequeuer == nil {
		return core.OperationResult{}, fmt.Errorf("gojob: dequeuer is not configured")
	}
	raw, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return core.OperationResult{}, err
	}
	return w.handle(ctx, raw)
}

// Run keeps draining until the context is cancelled or the dequeuer fails.
// Operation errors are reported through the hook and do not stop the loop.
func (w *OperationWorker) Run(ctx context.Context) error {
	if w == nil || w.dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is not configured")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			return err
		}
		_, _ = w.handle(ctx, raw)
	}
}

func (w *OperationWorker) handle(ctx context.Context, raw queue.Delivery) (core.OperationResult, error) {
	delivery := NewDeliveryAdapter(raw, w.policy)
	event := core.JobWorkerEvent{
		Message:   delivery.Message(),
		Attempt:   1,
		StartedAt: w.now(),
	}
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}

	result, err := w.handler.Handle(ctx, delivery)
	event.Duration = w.now().Sub(event.StartedAt)
	event.Err = err
	if w.hook == nil {
		return result, err
	}
	switch {
	case err == nil:
		w.hook.OnSuccess(ctx, event)
	case core.IsTransportFailure(err):
		event.Delay = w.handler.RetryDelay
		w.hook.OnRetry(ctx, event)
	default:
		w.hook.OnFailure(ctx, event)
	}
	return result, err
}
