package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-gateways/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func refundRequest() core.PaymentRequest {
	return core.PaymentRequest{
		ProviderID:    "hsbc",
		Money:         core.MoneyFromCents(1250, "EUR"),
		Authorization: "auth-9",
		OrderID:       "order-44",
		Options:       map[string]any{"reason": "duplicate"},
	}
}

func TestQueuedRefundSurvivesGoJob(t *testing.T) {
	ctx := context.Background()
	queued := &memoryQueue{}

	msg, err := core.Enqueue(ctx, NewEnqueuerAdapter(queued), core.ActionRefund, refundRequest())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(queued.pending) != 1 || queued.pending[0].JobID != JobIDOperation {
		t.Fatalf("expected one go-job message, got %+v", queued.pending)
	}
	if got := string(queued.pending[0].DedupPolicy); got != msg.DedupPolicy {
		t.Fatalf("expected dedup policy %q on the wire, got %q", msg.DedupPolicy, got)
	}

	delivery, err := NewDequeuerAdapter(queued, DefaultRetryPolicy()).Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	action, req, err := core.DecodeOperationJobMessage(delivery.Message())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if action != core.ActionRefund || req.Authorization != "auth-9" || req.Money.Cents() != 1250 || req.Money.Currency != "EUR" {
		t.Fatalf("unexpected decoded operation %s %+v", action, req)
	}
	if req.IdempotencyKey != msg.IdempotencyKey || req.Options["reason"] != "duplicate" {
		t.Fatalf("expected key and options to survive, got %+v", req)
	}

	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !queued.last.acked {
		t.Fatalf("expected ack to reach go-job")
	}
}

func TestMessageMapping_ClonesParameters(t *testing.T) {
	params := map[string]any{"provider_id": "cardnet"}
	converted := ToExecutionMessage(&core.JobExecutionMessage{JobID: " " + JobIDOperation + " ", Parameters: params})
	params["provider_id"] = "mutated"

	if converted.JobID != JobIDOperation || converted.Parameters["provider_id"] != "cardnet" {
		t.Fatalf("expected trimmed id and copied parameters, got %+v", converted)
	}
	if ToExecutionMessage(nil) != nil || FromExecutionMessage(nil) != nil {
		t.Fatalf("nil messages map to nil")
	}
}

func TestDeliveryAdapter_NackBounds(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MaxDelay: 10 * time.Second, DeadLetterOnMax: true}
	cases := []struct {
		name       string
		opts       core.JobNackOptions
		attempt    int
		delay      time.Duration
		requeue    bool
		deadLetter bool
	}{
		{name: "delay clamped", opts: core.JobNackOptions{Delay: 30 * time.Second, Requeue: true}, attempt: 1, delay: 10 * time.Second, requeue: true},
		{name: "negative delay", opts: core.JobNackOptions{Delay: -time.Second}, attempt: 2, requeue: true},
		{name: "max attempts", opts: core.JobNackOptions{Delay: time.Second, Requeue: true}, attempt: 3, delay: time.Second, deadLetter: true},
		{name: "explicit dead letter", opts: core.JobNackOptions{DeadLetter: true, Requeue: true}, attempt: 1, deadLetter: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := &recordedDelivery{msg: &job.ExecutionMessage{JobID: JobIDOperation}}
			if err := NewDeliveryAdapter(raw, policy).NackForAttempt(context.Background(), tc.opts, tc.attempt); err != nil {
				t.Fatalf("nack: %v", err)
			}
			got := raw.nack
			if got.Delay != tc.delay || got.Requeue != tc.requeue || got.DeadLetter != tc.deadLetter {
				t.Fatalf("unexpected nack %+v", got)
			}
		})
	}
}

func TestDefaultRetryPolicy_DeadLettersAfterFifthAttempt(t *testing.T) {
	policy := DefaultRetryPolicy()
	early := policy.Bound(core.JobNackOptions{Delay: time.Hour, Reason: " gateway down "}, 2)
	if !early.Requeue || early.DeadLetter || early.Delay != 5*time.Minute || early.Reason != "gateway down" {
		t.Fatalf("unexpected early nack %#v", early)
	}
	late := policy.Bound(core.JobNackOptions{Requeue: true}, 5)
	if late.Requeue || !late.DeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %#v", late)
	}
}

func TestEnqueuerAdapter_RejectsMessageWithoutJobID(t *testing.T) {
	queued := &memoryQueue{}
	err := NewEnqueuerAdapter(queued).Enqueue(context.Background(), &core.JobExecutionMessage{ScriptPath: core.OperationJobScriptPath})
	if err == nil {
		t.Fatalf("expected missing job id error")
	}
	if len(queued.pending) != 0 {
		t.Fatalf("nothing should reach the queue")
	}
}

func TestWorkerHookAdapter_ForwardsEachPhase(t *testing.T) {
	hook := &phaseHook{}
	adapter := NewWorkerHookAdapter(hook)
	startedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	event := worker.Event{
		Message:   &job.ExecutionMessage{JobID: JobIDOperation, IdempotencyKey: "capture:stripeintents:1:pi_1"},
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("gateway timeout"),
		StartedAt: startedAt,
		Duration:  250 * time.Millisecond,
	}

	ctx := context.Background()
	adapter.OnStart(ctx, event)
	adapter.OnRetry(ctx, event)
	adapter.OnFailure(ctx, event)
	adapter.OnSuccess(ctx, event)

	if want := []string{"start", "retry", "failure", "success"}; len(hook.phases) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, hook.phases)
	}
	last := hook.last
	if last.Message == nil || last.Message.IdempotencyKey != "capture:stripeintents:1:pi_1" {
		t.Fatalf("expected mapped message, got %+v", last.Message)
	}
	if last.Attempt != 2 || last.Delay != 5*time.Second || last.Duration != 250*time.Millisecond || !last.StartedAt.Equal(startedAt) {
		t.Fatalf("unexpected event mapping %+v", last)
	}
	if last.Err == nil || last.Err.Error() != "gateway timeout" {
		t.Fatalf("expected error to be forwarded, got %v", last.Err)
	}

	var unset *WorkerHookAdapter
	unset.OnStart(ctx, event)
}

// memoryQueue is a FIFO go-job queue holding messages in memory.
type memoryQueue struct {
	pending []*job.ExecutionMessage
	last    *recordedDelivery
}

func (q *memoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.pending = append(q.pending, msg)
	return nil
}

func (q *memoryQueue) Dequeue(context.Context) (queue.Delivery, error) {
	if len(q.pending) == 0 {
		return nil, errors.New("queue empty")
	}
	q.last = &recordedDelivery{msg: q.pending[0]}
	q.pending = q.pending[1:]
	return q.last, nil
}

type recordedDelivery struct {
	msg   *job.ExecutionMessage
	acked bool
	nack  queue.NackOptions
}

func (d *recordedDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *recordedDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *recordedDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.nack = opts
	return nil
}

type phaseHook struct {
	phases []string
	last   core.JobWorkerEvent
}

func (h *phaseHook) OnStart(_ context.Context, e core.JobWorkerEvent)   { h.record("start", e) }
func (h *phaseHook) OnSuccess(_ context.Context, e core.JobWorkerEvent) { h.record("success", e) }
func (h *phaseHook) OnFailure(_ context.Context, e core.JobWorkerEvent) { h.record("failure", e) }
func (h *phaseHook) OnRetry(_ context.Context, e core.JobWorkerEvent)   { h.record("retry", e) }

func (h *phaseHook) record(phase string, event core.JobWorkerEvent) {
	h.phases = append(h.phases, phase)
	h.last = event
}
