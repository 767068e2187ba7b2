package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers/devkit"

	"github.com/goliatone/go-job/queue"
)

func newWorkerFixture(t *testing.T, scripts ...devkit.TransportScript) (*core.Service, *stubQueueDelivery) {
	t.Helper()
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithGateways(devkit.NewScriptedGateway("acme", devkit.NewFakeREST(scripts...))),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	msg, err := core.NewOperationJobMessage(core.ActionPurchase, devkit.TokenRequest("acme", 1500, "USD", "tok_1"))
	if err != nil {
		t.Fatalf("new job message: %v", err)
	}
	return svc, &stubQueueDelivery{msg: ToExecutionMessage(msg)}
}

func TestOperationWorker_RunOnceAcksApprovedOperation(t *testing.T) {
	svc, delivery := newWorkerFixture(t, devkit.Reply(200, `{"ok":true,"id":"ch_9","message":"approved"}`))
	hook := &capturingHook{}
	worker := NewOperationWorker(svc, &stubQueueDequeuer{delivery: delivery}, WithWorkerHook(hook))

	result, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !result.Success() || result.Outcome.Authorization != "ch_9" {
		t.Fatalf("unexpected result %#v", result)
	}
	if !delivery.acked {
		t.Fatalf("expected delivery to be acked")
	}
	if len(hook.phases) != 2 || hook.phases[0] != "start" || hook.phases[1] != "success" {
		t.Fatalf("unexpected hook phases %v", hook.phases)
	}
	if hook.last.Message == nil || hook.last.Message.JobID != JobIDOperation {
		t.Fatalf("expected job message on hook event")
	}
}

func TestOperationWorker_RunOnceRequeuesTransportFailure(t *testing.T) {
	svc, delivery := newWorkerFixture(t, devkit.Failure(goerrors.New("transport: timeout", goerrors.CategoryExternal)))
	hook := &capturingHook{}
	worker := NewOperationWorker(svc, &stubQueueDequeuer{delivery: delivery},
		WithWorkerHook(hook),
		WithRetryDelay(2*time.Second),
		WithRetryPolicy(RetryPolicy{MaxDelay: time.Second}),
	)

	if _, err := worker.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}
	if delivery.acked {
		t.Fatalf("transport failures must not be acked")
	}
	if !delivery.nackOpts.Requeue || delivery.nackOpts.Delay != time.Second {
		t.Fatalf("expected bounded requeue, got %#v", delivery.nackOpts)
	}
	if hook.phases[len(hook.phases)-1] != "retry" {
		t.Fatalf("expected retry event, got %v", hook.phases)
	}
}

func TestOperationWorker_RunStopsOnDequeueError(t *testing.T) {
	svc, _ := newWorkerFixture(t)
	boom := errors.New("queue closed")
	worker := NewOperationWorker(svc, failingDequeuer{err: boom})
	if err := worker.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected dequeue error, got %v", err)
	}
}

func TestOperationWorker_RequiresDequeuer(t *testing.T) {
	if _, err := NewOperationWorker(nil, nil).RunOnce(context.Background()); err == nil {
		t.Fatalf("expected configuration error")
	}
}

type failingDequeuer struct {
	err error
}

func (f failingDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return nil, f.err
}
