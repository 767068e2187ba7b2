package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers/devkit"
)

type stubPaymentService struct {
	calls []core.Action
	err   error
}

func (s *stubPaymentService) run(action core.Action, req core.PaymentRequest) (core.OperationResult, error) {
	s.calls = append(s.calls, action)
	if s.err != nil {
		return core.OperationResult{}, s.err
	}
	return core.OperationResult{
		ProviderID: req.ProviderID,
		Action:     action,
		Outcome:    core.Outcome{Success: true, Authorization: "auth-" + string(action)},
	}, nil
}

func (s *stubPaymentService) Purchase(_ context.Context, req core.PaymentRequest) (core.OperationResult, error) {
	return s.run(core.ActionPurchase, req)
}

func (s *stubPaymentService) Authorize(_ context.Context, req core.PaymentRequest) (core.OperationResult, error) {
	return s.run(core.ActionAuthorize, req)
}

func (s *stubPaymentService) Capture(_ context.Context, req core.PaymentRequest) (core.OperationResult, error) {
	return s.run(core.ActionCapture, req)
}

func (s *stubPaymentService) Void(_ context.Context, req core.PaymentRequest) (core.OperationResult, error) {
	return s.run(core.ActionVoid, req)
}

func (s *stubPaymentService) Refund(_ context.Context, req core.PaymentRequest) (core.OperationResult, error) {
	return s.run(core.ActionRefund, req)
}

func (s *stubPaymentService) Verify(_ context.Context, req core.PaymentRequest) (core.OperationResult, error) {
	return s.run(core.ActionVerify, req)
}

func (s *stubPaymentService) Store(_ context.Context, req core.PaymentRequest) (core.OperationResult, error) {
	return s.run(core.ActionStore, req)
}

type stubEnqueuer struct {
	messages []*core.JobExecutionMessage
}

func (s *stubEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	s.messages = append(s.messages, msg)
	return nil
}

func TestPurchaseCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	svc := &stubPaymentService{}
	cmd := NewPurchaseCommand(svc)
	collector := gocmd.NewResult[core.OperationResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	req := devkit.CardRequest("cardnet", 100, "DOP")
	if err := cmd.Execute(ctx, PurchaseMessage{Request: req}); err != nil {
		t.Fatalf("execute purchase: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Action != core.ActionPurchase || result.Outcome.Authorization != "auth-purchase" {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestOperationCommands_DelegateToService(t *testing.T) {
	svc := &stubPaymentService{}
	ctx := context.Background()
	sourced := devkit.TokenRequest("acme", 100, "USD", "tok_1")
	referenced := sourced
	referenced.Authorization = "auth-1"

	steps := []struct {
		name string
		run  func() error
	}{
		{"authorize", func() error { return NewAuthorizeCommand(svc).Execute(ctx, AuthorizeMessage{Request: sourced}) }},
		{"capture", func() error { return NewCaptureCommand(svc).Execute(ctx, CaptureMessage{Request: referenced}) }},
		{"void", func() error { return NewVoidCommand(svc).Execute(ctx, VoidMessage{Request: referenced}) }},
		{"refund", func() error { return NewRefundCommand(svc).Execute(ctx, RefundMessage{Request: referenced}) }},
		{"verify", func() error { return NewVerifyCommand(svc).Execute(ctx, VerifyMessage{Request: sourced}) }},
		{"store", func() error { return NewStoreCommand(svc).Execute(ctx, StoreMessage{Request: sourced}) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("execute %s: %v", step.name, err)
		}
	}
	want := []core.Action{
		core.ActionAuthorize, core.ActionCapture, core.ActionVoid,
		core.ActionRefund, core.ActionVerify, core.ActionStore,
	}
	if len(svc.calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), svc.calls)
	}
	for i, action := range want {
		if svc.calls[i] != action {
			t.Fatalf("call %d: expected %s, got %s", i, action, svc.calls[i])
		}
	}
}

func TestOperationCommand_PropagatesServiceError(t *testing.T) {
	boom := errors.New("transport down")
	svc := &stubPaymentService{err: boom}
	err := NewPurchaseCommand(svc).Execute(context.Background(), PurchaseMessage{
		Request: devkit.TokenRequest("acme", 100, "USD", "tok_1"),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestEnqueueCommand_QueuesTokenOperation(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	collector := gocmd.NewResult[*core.JobExecutionMessage]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	req := devkit.TokenRequest("stripeintents", 2500, "USD", "pm_123")
	if err := NewEnqueueCommand(enqueuer).Execute(ctx, EnqueueMessage{Action: core.ActionPurchase, Request: req}); err != nil {
		t.Fatalf("execute enqueue: %v", err)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one queued message, got %d", len(enqueuer.messages))
	}
	queued, ok := collector.Load()
	if !ok || queued.JobID != core.JobIDOperation {
		t.Fatalf("expected stored job message, got %#v", queued)
	}
}

func TestCommands_RunAgainstService(t *testing.T) {
	fake := devkit.NewFakeREST(devkit.Reply(200, `{"ok":true,"id":"ch_1","message":"approved"}`))
	svc, err := core.NewService(core.DefaultConfig(), core.WithGateways(devkit.NewScriptedGateway("acme", fake)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	collector := gocmd.NewResult[core.OperationResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := NewPurchaseCommand(svc).Execute(ctx, PurchaseMessage{
		Request: devkit.TokenRequest("acme", 100, "USD", "tok_1"),
	}); err != nil {
		t.Fatalf("execute purchase: %v", err)
	}
	result, _ := collector.Load()
	if !result.Success() || result.Outcome.Authorization != "ch_1" {
		t.Fatalf("unexpected result %#v", result)
	}
}
