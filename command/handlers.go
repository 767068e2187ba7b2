package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
)

// PaymentService is the mutating surface of core.Service.
type PaymentService interface {
	Purchase(ctx context.Context, req core.PaymentRequest) (core.OperationResult, error)
	Authorize(ctx context.Context, req core.PaymentRequest) (core.OperationResult, error)
	Capture(ctx context.Context, req core.PaymentRequest) (core.OperationResult, error)
	Void(ctx context.Context, req core.PaymentRequest) (core.OperationResult, error)
	Refund(ctx context.Context, req core.PaymentRequest) (core.OperationResult, error)
	Verify(ctx context.Context, req core.PaymentRequest) (core.OperationResult, error)
	Store(ctx context.Context, req core.PaymentRequest) (core.OperationResult, error)
}

type PurchaseCommand struct {
	service PaymentService
}

func NewPurchaseCommand(service PaymentService) *PurchaseCommand {
	return &PurchaseCommand{service: service}
}

func (c *PurchaseCommand) Execute(ctx context.Context, msg PurchaseMessage) error {
	if c == nil || c.service == nil {
		return core.GatewayError("command: purchase service is required", goerrors.CategoryInternal, 0, "", nil)
	}
	return runOperation(ctx, c.service.Purchase, msg.Request)
}

type AuthorizeCommand struct {
	service PaymentService
}

func NewAuthorizeCommand(service PaymentService) *AuthorizeCommand {
	return &AuthorizeCommand{service: service}
}

func (c *AuthorizeCommand) Execute(ctx context.Context, msg AuthorizeMessage) error {
	if c == nil || c.service == nil {
		return core.GatewayError("command: authorize service is required", goerrors.CategoryInternal, 0, "", nil)
	}
	return runOperation(ctx, c.service.Authorize, msg.Request)
}

type CaptureCommand struct {
	service PaymentService
}

func NewCaptureCommand(service PaymentService) *CaptureCommand {
	return &CaptureCommand{service: service}
}

func (c *CaptureCommand) Execute(ctx context.Context, msg CaptureMessage) error {
	if c == nil || c.service == nil {
		return core.GatewayError("command: capture service is required", goerrors.CategoryInternal, 0, "", nil)
	}
	return runOperation(ctx, c.service.Capture, msg.Request)
}

type VoidCommand struct {
	service PaymentService
}

func NewVoidCommand(service PaymentService) *VoidCommand {
	return &VoidCommand{service: service}
}

func (c *VoidCommand) Execute(ctx context.Context, msg VoidMessage) error {
	if c == nil || c.service == nil {
		return core.GatewayError("command: void service is required", goerrors.CategoryInternal, 0, "", nil)
	}
	return runOperation(ctx, c.service.Void, msg.Request)
}

type RefundCommand struct {
	service PaymentService
}

func NewRefundCommand(service PaymentService) *RefundCommand {
	return &RefundCommand{service: service}
}

func (c *RefundCommand) Execute(ctx context.Context, msg RefundMessage) error {
	if c == nil || c.service == nil {
		return core.GatewayError("command: refund service is required", goerrors.CategoryInternal, 0, "", nil)
	}
	return runOperation(ctx, c.service.Refund, msg.Request)
}

type VerifyCommand struct {
	service PaymentService
}

func NewVerifyCommand(service PaymentService) *VerifyCommand {
	return &VerifyCommand{service: service}
}

func (c *VerifyCommand) Execute(ctx context.Context, msg VerifyMessage) error {
	if c == nil || c.service == nil {
		return core.GatewayError("command: verify service is required", goerrors.CategoryInternal, 0, "", nil)
	}
	return runOperation(ctx, c.service.Verify, msg.Request)
}

type StoreCommand struct {
	service PaymentService
}

func NewStoreCommand(service PaymentService) *StoreCommand {
	return &StoreCommand{service: service}
}

func (c *StoreCommand) Execute(ctx context.Context, msg StoreMessage) error {
	if c == nil || c.service == nil {
		return core.GatewayError("command: store service is required", goerrors.CategoryInternal, 0, "", nil)
	}
	return runOperation(ctx, c.service.Store, msg.Request)
}

// EnqueueCommand hands an operation to the job queue and stores the queued
// message as its result.
type EnqueueCommand struct {
	enqueuer core.JobEnqueuer
}

func NewEnqueueCommand(enqueuer core.JobEnqueuer) *EnqueueCommand {
	return &EnqueueCommand{enqueuer: enqueuer}
}

func (c *EnqueueCommand) Execute(ctx context.Context, msg EnqueueMessage) error {
	if c == nil || c.enqueuer == nil {
		return core.GatewayError("command: job enqueuer is required", goerrors.CategoryInternal, 0, "", nil)
	}
	queued, err := core.Enqueue(ctx, c.enqueuer, msg.Action, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, queued)
	return nil
}

func runOperation(
	ctx context.Context,
	run func(context.Context, core.PaymentRequest) (core.OperationResult, error),
	req core.PaymentRequest,
) error {
	out, err := run(ctx, req)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
