package command

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
)

const (
	TypePurchase  = "gateways.command.purchase"
	TypeAuthorize = "gateways.command.authorize"
	TypeCapture   = "gateways.command.capture"
	TypeVoid      = "gateways.command.void"
	TypeRefund    = "gateways.command.refund"
	TypeVerify    = "gateways.command.verify"
	TypeStore     = "gateways.command.store"
	TypeEnqueue   = "gateways.command.enqueue"
)

type PurchaseMessage struct {
	Request core.PaymentRequest
}

func (PurchaseMessage) Type() string { return TypePurchase }

func (m PurchaseMessage) Validate() error {
	return validateSourced(m.Request)
}

type AuthorizeMessage struct {
	Request core.PaymentRequest
}

func (AuthorizeMessage) Type() string { return TypeAuthorize }

func (m AuthorizeMessage) Validate() error {
	return validateSourced(m.Request)
}

type CaptureMessage struct {
	Request core.PaymentRequest
}

func (CaptureMessage) Type() string { return TypeCapture }

func (m CaptureMessage) Validate() error {
	return validateReferenced(m.Request)
}

type VoidMessage struct {
	Request core.PaymentRequest
}

func (VoidMessage) Type() string { return TypeVoid }

func (m VoidMessage) Validate() error {
	return validateReferenced(m.Request)
}

type RefundMessage struct {
	Request core.PaymentRequest
}

func (RefundMessage) Type() string { return TypeRefund }

func (m RefundMessage) Validate() error {
	return validateReferenced(m.Request)
}

type VerifyMessage struct {
	Request core.PaymentRequest
}

func (VerifyMessage) Type() string { return TypeVerify }

func (m VerifyMessage) Validate() error {
	return validateSourced(m.Request)
}

type StoreMessage struct {
	Request core.PaymentRequest
}

func (StoreMessage) Type() string { return TypeStore }

func (m StoreMessage) Validate() error {
	return validateSourced(m.Request)
}

// EnqueueMessage queues an operation for the job worker instead of running it
// inline.
type EnqueueMessage struct {
	Action  core.Action
	Request core.PaymentRequest
}

func (EnqueueMessage) Type() string { return TypeEnqueue }

func (m EnqueueMessage) Validate() error {
	if !m.Action.Valid() {
		return core.FieldError("command", "action", "must be a supported operation")
	}
	if err := validateProvider(m.Request); err != nil {
		return err
	}
	if m.Request.Source.Card != nil || m.Request.Source.Bank != nil {
		return core.FieldError("command", "source", "queued operations accept tokens only")
	}
	return nil
}

func validateProvider(req core.PaymentRequest) error {
	if strings.TrimSpace(req.ProviderID) == "" {
		return core.FieldError("command", "provider_id", "is required")
	}
	if err := req.Money.Validate(); err != nil {
		return core.WrapGatewayError(err, goerrors.CategoryValidation, "command: invalid amount", 0, "", nil)
	}
	return nil
}

func validateSourced(req core.PaymentRequest) error {
	if err := validateProvider(req); err != nil {
		return err
	}
	if err := req.Source.Validate(); err != nil {
		return core.WrapGatewayError(err, goerrors.CategoryValidation, "command: invalid payment source", 0, "", nil)
	}
	return nil
}

func validateReferenced(req core.PaymentRequest) error {
	if err := validateProvider(req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Authorization) == "" {
		return core.FieldError("command", "authorization", "is required")
	}
	return nil
}
