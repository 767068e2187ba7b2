package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-gateways/core"
)

var (
	_ gocmd.Commander[PurchaseMessage]  = (*PurchaseCommand)(nil)
	_ gocmd.Commander[AuthorizeMessage] = (*AuthorizeCommand)(nil)
	_ gocmd.Commander[CaptureMessage]   = (*CaptureCommand)(nil)
	_ gocmd.Commander[VoidMessage]      = (*VoidCommand)(nil)
	_ gocmd.Commander[RefundMessage]    = (*RefundCommand)(nil)
	_ gocmd.Commander[VerifyMessage]    = (*VerifyCommand)(nil)
	_ gocmd.Commander[StoreMessage]     = (*StoreCommand)(nil)
	_ gocmd.Commander[EnqueueMessage]   = (*EnqueueCommand)(nil)

	_ PaymentService = (*core.Service)(nil)
)
