package gateways

import (
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/webhooks"
)

type Notification = webhooks.Notification
type NotificationResult = webhooks.Result

// NewNotificationProcessor builds a processor for template that records
// updates through the service's transaction sink and logs with its logger. A
// nil ledger keeps claims in memory.
func NewNotificationProcessor(service *Service, template webhooks.Template, ledger webhooks.DeliveryLedger) (*webhooks.Processor, error) {
	if service == nil {
		return nil, core.ErrTransactionStoreNeeded
	}
	deps := service.Dependencies()
	if deps.TransactionSink == nil {
		return nil, core.ErrTransactionStoreNeeded
	}
	if ledger == nil {
		ledger = webhooks.NewMemoryLedger()
	}
	processor := template.Processor(ledger, deps.TransactionSink)
	processor.Logger = deps.Logger
	return processor, nil
}
