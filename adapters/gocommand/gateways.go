package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	gatewayscommand "github.com/goliatone/go-gateways/command"
	"github.com/goliatone/go-gateways/core"
	gatewaysquery "github.com/goliatone/go-gateways/query"
)

// Subscriptions collects the dispatcher subscriptions made for one registration
// so they can be released together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterGatewayCommands registers and subscribes the payment commands. The
// enqueue command is only wired when an enqueuer is provided.
func RegisterGatewayCommands(
	adapter *RegistryAdapter,
	service gatewayscommand.PaymentService,
	enqueuer core.JobEnqueuer,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if service == nil {
		return nil, fmt.Errorf("gocommand: payment service is required")
	}
	var subs Subscriptions
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	if err := register(RegisterAndSubscribe(adapter, gatewayscommand.NewPurchaseCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, gatewayscommand.NewAuthorizeCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, gatewayscommand.NewCaptureCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, gatewayscommand.NewVoidCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, gatewayscommand.NewRefundCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, gatewayscommand.NewVerifyCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, gatewayscommand.NewStoreCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if enqueuer != nil {
		if err := register(RegisterAndSubscribe(adapter, gatewayscommand.NewEnqueueCommand(enqueuer), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

// RegisterTransactionQueries registers and subscribes the transaction read
// queries.
func RegisterTransactionQueries(
	adapter *RegistryAdapter,
	reader gatewaysquery.TransactionReader,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if reader == nil {
		return nil, fmt.Errorf("gocommand: transaction reader is required")
	}
	getSub, err := RegisterAndSubscribeQuery(adapter, gatewaysquery.NewGetTransactionQuery(reader), runnerOpts...)
	if err != nil {
		return nil, err
	}
	listSub, err := RegisterAndSubscribeQuery(adapter, gatewaysquery.NewListTransactionsQuery(reader), runnerOpts...)
	if err != nil {
		getSub.Unsubscribe()
		return nil, err
	}
	return Subscriptions{getSub, listSub}, nil
}
