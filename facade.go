package gateways

import (
	"context"
	"fmt"

	gatewayscommand "github.com/goliatone/go-gateways/command"
	"github.com/goliatone/go-gateways/core"
	gatewaysquery "github.com/goliatone/go-gateways/query"
)

type CommandQueryService interface {
	gatewayscommand.PaymentService
	gatewaysquery.TransactionReader
}

type Commands struct {
	Purchase  *gatewayscommand.PurchaseCommand
	Authorize *gatewayscommand.AuthorizeCommand
	Capture   *gatewayscommand.CaptureCommand
	Void      *gatewayscommand.VoidCommand
	Refund    *gatewayscommand.RefundCommand
	Verify    *gatewayscommand.VerifyCommand
	Store     *gatewayscommand.StoreCommand
	// Enqueue is nil unless the facade was built with an enqueuer.
	Enqueue *gatewayscommand.EnqueueCommand
}

type Queries struct {
	GetTransaction   *gatewaysquery.GetTransactionQuery
	ListTransactions *gatewaysquery.ListTransactionsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	transactionReader gatewaysquery.TransactionReader
	enqueuer          core.JobEnqueuer
}

func WithTransactionReader(reader gatewaysquery.TransactionReader) FacadeOption {
	return func(options *facadeOptions) {
		options.transactionReader = reader
	}
}

func WithJobEnqueuer(enqueuer core.JobEnqueuer) FacadeOption {
	return func(options *facadeOptions) {
		options.enqueuer = enqueuer
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("gateways: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.transactionReader
	if reader == nil {
		reader = resolveTransactionReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Purchase:  gatewayscommand.NewPurchaseCommand(service),
		Authorize: gatewayscommand.NewAuthorizeCommand(service),
		Capture:   gatewayscommand.NewCaptureCommand(service),
		Void:      gatewayscommand.NewVoidCommand(service),
		Refund:    gatewayscommand.NewRefundCommand(service),
		Verify:    gatewayscommand.NewVerifyCommand(service),
		Store:     gatewayscommand.NewStoreCommand(service),
	}
	if cfg.enqueuer != nil {
		facade.commands.Enqueue = gatewayscommand.NewEnqueueCommand(cfg.enqueuer)
	}
	facade.queries = Queries{
		GetTransaction:   gatewaysquery.NewGetTransactionQuery(reader),
		ListTransactions: gatewaysquery.NewListTransactionsQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// storeSource is implemented by repository factories that keep the store they
// built, such as sqlstore.RepositoryFactory.
type storeSource interface {
	Store() core.TransactionStore
}

// resolveTransactionReader prefers the repository factory's store when the
// service was built with one and falls back to the service itself.
func resolveTransactionReader(service CommandQueryService) gatewaysquery.TransactionReader {
	withDeps, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return service
	}
	source, ok := withDeps.Dependencies().RepositoryFactory.(storeSource)
	if !ok {
		return service
	}
	if store := source.Store(); store != nil {
		return storeReader{store: store}
	}
	return service
}

// storeReader adapts a core.TransactionReader to the query contract.
type storeReader struct {
	store core.TransactionReader
}

func (r storeReader) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return r.store.Get(ctx, id)
}

func (r storeReader) ListTransactions(ctx context.Context, filter core.TransactionFilter) (core.TransactionPage, error) {
	return r.store.List(ctx, filter)
}
