// Package gateways is the entry point for the payment gateway runtime. It
// re-exports the core service surface and wires the built-in providers.
package gateways

import "github.com/goliatone/go-gateways/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Gateway = core.Gateway
type TransportAdapter = core.TransportAdapter
type TransactionStore = core.TransactionStore
type TransactionSink = core.TransactionSink
type MetricsRecorder = core.MetricsRecorder

type Action = core.Action
type Money = core.Money
type PaymentSource = core.PaymentSource
type PaymentRequest = core.PaymentRequest
type Outcome = core.Outcome
type ChainResult = core.ChainResult
type OperationResult = core.OperationResult

type Transaction = core.Transaction
type TransactionFilter = core.TransactionFilter
type TransactionPage = core.TransactionPage

const (
	ActionPurchase  = core.ActionPurchase
	ActionAuthorize = core.ActionAuthorize
	ActionCapture   = core.ActionCapture
	ActionVoid      = core.ActionVoid
	ActionRefund    = core.ActionRefund
	ActionVerify    = core.ActionVerify
	ActionStore     = core.ActionStore
)

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithRegistry          = core.WithRegistry
	WithGateways          = core.WithGateways
	WithTransactionStore  = core.WithTransactionStore
	WithTransactionSink   = core.WithTransactionSink
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
