package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

var (
	ErrGatewayNotRegistered   = errors.New("core: gateway not registered")
	ErrCapabilityNotSupported = errors.New("core: capability not supported")
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	registry          Registry
	transactionSink   TransactionSink
	transactionReader TransactionReader
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	Registry          Registry
	TransactionSink   TransactionSink
	TransactionReader TransactionReader
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("gateways", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("gateways"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewGatewayRegistry()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.transactionStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			store, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			builder.transactionStore = store
		} else if store, ok := builder.repositoryFactory.(TransactionStore); ok {
			builder.transactionStore = store
		}
	}

	sink := builder.transactionSink
	var reader TransactionReader
	if builder.transactionStore != nil {
		if sink == nil {
			sink = builder.transactionStore
		}
		reader = builder.transactionStore
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		registry:          builder.registry,
		transactionSink:   sink,
		transactionReader: reader,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		Registry:          s.registry,
		TransactionSink:   s.transactionSink,
		TransactionReader: s.transactionReader,
	}
}

func (s *Service) RegisterGateway(gateway Gateway) error {
	if s == nil || s.registry == nil {
		return fmt.Errorf("core: registry is required")
	}
	if err := s.registry.Register(gateway); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) Gateways() []Gateway {
	if s == nil || s.registry == nil {
		return nil
	}
	return s.registry.List()
}

func (s *Service) Purchase(ctx context.Context, req PaymentRequest) (OperationResult, error) {
	return s.execute(ctx, ActionPurchase, req)
}

func (s *Service) Authorize(ctx context.Context, req PaymentRequest) (OperationResult, error) {
	return s.execute(ctx, ActionAuthorize, req)
}

func (s *Service) Capture(ctx context.Context, req PaymentRequest) (OperationResult, error) {
	return s.execute(ctx, ActionCapture, req)
}

func (s *Service) Void(ctx context.Context, req PaymentRequest) (OperationResult, error) {
	return s.execute(ctx, ActionVoid, req)
}

func (s *Service) Refund(ctx context.Context, req PaymentRequest) (OperationResult, error) {
	return s.execute(ctx, ActionRefund, req)
}

func (s *Service) Verify(ctx context.Context, req PaymentRequest) (OperationResult, error) {
	return s.execute(ctx, ActionVerify, req)
}

func (s *Service) Store(ctx context.Context, req PaymentRequest) (OperationResult, error) {
	return s.execute(ctx, ActionStore, req)
}

// Execute dispatches an operation by action name.
func (s *Service) Execute(ctx context.Context, action Action, req PaymentRequest) (OperationResult, error) {
	if !action.Valid() {
		return OperationResult{}, s.mapError(fmt.Errorf("core: invalid action %q", action))
	}
	return s.execute(ctx, action, req)
}

// Scrub redacts a captured transcript with the provider's rules.
func (s *Service) Scrub(providerID string, transcript string) (string, error) {
	gateway, err := s.resolveGateway(providerID)
	if err != nil {
		return "", err
	}
	return gateway.Scrub(transcript), nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	if s == nil || s.transactionReader == nil {
		return Transaction{}, s.mapError(ErrTransactionStoreNeeded)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Transaction{}, s.mapError(fmt.Errorf("core: transaction id is required"))
	}
	txn, err := s.transactionReader.Get(ctx, id)
	if err != nil {
		return Transaction{}, s.mapError(err)
	}
	return txn, nil
}

func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) (TransactionPage, error) {
	if s == nil || s.transactionReader == nil {
		return TransactionPage{}, s.mapError(ErrTransactionStoreNeeded)
	}
	filter.ProviderID = strings.TrimSpace(filter.ProviderID)
	if filter.Limit < 0 || filter.Offset < 0 {
		return TransactionPage{}, s.mapError(fmt.Errorf("core: limit and offset must not be negative"))
	}
	page, err := s.transactionReader.List(ctx, filter)
	if err != nil {
		return TransactionPage{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) execute(ctx context.Context, action Action, req PaymentRequest) (result OperationResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now().UTC()
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	fields := map[string]any{
		"provider_id": req.ProviderID,
		"action":      string(action),
		"amount":      req.Money.Major(),
		"currency":    req.Money.Currency,
		"source":      req.Source.Kind(),
	}
	if req.OrderID != "" {
		fields["order_id"] = req.OrderID
	}
	defer func() {
		s.observeOperation(ctx, startedAt, string(action), result, err, fields)
	}()

	if s == nil {
		return OperationResult{}, fmt.Errorf("core: service is nil")
	}
	if err = validatePaymentRequest(action, req); err != nil {
		err = s.mapError(err)
		return OperationResult{}, err
	}
	gateway, err := s.resolveGateway(req.ProviderID)
	if err != nil {
		return OperationResult{}, err
	}
	run, err := capabilityFor(gateway, action)
	if err != nil {
		err = s.mapError(err)
		return OperationResult{}, err
	}

	callCtx := ctx
	if timeout := s.config.Transport.TimeoutSeconds; timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	var transcript *TranscriptBuffer
	if s.config.Transcripts.Enabled {
		callCtx, transcript = ContextWithTranscript(callCtx)
	}

	chain, runErr := run(callCtx, req)
	result = OperationResult{
		ProviderID: gateway.ID(),
		Action:     action,
		Outcome:    chain.Primary,
		Chain:      chain,
	}
	if transcript != nil {
		result.Transcript = truncateTranscript(gateway.Scrub(transcript.String()), s.config.Transcripts.MaxBytes)
	}
	if runErr != nil {
		err = s.mapError(runErr)
		return result, err
	}
	if !chain.HasPrimary() {
		err = s.mapError(fmt.Errorf("core: gateway %s returned no outcome for %s", gateway.ID(), action))
		return result, err
	}

	if s.transactionSink != nil {
		recorded, recordErr := s.transactionSink.Record(ctx, buildTransaction(req, result))
		if recordErr != nil {
			err = s.mapError(recordErr)
			return result, err
		}
		result.TransactionID = recorded.ID
	}
	return result, nil
}

func (s *Service) resolveGateway(providerID string) (Gateway, error) {
	if s == nil || s.registry == nil {
		return nil, fmt.Errorf("core: registry is required")
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, s.mapError(fmt.Errorf("core: provider id is required"))
	}
	gateway, ok := s.registry.Get(providerID)
	if !ok {
		return nil, s.mapError(fmt.Errorf("%w: %s", ErrGatewayNotRegistered, providerID))
	}
	return gateway, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

type capabilityFunc func(ctx context.Context, req PaymentRequest) (ChainResult, error)

func capabilityFor(gateway Gateway, action Action) (capabilityFunc, error) {
	var run capabilityFunc
	switch action {
	case ActionPurchase:
		if capability, ok := gateway.(Purchaser); ok {
			run = capability.Purchase
		}
	case ActionAuthorize:
		if capability, ok := gateway.(Authorizer); ok {
			run = capability.Authorize
		}
	case ActionCapture:
		if capability, ok := gateway.(Capturer); ok {
			run = capability.Capture
		}
	case ActionVoid:
		if capability, ok := gateway.(Voider); ok {
			run = capability.Void
		}
	case ActionRefund:
		if capability, ok := gateway.(Refunder); ok {
			run = capability.Refund
		}
	case ActionVerify:
		if capability, ok := gateway.(Verifier); ok {
			run = capability.Verify
		}
	case ActionStore:
		if capability, ok := gateway.(Storer); ok {
			run = capability.Store
		}
	}
	if run == nil {
		return nil, fmt.Errorf("%w: gateway %s does not support %s", ErrCapabilityNotSupported, gateway.ID(), action)
	}
	return run, nil
}

// Supports reports whether a gateway implements the action.
func Supports(gateway Gateway, action Action) bool {
	if gateway == nil {
		return false
	}
	_, err := capabilityFor(gateway, action)
	return err == nil
}

func validatePaymentRequest(action Action, req PaymentRequest) error {
	if req.ProviderID == "" {
		return fmt.Errorf("core: provider id is required")
	}
	if err := req.Money.Validate(); err != nil {
		return err
	}
	switch action {
	case ActionPurchase, ActionAuthorize, ActionVerify, ActionStore:
		if err := req.Source.Validate(); err != nil {
			return err
		}
	case ActionCapture, ActionVoid, ActionRefund:
		if strings.TrimSpace(req.Authorization) == "" {
			return fmt.Errorf("%w for %s", ErrAuthorizationRequired, action)
		}
	}
	return nil
}

func buildTransaction(req PaymentRequest, result OperationResult) Transaction {
	steps := make([]string, 0, len(result.Chain.Steps))
	for _, step := range result.Chain.Steps {
		steps = append(steps, step.Name)
	}
	raw := map[string]any{}
	switch typed := result.Outcome.Raw.(type) {
	case map[string]any:
		raw = RedactSensitiveMap(typed)
	case nil:
	default:
		raw["value"] = RedactSensitiveValue(typed)
	}
	return Transaction{
		ProviderID:    result.ProviderID,
		Action:        result.Action,
		Success:       result.Outcome.Success,
		Message:       result.Outcome.Message,
		Authorization: result.Outcome.Authorization,
		ErrorCode:     result.Outcome.ErrorCode,
		Test:          result.Outcome.Test,
		Amount:        req.Money.Major(),
		Currency:      req.Money.Currency,
		OrderID:       req.OrderID,
		Steps:         steps,
		Raw:           raw,
		Transcript:    result.Transcript,
	}
}
