package gocommand

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	goerrors "github.com/goliatone/go-errors"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	"github.com/goliatone/go-gateways/core"
)

// ValidateMessageContract requires a non-empty Type() and runs Validate() when
// the message has one. Failures are bad input envelopes.
func ValidateMessageContract(msg any) error {
	typed, ok := msg.(command.Message)
	if !ok {
		return badMessage("gocommand: message must implement Type() string", nil, msg)
	}
	if strings.TrimSpace(typed.Type()) == "" {
		return badMessage("gocommand: message type is required", nil, msg)
	}
	if err := command.ValidateMessage(msg); err != nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			return err
		}
		return badMessage("gocommand: message failed validation", err, msg)
	}
	return nil
}

// RegistryAdapter owns a go-command registry and the dispatcher subscriptions
// made through it, so one Close releases a whole wiring.
type RegistryAdapter struct {
	registry *command.Registry

	mu   sync.Mutex
	subs Subscriptions
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(cmd)
}

// RegisterQuery registers a querier. go-command keeps commands and queries in
// one registry.
func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if err := a.ready(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" || resolver == nil {
		return badMessage("gocommand: resolver key and function are required", nil, nil)
	}
	return a.registry.AddResolver(key, resolver)
}

// AddQueueResolver mirrors every registered command into a go-job queue
// registry, which lets queued operations find their handler by type.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return badMessage("gocommand: queue registry is required", nil, nil)
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a.ready() != nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.Initialize()
}

// Subscriptions returns the subscriptions made through the adapter so far.
func (a *RegistryAdapter) Subscriptions() Subscriptions {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return append(Subscriptions(nil), a.subs...)
}

// Close unsubscribes everything subscribed through the adapter.
func (a *RegistryAdapter) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	subs := a.subs
	a.subs = nil
	a.mu.Unlock()
	subs.Unsubscribe()
}

func (a *RegistryAdapter) track(sub commanddispatcher.Subscription) {
	a.mu.Lock()
	a.subs = append(a.subs, sub)
	a.mu.Unlock()
}

func (a *RegistryAdapter) ready() error {
	if a == nil || a.registry == nil {
		return core.GatewayError("gocommand: registry is not configured", goerrors.CategoryInternal, 0, "", nil)
	}
	return nil
}

// Dispatch checks the message contract and sends it to its subscribed command.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

// Query checks the message contract and asks its subscribed querier.
func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessageContract(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe registers cmd and subscribes it on the dispatcher. A
// failed registration drops the subscription again.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, badMessage("gocommand: command is required", nil, nil)
	}
	sub := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil, err
	}
	adapter.track(sub)
	return sub, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	if qry == nil {
		return nil, badMessage("gocommand: query is required", nil, nil)
	}
	sub := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil, err
	}
	adapter.track(sub)
	return sub, nil
}

func badMessage(message string, cause error, msg any) error {
	var metadata map[string]any
	if typed, ok := msg.(command.Message); ok {
		metadata = map[string]any{"message_type": typed.Type()}
	}
	return core.WrapGatewayError(cause, goerrors.CategoryBadInput, message, 0, "", metadata)
}
