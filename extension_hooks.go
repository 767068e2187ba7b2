package gateways

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-gateways/core"
)

// GatewayPack groups gateways a downstream module ships together, e.g. a
// regional bundle of processors.
type GatewayPack struct {
	Name     string
	Gateways []core.Gateway
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	gatewayPacks map[string]GatewayPack
	bundles      map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		gatewayPacks: map[string]GatewayPack{},
		bundles:      map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterGatewayPack(pack GatewayPack) error {
	if h == nil {
		return fmt.Errorf("gateways: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("gateways: gateway pack name is required")
	}
	if len(pack.Gateways) == 0 {
		return fmt.Errorf("gateways: gateway pack %q has no gateways", name)
	}
	for _, gateway := range pack.Gateways {
		if gateway == nil {
			return fmt.Errorf("gateways: gateway pack %q contains nil gateway", name)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.gatewayPacks[name]; exists {
		return fmt.Errorf("gateways: gateway pack %q already registered", name)
	}
	h.gatewayPacks[name] = GatewayPack{
		Name:     name,
		Gateways: append([]core.Gateway(nil), pack.Gateways...),
	}
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("gateways: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("gateways: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("gateways: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("gateways: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyGatewayPacks registers every pack's gateways in pack name order. The
// first duplicate provider id aborts the run.
func (h *ExtensionHooks) ApplyGatewayPacks(registry core.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("gateways: registry is required")
	}
	for _, pack := range h.GatewayPacks() {
		for _, gateway := range pack.Gateways {
			if err := registry.Register(gateway); err != nil {
				return fmt.Errorf("gateways: apply pack %q: %w", pack.Name, err)
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("gateways: command/query service is required")
	}

	h.mu.RLock()
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(factories))
	for _, name := range sortedKeys(factories) {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) GatewayPacks() []GatewayPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]GatewayPack, 0, len(h.gatewayPacks))
	for _, name := range sortedKeys(h.gatewayPacks) {
		pack := h.gatewayPacks[name]
		out = append(out, GatewayPack{
			Name:     pack.Name,
			Gateways: append([]core.Gateway(nil), pack.Gateways...),
		})
	}
	return out
}

// SupportedActions lists the operations a packed gateway implements.
func (h *ExtensionHooks) SupportedActions(providerID string) []core.Action {
	providerID = strings.TrimSpace(providerID)
	for _, pack := range h.GatewayPacks() {
		for _, gateway := range pack.Gateways {
			if gateway.ID() != providerID {
				continue
			}
			out := []core.Action{}
			for _, action := range core.AllActions() {
				if core.Supports(gateway, action) {
					out = append(out, action)
				}
			}
			return out
		}
	}
	return nil
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](in map[string]V) []string {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
