package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type GatewayRegistry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

func NewGatewayRegistry() *GatewayRegistry {
	return &GatewayRegistry{gateways: make(map[string]Gateway)}
}

func (r *GatewayRegistry) Register(gateway Gateway) error {
	if gateway == nil {
		return fmt.Errorf("core: gateway is nil")
	}
	id := strings.TrimSpace(gateway.ID())
	if id == "" {
		return fmt.Errorf("core: gateway id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.gateways[id]; exists {
		return fmt.Errorf("core: gateway already registered: %s", id)
	}
	r.gateways[id] = gateway
	return nil
}

func (r *GatewayRegistry) Get(providerID string) (Gateway, bool) {
	id := strings.TrimSpace(providerID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	gateway, ok := r.gateways[id]
	r.mu.RUnlock()
	return gateway, ok
}

func (r *GatewayRegistry) List() []Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.gateways))
	for id := range r.gateways {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	gateways := make([]Gateway, 0, len(keys))
	for _, id := range keys {
		gateways = append(gateways, r.gateways[id])
	}
	return gateways
}

var _ Registry = (*GatewayRegistry)(nil)
