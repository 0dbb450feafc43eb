package payment

import (
	"fmt"
	"sync"

	"github.com/veralix/server/internal/module/payment/provider"
)

// GatewayRegistry manages the configured payment gateways.
type GatewayRegistry struct {
	mu       sync.RWMutex
	gateways map[string]provider.Gateway
}

// NewGatewayRegistry creates a new gateway registry.
func NewGatewayRegistry() *GatewayRegistry {
	return &GatewayRegistry{
		gateways: make(map[string]provider.Gateway),
	}
}

// Register registers a gateway.
func (r *GatewayRegistry) Register(g provider.Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Name()] = g
}

// Get returns a gateway by name.
func (r *GatewayRegistry) Get(name string) (provider.Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGatewayNotFound, name)
	}
	return g, nil
}

// List returns all registered gateway names.
func (r *GatewayRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}
