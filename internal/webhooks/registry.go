package webhooks

import (
	"fmt"
	"sync"

	"github.com/s8nclone/receipt-pipeline/pkg/config"
)

// Registry resolves the Provider for an inbound path segment (§6:
// "POST /webhooks/payment/<provider>").
type Registry struct {
	mu            sync.RWMutex
	providers     map[string]Provider
	allowMock     bool
	fallbackSecret string
}

func NewRegistry(cfg config.WebhookConfig) *Registry {
	r := &Registry{
		providers:      make(map[string]Provider),
		allowMock:      cfg.AllowMockProvider,
		fallbackSecret: cfg.GenericSecret,
	}
	r.Register(NewStripeProvider(cfg.StripeSecret))
	r.Register(NewGenericProvider("generic", cfg.GenericSecret))
	if cfg.AllowMockProvider {
		r.Register(NewMockProvider())
	}
	return r
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Resolve returns the provider named by the path, falling back to identity-mapping generic
// normalization for any name the registry hasn't seen (§6: "unknown providers use identity
// mapping").
func (r *Registry) Resolve(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == ProviderMock && !r.allowMock {
		return nil, fmt.Errorf("mock provider disabled")
	}
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	return &hmacProvider{name: name, secret: r.fallbackSecret}, nil
}
