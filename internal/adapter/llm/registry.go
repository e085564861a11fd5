package llm

import (
	"fmt"
	"strings"
	"sync"

	"penny/internal/domain"
)

// Registry resolves the reasoning provider selected by config or the
// --provider flag. Providers are registered once at wiring time from the
// config's provider list; lookups after that are read-only.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.LLMProvider
	names     []string // registration order, for lookup error detail
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.LLMProvider),
	}
}

// Register adds a provider under its Name. Duplicate names are a wiring
// bug, not a runtime condition, so they error immediately.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = provider
	r.names = append(r.names, name)
	return nil
}

// Get retrieves a provider by name. The not-found detail lists the
// configured providers so a mistyped --provider value is self-explaining.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		detail := name
		if len(r.names) > 0 {
			detail = fmt.Sprintf("%s (configured: %s)", name, strings.Join(r.names, ", "))
		}
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, detail)
	}
	return p, nil
}
