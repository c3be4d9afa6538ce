// Package registry holds the JSON schemas of an interface generation's wire
// types, keyed by "<export>.<direction>".
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tsuki-dev/tsuki-host/application/schema"
	"github.com/tsuki-dev/tsuki-host/domain/ports"
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	strictMode bool // Fail on duplicate registrations
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		strictMode: true,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates).
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// Registry implements SchemaRegistry.
type Registry struct {
	schemas map[string]string
	config  registryConfig
	mu      sync.RWMutex
}

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) ports.SchemaRegistry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{config: cfg, schemas: make(map[string]string)}
}

// Register adds a schema generated from a Go value.
func (r *Registry) Register(name string, model any) error {
	data, err := schema.GenerateSchema(model)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[name]; exists && r.config.strictMode {
		return fmt.Errorf("schema %q already registered", name)
	}
	r.schemas[name] = string(data)
	return nil
}

// GetSchema retrieves the JSON Schema registered under name.
func (r *Registry) GetSchema(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// List returns all registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
