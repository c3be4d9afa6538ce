package hostfuncs

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// HandlerRegistry is an immutable collection of named host functions, the
// linker of one interface generation. Once created via NewRegistry, handlers
// cannot be added or removed, so lookups during execution are lock-free.
type HandlerRegistry struct {
	handlers map[string]ByteHandler
	module   string
	names    []string // sorted for consistent iteration
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	handlers   map[string]ByteHandler
	module     string
	middleware []Middleware
	errors     []error
}

// NewRegistry creates an immutable HandlerRegistry with the given options.
// Returns an error if any handler name is registered twice.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithModule("tsuki:extension/host@0.1.0-draft"),
//	    WithMiddleware(PanicRecoveryMiddleware(logger)),
//	    WithBundle(EgressBundle()),
//	    WithBundle(LoggingBundle()),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{handlers: make(map[string]ByteHandler)}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	// Apply middleware chain to all handlers (FIFO order)
	wrapped := make(map[string]ByteHandler, len(b.handlers))
	for name, handler := range b.handlers {
		h := handler
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](h)
		}
		wrapped[name] = h
	}

	return &HandlerRegistry{
		handlers: wrapped,
		module:   b.module,
		names:    slices.Sorted(maps.Keys(b.handlers)),
	}, nil
}

// Module returns the import module name the registry is linked under.
func (r *HandlerRegistry) Module() string {
	return r.module
}

// Invoke dispatches a host function call by name.
// Returns the JSON response bytes, or an ErrorResponse JSON if the handler is not found.
func (r *HandlerRegistry) Invoke(ctx context.Context, name string, payload []byte) ([]byte, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return NewNotFoundError(name).ToJSON(), nil
	}
	return handler(HostContextFrom(ctx, name), payload)
}

// Has returns true if a handler with the given name is registered.
func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns a sorted list of all registered handler names.
func (r *HandlerRegistry) Names() []string {
	return slices.Clone(r.names)
}

func (b *registryBuilder) addHandler(name string, handler ByteHandler) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("duplicate handler name: %q", name)
	}
	b.handlers[name] = handler
	return nil
}

// WithModule sets the import module name guests use to reach the registry.
func WithModule(name string) RegistryOption {
	return func(b *registryBuilder) {
		b.module = name
	}
}

// WithByteHandler registers a raw ByteHandler with the given name.
// Use WithHandler for type-safe registration with automatic JSON handling.
func WithByteHandler(name string, handler ByteHandler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addHandler(name, handler); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
