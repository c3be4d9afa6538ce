package host

import (
	"context"
	"fmt"

	"github.com/tsuki-dev/tsuki-host/hostfuncs"
	wazeroadapter "github.com/tsuki-dev/tsuki-host/infrastructure/wazero"
)

// linker is a generation's host module, instantiated in the engine runtime.
type linker struct {
	gen      *Generation
	registry *hostfuncs.HandlerRegistry
}

// linkerFor returns the linker of gen, building it on first use.
// Failed builds are not cached, so a later load retries.
func (e *Engine) linkerFor(ctx context.Context, gen *Generation) (*linker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if l, ok := e.linkers[gen.id]; ok {
		return l, nil
	}
	l, err := e.newLinker(ctx, gen)
	if err != nil {
		return nil, fmt.Errorf("link %s: %w", gen, err)
	}
	e.linkers[gen.id] = l
	return l, nil
}

func (e *Engine) newLinker(ctx context.Context, gen *Generation) (*linker, error) {
	opts := []hostfuncs.RegistryOption{
		hostfuncs.WithModule(gen.Module),
		hostfuncs.WithMiddleware(
			hostfuncs.PanicRecoveryMiddleware(e.logger),
			hostfuncs.LoggingMiddleware(e.logger),
		),
	}
	for _, b := range gen.bundles() {
		opts = append(opts, hostfuncs.WithBundle(b))
	}
	registry, err := hostfuncs.NewRegistry(opts...)
	if err != nil {
		return nil, err
	}

	adapterOpts := []wazeroadapter.AdapterOption{
		wazeroadapter.WithMaxRequestSize(e.cfg.maxRequestSize),
	}
	if gen.inbound {
		adapterOpts = append(adapterOpts, wazeroadapter.WithCustomHandler(
			wazeroadapter.OutparamHandler(e.cfg.maxRequestSize),
		))
	}
	if err := wazeroadapter.RegisterWithRuntime(ctx, e.runtime, registry, adapterOpts...); err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "linked host module", "module", gen.Module, "functions", len(registry.Names()))
	return &linker{gen: gen, registry: registry}, nil
}
