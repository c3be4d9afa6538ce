package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// Engine owns the wazero runtime, the shared capability state and one linker
// per interface generation. Plugins loaded from an engine are valid until it
// is closed.
type Engine struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	logger  *slog.Logger
	egress  *hostfuncs.NetworkEgress
	kv      *hostfuncs.KeyValueStore
	metrics *Metrics
	linkers map[generationID]*linker
	cfg     engineConfig
	mu      sync.Mutex
}

// NewEngine creates a runtime with WASI instantiated. Host modules are linked
// lazily, the first time a plugin of their generation loads.
func NewEngine(ctx context.Context, opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := wazero.NewRuntimeConfig().WithCustomSections(true)
	if cfg.memoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	var cache wazero.CompilationCache
	if cfg.cacheDir != "" {
		c, err := wazero.NewCompilationCacheWithDir(cfg.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("compilation cache %s: %w", cfg.cacheDir, err)
		}
		cache = c
		rc = rc.WithCompilationCache(cache)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rc)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	kv := cfg.keyValue
	if kv == nil {
		kv = hostfuncs.NewKeyValueStore()
	}

	return &Engine{
		runtime: rt,
		cache:   cache,
		logger:  cfg.logger,
		egress:  hostfuncs.NewNetworkEgress(cfg.egressOpts...),
		kv:      kv,
		metrics: NewMetrics(cfg.registerer),
		linkers: make(map[generationID]*linker),
		cfg:     cfg,
	}, nil
}

// Metrics returns the engine's call metrics.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Close releases the runtime and every module compiled by it.
func (e *Engine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		err = errors.Join(err, e.cache.Close(ctx))
	}
	return err
}

// capabilities builds the per-call capability set for gen.
func (e *Engine) capabilities(gen *Generation, logger *slog.Logger) *hostfuncs.Capabilities {
	var kv *hostfuncs.KeyValueStore
	if gen.keyValue {
		kv = e.kv
	}
	return hostfuncs.NewCapabilities(e.egress, kv, logger)
}
