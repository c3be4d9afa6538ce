package host

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tsuki-dev/tsuki-host/application/validation"
	"github.com/tsuki-dev/tsuki-host/domain/ports"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
	"github.com/tsuki-dev/tsuki-host/infrastructure/parser"
)

// engineConfig holds configuration for the Engine.
type engineConfig struct {
	logger           *slog.Logger
	keyValue         *hostfuncs.KeyValueStore
	registerer       prometheus.Registerer
	parser           ports.MetadataParser
	validator        ports.MetadataValidator
	cacheDir         string
	egressOpts       []hostfuncs.EgressOption
	maxRequestSize   uint32
	memoryLimitPages uint32
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:         slog.Default(),
		parser:         parser.NewYamlMetadataParser(),
		validator:      validation.NewMetadataValidator(),
		maxRequestSize: hostfuncs.DefaultMaxRequestSize,
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the logger for host and guest log records.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEgressOptions configures the shared outbound HTTP client.
func WithEgressOptions(opts ...hostfuncs.EgressOption) Option {
	return func(c *engineConfig) {
		c.egressOpts = append(c.egressOpts, opts...)
	}
}

// WithKeyValueStore shares store between engines. By default every engine
// owns a private store.
func WithKeyValueStore(store *hostfuncs.KeyValueStore) Option {
	return func(c *engineConfig) {
		c.keyValue = store
	}
}

// WithMetricsRegisterer registers the engine's metrics with r.
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(c *engineConfig) {
		c.registerer = r
	}
}

// WithMaxRequestSize limits payloads a guest passes to host functions.
func WithMaxRequestSize(size uint32) Option {
	return func(c *engineConfig) {
		if size > 0 {
			c.maxRequestSize = size
		}
	}
}

// WithMemoryLimitPages caps guest linear memory, in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *engineConfig) {
		c.memoryLimitPages = pages
	}
}

// WithCompilationCache persists compiled modules under dir.
func WithCompilationCache(dir string) Option {
	return func(c *engineConfig) {
		c.cacheDir = dir
	}
}

// WithMetadataParser replaces the YAML metadata parser.
func WithMetadataParser(p ports.MetadataParser) Option {
	return func(c *engineConfig) {
		if p != nil {
			c.parser = p
		}
	}
}
