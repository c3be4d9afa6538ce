package host

import (
	"context"
	"log/slog"
	"slices"

	"github.com/tetratelabs/wazero"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// Template is a compiled, linked and validated plugin. It holds no per-call
// state and is safe for concurrent use; every operation instantiates it anew.
type Template struct {
	engine      *Engine
	gen         *Generation
	linker      *linker
	compiled    wazero.CompiledModule
	instantiate instantiator
	logger      *slog.Logger
	meta        entities.PluginMetadata
}

func newTemplate(e *Engine, lk *linker, compiled wazero.CompiledModule, meta entities.PluginMetadata) *Template {
	return &Template{
		engine:      e,
		gen:         lk.gen,
		linker:      lk,
		compiled:    compiled,
		instantiate: wazeroInstantiator(e.runtime, compiled),
		logger:      e.logger.With("plugin", meta.Name),
		meta:        meta,
	}
}

// Metadata returns what the plugin declared about itself.
func (t *Template) Metadata() entities.PluginMetadata {
	return t.meta
}

// Generation returns the interface generation the plugin was linked against.
func (t *Template) Generation() *Generation {
	return t.gen
}

// HostFunctions lists the host functions available to the plugin.
func (t *Template) HostFunctions() []string {
	names := t.linker.registry.Names()
	if t.gen.inbound {
		names = append(names, hostfuncs.FuncResponseOutparamSet)
		slices.Sort(names)
	}
	return names
}

// Close releases the compiled module.
func (t *Template) Close(ctx context.Context) error {
	if t.compiled == nil {
		return nil
	}
	return t.compiled.Close(ctx)
}
