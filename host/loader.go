package host

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
	wazeroadapter "github.com/tsuki-dev/tsuki-host/infrastructure/wazero"
)

// MetadataSection is the custom section carrying a plugin's metadata document.
const MetadataSection = "tsuki:metadata"

// Load reads a plugin from path. Metadata comes from the module's
// tsuki:metadata custom section or, failing that, from a YAML file next to
// it with the same base name (plugin.wasm -> plugin.yaml).
func (e *Engine) Load(ctx context.Context, path string) (*Plugin, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, &domainerrors.IOError{Path: path, Err: err}
	}
	compiled, err := e.compile(ctx, bin)
	if err != nil {
		return nil, err
	}

	raw, ok := metadataSection(compiled)
	if !ok {
		sidecar := SidecarPath(path)
		raw, err = os.ReadFile(sidecar)
		if err != nil {
			_ = compiled.Close(ctx)
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &domainerrors.ValidationError{Reason: fmt.Sprintf("no %s section and no %s", MetadataSection, filepath.Base(sidecar))}
			}
			return nil, &domainerrors.IOError{Path: sidecar, Err: err}
		}
	}

	meta, err := e.cfg.parser.Parse(raw)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, &domainerrors.ValidationError{Reason: "parse metadata", Err: err}
	}
	return e.link(ctx, compiled, *meta)
}

// LoadPackage loads a plugin whose metadata is already known.
func (e *Engine) LoadPackage(ctx context.Context, pkg entities.PluginPackage) (*Plugin, error) {
	compiled, err := e.compile(ctx, pkg.Binary)
	if err != nil {
		return nil, err
	}
	return e.link(ctx, compiled, pkg.Metadata)
}

// SidecarPath returns the metadata file consulted for a module without a
// metadata section.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".yaml"
}

func (e *Engine) compile(ctx context.Context, bin []byte) (wazero.CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, &domainerrors.ValidationError{Reason: "compile module", Err: err}
	}
	return compiled, nil
}

// link validates meta, selects the generation and checks the module against
// it. The compiled module is closed on failure.
func (e *Engine) link(ctx context.Context, compiled wazero.CompiledModule, meta entities.PluginMetadata) (*Plugin, error) {
	tpl, err := e.validate(ctx, compiled, meta)
	if err != nil {
		_ = compiled.Close(ctx)
		e.logger.WarnContext(ctx, "plugin rejected", "plugin", meta.Name, "error", err)
		return nil, err
	}
	e.logger.InfoContext(ctx, "plugin loaded",
		"plugin", meta.Name,
		"version", meta.Version,
		"generation", tpl.gen.String(),
	)
	return newPlugin(tpl), nil
}

func (e *Engine) validate(ctx context.Context, compiled wazero.CompiledModule, meta entities.PluginMetadata) (*Template, error) {
	res, err := e.cfg.validator.Validate(&meta)
	if err != nil {
		return nil, &domainerrors.ValidationError{Reason: "metadata", Err: err}
	}
	if !res.Valid {
		return nil, &domainerrors.ValidationError{Reason: res.Summary()}
	}
	gen, err := SelectGeneration(meta.Kind, meta.Version)
	if err != nil {
		return nil, err
	}
	lk, err := e.linkerFor(ctx, gen)
	if err != nil {
		return nil, &domainerrors.ValidationError{Reason: "link host module", Err: err}
	}
	if err := wazeroadapter.CheckImports(e.runtime, compiled, gen.Module, wasi_snapshot_preview1.ModuleName); err != nil {
		return nil, &domainerrors.ValidationError{Reason: "imports", Err: err}
	}
	if err := wazeroadapter.CheckExports(compiled, gen.exports); err != nil {
		return nil, &domainerrors.ValidationError{Reason: "exports", Err: err}
	}
	return newTemplate(e, lk, compiled, meta), nil
}

func metadataSection(compiled wazero.CompiledModule) ([]byte, bool) {
	for _, s := range compiled.CustomSections() {
		if s.Name() == MetadataSection {
			return s.Data(), true
		}
	}
	return nil, false
}
