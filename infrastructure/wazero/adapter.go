// Package wazero links hostfuncs registries into a wazero runtime and moves
// bytes across the guest memory boundary.
package wazero

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// AllocateExport is the guest export the host uses to obtain guest memory.
const AllocateExport = "allocate"

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// ModuleName is the host module name. Defaults to the registry's module.
	ModuleName string

	// MaxRequestSize limits the size of incoming requests from guest memory.
	// Default is 1MB.
	MaxRequestSize uint32

	// CustomHandlers allows adding additional wazero-specific handlers that
	// don't fit the standard ByteHandler pattern (e.g., response-outparam.set).
	CustomHandlers []CustomHandler
}

// CustomHandler represents a custom wazero handler that doesn't use the standard
// packed i64 request/response pattern.
type CustomHandler struct {
	// Name is the exported function name.
	Name string

	// Handler is the wazero GoModuleFunc implementation.
	Handler api.GoModuleFunc

	// ParamTypes are the WASM parameter types.
	ParamTypes []api.ValueType

	// ResultTypes are the WASM result types.
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName overrides the host module name.
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the maximum request size from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		if size > 0 {
			c.MaxRequestSize = size
		}
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		MaxRequestSize: hostfuncs.DefaultMaxRequestSize,
	}
}

// RegisterWithRuntime instantiates a host module exporting every handler of
// registry, plus any custom handlers. Registry handlers take and return a
// packed i64 ptr+len of JSON in guest memory; responses are written through
// the guest's allocate export.
//
// Example:
//
//	registry, _ := hostfuncs.NewRegistry(
//	    hostfuncs.WithModule("tsuki:extension/host@0.0.1"),
//	    hostfuncs.WithBundle(hostfuncs.EgressBundle()),
//	)
//	err := wazero.RegisterWithRuntime(ctx, runtime, registry)
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.HandlerRegistry, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	cfg.ModuleName = registry.Module()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ModuleName == "" {
		return errors.New("host module name is required")
	}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)
	for _, name := range registry.Names() {
		funcName := name
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				handleRegistryCall(ctx, mod, stack, registry, funcName, cfg.MaxRequestSize)
			}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
			Export(funcName)
	}
	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate host module %q: %w", cfg.ModuleName, err)
	}
	return nil
}

func handleRegistryCall(ctx context.Context, mod api.Module, stack []uint64, registry *hostfuncs.HandlerRegistry, name string, maxRequestSize uint32) {
	request, err := ReadGuestBytes(mod, stack[0], maxRequestSize)
	if err != nil {
		logger(ctx).ErrorContext(ctx, "wazero: "+err.Error(), "function", name)
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewValidationError(err.Error()))
		return
	}

	response, err := registry.Invoke(ctx, name, request)
	if err != nil {
		logger(ctx).ErrorContext(ctx, "wazero: handler invocation failed", "function", name, "error", err)
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewInternalError(err.Error()))
		return
	}

	packed, err := WriteGuestBytes(ctx, mod, response)
	if err != nil {
		logger(ctx).ErrorContext(ctx, "wazero: "+err.Error(), "function", name)
	}
	stack[0] = packed
}

func writeErrorResponse(ctx context.Context, mod api.Module, errResp hostfuncs.ErrorResponse) uint64 {
	packed, _ := WriteGuestBytes(ctx, mod, errResp.ToJSON())
	return packed
}

// WriteGuestBytes copies data into memory obtained from the guest's allocate
// export and returns its packed ptr+len.
func WriteGuestBytes(ctx context.Context, mod api.Module, data []byte) (uint64, error) {
	allocate := mod.ExportedFunction(AllocateExport)
	if allocate == nil {
		return 0, fmt.Errorf("guest module missing %q export", AllocateExport)
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("guest allocate: %w", err)
	}
	if len(results) == 0 {
		return 0, errors.New("guest allocate returned no result")
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit

	if !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("write %d bytes at %#x out of guest memory range", len(data), ptr)
	}
	return PackPtrLen(ptr, uint32(len(data))), nil //nolint:gosec // G115: bounded by guest memory
}

// ReadGuestBytes copies the region described by a packed ptr+len out of guest
// memory. Regions larger than limit are rejected before reading.
func ReadGuestBytes(mod api.Module, packed uint64, limit uint32) ([]byte, error) {
	ptr, length := UnpackPtrLen(packed)
	if limit > 0 && length > limit {
		return nil, fmt.Errorf("request size %d exceeds maximum %d bytes", length, limit)
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("read %d bytes at %#x out of guest memory range", length, ptr)
	}
	return append([]byte(nil), data...), nil
}

// PackPtrLen packs a pointer and length into a single i64.
// Upper 32 bits: pointer, lower 32 bits: length.
func PackPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// UnpackPtrLen unpacks a pointer and length from a packed i64.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)           //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: Packed format stores 32-bit values
	return ptr, length
}

func logger(ctx context.Context) *slog.Logger {
	if caps, ok := hostfuncs.CapabilitiesFrom(ctx); ok {
		return caps.Logger
	}
	return slog.Default()
}
