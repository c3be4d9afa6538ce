package hostfuncs

import "encoding/json"

// Host function names shared by every generation's host module.
const (
	FuncHTTPNewRequest = "http.new-request"
	FuncHTTPBodyWrite  = "http.body-write"
	FuncHTTPSend       = "http.send"
	FuncResourceDrop   = "resource.drop"

	FuncLog = "logging.log"

	FuncKVOpen     = "kv.open"
	FuncKVGet      = "kv.get"
	FuncKVSet      = "kv.set"
	FuncKVDelete   = "kv.delete"
	FuncKVExists   = "kv.exists"
	FuncKVListKeys = "kv.list-keys"
	FuncKVClose    = "kv.close"

	FuncCacheGet = "cache.get"
	FuncCacheSet = "cache.set"

	FuncProcessSpawn = "process.spawn"
	FuncProcessWait  = "process.wait"
	FuncFFmpegPath   = "ffmpeg.path"

	FuncIncomingRequestRead = "incoming-request.read"

	// FuncResponseOutparamSet is a raw import, registered by the runtime
	// adapter rather than through a bundle.
	FuncResponseOutparamSet = "response-outparam.set"
)

// HostFuncBundle is a pre-configured set of related host functions.
// Bundles allow registering multiple handlers at once for common use cases.
type HostFuncBundle interface {
	// Handlers returns a map of handler names to ByteHandler functions.
	Handlers() map[string]ByteHandler
}

// staticBundle implements HostFuncBundle with a fixed set of handlers.
type staticBundle struct {
	handlers map[string]ByteHandler
}

func (b *staticBundle) Handlers() map[string]ByteHandler {
	return b.handlers
}

// EgressBundle returns the sandboxed outbound HTTP functions:
// http.new-request, http.body-write, http.send, resource.drop.
func EgressBundle() HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			FuncHTTPNewRequest: NewCapabilityHandler(NewRequest),
			FuncHTTPBodyWrite:  NewCapabilityHandler(WriteRequestBody),
			FuncHTTPSend:       NewCapabilityHandler(SendRequest),
			FuncResourceDrop:   NewCapabilityHandler(DropResource),
		},
	}
}

// LoggingBundle returns logging.log.
func LoggingBundle() HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			FuncLog: NewCapabilityHandler(Log),
		},
	}
}

// KeyValueBundle returns the kv.* functions.
func KeyValueBundle() HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			FuncKVOpen:     NewCapabilityHandler(KVOpen),
			FuncKVGet:      NewCapabilityHandler(KVGet),
			FuncKVSet:      NewCapabilityHandler(KVSet),
			FuncKVDelete:   NewCapabilityHandler(KVDelete),
			FuncKVExists:   NewCapabilityHandler(KVExists),
			FuncKVListKeys: NewCapabilityHandler(KVListKeys),
			FuncKVClose:    NewCapabilityHandler(KVClose),
		},
	}
}

// CacheBundle returns the persistent cache functions, which are not implemented.
func CacheBundle() HostFuncBundle {
	return unsupportedBundle(FuncCacheGet, FuncCacheSet)
}

// ProcessBundle returns process control and the ffmpeg path lookup, which
// are not implemented.
func ProcessBundle() HostFuncBundle {
	return unsupportedBundle(FuncProcessSpawn, FuncProcessWait, FuncFFmpegPath)
}

// InboundBundle returns incoming-request.read. The outparam setter is a raw
// import and lives with the runtime adapter.
func InboundBundle() HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			FuncIncomingRequestRead: NewCapabilityHandler(ReadIncomingRequest),
		},
	}
}

func unsupportedBundle(names ...string) HostFuncBundle {
	handlers := make(map[string]ByteHandler, len(names))
	for _, name := range names {
		handlers[name] = NewCapabilityHandler[json.RawMessage, Empty](Unsupported)
	}
	return &staticBundle{handlers: handlers}
}

// compositeBundle combines multiple bundles into one.
type compositeBundle struct {
	bundles []HostFuncBundle
}

func (b *compositeBundle) Handlers() map[string]ByteHandler {
	result := make(map[string]ByteHandler)
	for _, bundle := range b.bundles {
		for name, handler := range bundle.Handlers() {
			result[name] = handler
		}
	}
	return result
}

// Combine returns a bundle containing the handlers of every given bundle.
func Combine(bundles ...HostFuncBundle) HostFuncBundle {
	return &compositeBundle{bundles: bundles}
}

// WithBundle registers all handlers from a bundle.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		for name, handler := range bundle.Handlers() {
			if err := b.addHandler(name, handler); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}

// WithHandler registers a typed capability function with automatic JSON handling.
//
// Example usage:
//
//	WithHandler("custom.echo", func(ctx context.Context, caps *Capabilities, req MyRequest) (MyResponse, error) {
//	    return MyResponse{Result: req.Input}, nil
//	})
func WithHandler[Req any, Resp any](name string, fn CapabilityFunc[Req, Resp]) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addHandler(name, NewCapabilityHandler(fn)); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}
