package hostfuncs

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// Middleware is a function that wraps a ByteHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next ByteHandler) ByteHandler

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// callLogger prefers the logger of the execution bound to ctx, which carries
// the plugin and execution ids.
func callLogger(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if caps, ok := CapabilitiesFrom(ctx); ok {
		return caps.Logger
	}
	return fallback
}

func functionName(ctx context.Context) string {
	if hc, ok := ctx.(HostContext); ok {
		return hc.FunctionName()
	}
	return "unknown"
}

// PanicRecoveryMiddleware converts a panicking handler into an INTERNAL_ERROR
// response so the guest sees a failed call, not a trap. The panic and its
// stack are logged.
func PanicRecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					callLogger(ctx, logger).ErrorContext(ctx, "host function panicked",
						"function", functionName(ctx),
						"panic", r,
						"stack", string(debug.Stack()))
					resp = NewPanicError(r).ToJSON()
					err = nil
				}
			}()
			return next(ctx, payload)
		}
	}
}

// LoggingMiddleware returns a middleware that logs host function invocations
// at debug level and failures at error level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			log := callLogger(ctx, logger)
			start := time.Now()
			resp, err := next(ctx, payload)
			if err != nil {
				log.ErrorContext(ctx, "host function failed",
					"function", functionName(ctx), "error", err)
				return resp, err
			}
			log.DebugContext(ctx, "host function completed",
				"function", functionName(ctx),
				"request_bytes", len(payload),
				"response_bytes", len(resp),
				"duration", time.Since(start))
			return resp, nil
		}
	}
}
