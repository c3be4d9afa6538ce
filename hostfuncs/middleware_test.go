package hostfuncs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	var engineLogs, callLogs bytes.Buffer
	caps := NewCapabilities(nil, nil, bufferLogger(&callLogs).With("plugin", "anime"))
	t.Cleanup(func() { _ = caps.Close() })

	reg, err := NewRegistry(
		WithMiddleware(PanicRecoveryMiddleware(bufferLogger(&engineLogs))),
		WithByteHandler(FuncHTTPSend, func(context.Context, []byte) ([]byte, error) {
			panic("nil transport")
		}),
	)
	require.NoError(t, err)

	resp, err := reg.Invoke(WithCapabilities(context.Background(), caps), FuncHTTPSend, []byte("{}"))
	require.NoError(t, err)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(resp, &errResp))
	assert.Equal(t, "INTERNAL_ERROR", errResp.Error)
	assert.Equal(t, 500, errResp.Code)
	assert.Equal(t, "panic: nil transport", errResp.Message)

	assert.Empty(t, engineLogs.String())
	assert.Contains(t, callLogs.String(), "host function panicked")
	assert.Contains(t, callLogs.String(), `"function":"http.send"`)
	assert.Contains(t, callLogs.String(), `"plugin":"anime"`)
}

func TestPanicRecoveryMiddleware_NoPanic(t *testing.T) {
	var logs bytes.Buffer
	wrapped := PanicRecoveryMiddleware(bufferLogger(&logs))(func(context.Context, []byte) ([]byte, error) {
		return []byte(`{"value":"cached"}`), nil
	})

	resp, err := wrapped(context.Background(), []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, `{"value":"cached"}`, string(resp))
	assert.Empty(t, logs.String())
}

func TestMiddlewareOrder_FIFO(t *testing.T) {
	var callOrder []string
	trace := func(name string) Middleware {
		return func(next ByteHandler) ByteHandler {
			return func(ctx context.Context, payload []byte) ([]byte, error) {
				callOrder = append(callOrder, name+"-before")
				resp, err := next(ctx, payload)
				callOrder = append(callOrder, name+"-after")
				return resp, err
			}
		}
	}

	reg, err := NewRegistry(
		WithMiddleware(trace("recover"), trace("log"), trace("meter")),
		WithByteHandler(FuncKVGet, func(context.Context, []byte) ([]byte, error) {
			callOrder = append(callOrder, "handler")
			return nil, nil
		}),
	)
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), FuncKVGet, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"recover-before", "log-before", "meter-before",
		"handler",
		"meter-after", "log-after", "recover-after",
	}, callOrder)
}

func TestMiddleware_SeesFunctionName(t *testing.T) {
	seen := make(map[string]bool)
	tracking := func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			seen[functionName(ctx)] = true
			return next(ctx, payload)
		}
	}
	noop := func(context.Context, []byte) ([]byte, error) { return nil, nil }

	reg, err := NewRegistry(
		WithMiddleware(tracking),
		WithByteHandler(FuncKVOpen, noop),
		WithByteHandler(FuncKVClose, noop),
	)
	require.NoError(t, err)

	_, _ = reg.Invoke(context.Background(), FuncKVOpen, nil)
	_, _ = reg.Invoke(context.Background(), FuncKVClose, nil)

	assert.Equal(t, map[string]bool{FuncKVOpen: true, FuncKVClose: true}, seen)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	reg, err := NewRegistry(
		WithMiddleware(LoggingMiddleware(bufferLogger(&buf))),
		WithByteHandler(FuncKVGet, func(context.Context, []byte) ([]byte, error) {
			return []byte("ok"), nil
		}),
		WithByteHandler(FuncKVSet, func(context.Context, []byte) ([]byte, error) {
			return nil, errors.New("boom")
		}),
	)
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), FuncKVGet, []byte("{}"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "host function completed")
	assert.Contains(t, buf.String(), `"function":"kv.get"`)
	assert.Contains(t, buf.String(), `"request_bytes":2`)

	buf.Reset()
	_, err = reg.Invoke(context.Background(), FuncKVSet, nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "host function failed")
	assert.Contains(t, buf.String(), "boom")
}
