package hostfuncs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundles(t *testing.T) {
	tests := []struct {
		name   string
		bundle HostFuncBundle
		want   []string
	}{
		{"egress", EgressBundle(), []string{FuncHTTPNewRequest, FuncHTTPBodyWrite, FuncHTTPSend, FuncResourceDrop}},
		{"logging", LoggingBundle(), []string{FuncLog}},
		{"key-value", KeyValueBundle(), []string{FuncKVOpen, FuncKVGet, FuncKVSet, FuncKVDelete, FuncKVExists, FuncKVListKeys, FuncKVClose}},
		{"cache", CacheBundle(), []string{FuncCacheGet, FuncCacheSet}},
		{"process", ProcessBundle(), []string{FuncProcessSpawn, FuncProcessWait, FuncFFmpegPath}},
		{"inbound", InboundBundle(), []string{FuncIncomingRequestRead}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := tt.bundle.Handlers()
			assert.Len(t, handlers, len(tt.want))
			for _, name := range tt.want {
				assert.Contains(t, handlers, name)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	reg, err := NewRegistry(WithBundle(Combine(EgressBundle(), LoggingBundle(), KeyValueBundle())))
	require.NoError(t, err)
	assert.Len(t, reg.Names(), 12)
}

func TestUnsupportedBundles(t *testing.T) {
	reg, err := NewRegistry(WithBundle(Combine(CacheBundle(), ProcessBundle())))
	require.NoError(t, err)
	ctx, _, _ := testCaps(t)

	for _, name := range reg.Names() {
		t.Run(name, func(t *testing.T) {
			var resp ErrorResponse
			invoke(t, ctx, reg, name, map[string]any{"key": "x"}, &resp)
			assert.Equal(t, CodeUnsupported, resp.Error)
			assert.Equal(t, 501, resp.Code)
		})
	}
}

func TestWithHandler(t *testing.T) {
	type doubleRequest struct {
		Value int `json:"value"`
	}
	type doubleResponse struct {
		Doubled int `json:"doubled"`
	}

	reg, err := NewRegistry(
		WithBundle(LoggingBundle()),
		WithHandler("math.double", func(_ context.Context, _ *Capabilities, req doubleRequest) (doubleResponse, error) {
			return doubleResponse{Doubled: req.Value * 2}, nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{FuncLog, "math.double"}, reg.Names())

	ctx, _, _ := testCaps(t)
	var resp doubleResponse
	invoke(t, ctx, reg, "math.double", doubleRequest{Value: 21}, &resp)
	assert.Equal(t, 42, resp.Doubled)
}
