package hostfuncs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

func TestHostContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey("plugin"), "anime"))
	hc := NewHostContext(parent, FuncHTTPSend)

	assert.Equal(t, FuncHTTPSend, hc.FunctionName())
	assert.Equal(t, "anime", hc.Value(ctxKey("plugin")))
	assert.NoError(t, hc.Err())

	cancel()
	assert.ErrorIs(t, hc.Err(), context.Canceled)
}

func TestHostContextFrom(t *testing.T) {
	t.Run("wraps plain context", func(t *testing.T) {
		hc := HostContextFrom(context.Background(), FuncLog)
		assert.Equal(t, FuncLog, hc.FunctionName())
	})

	t.Run("reuses matching HostContext", func(t *testing.T) {
		original := NewHostContext(context.Background(), FuncKVGet)
		assert.Same(t, original, HostContextFrom(original, FuncKVGet))
	})

	t.Run("rewraps for another function", func(t *testing.T) {
		original := NewHostContext(context.Background(), FuncKVGet)
		hc := HostContextFrom(original, FuncKVSet)
		assert.NotSame(t, original, hc)
		assert.Equal(t, FuncKVSet, hc.FunctionName())
	})
}

func TestCapabilitiesContext(t *testing.T) {
	_, ok := CapabilitiesFrom(context.Background())
	assert.False(t, ok)

	caps := NewCapabilities(NewNetworkEgress(), nil, nil)
	ctx := WithCapabilities(context.Background(), caps)

	got, ok := CapabilitiesFrom(ctx)
	require.True(t, ok)
	assert.Same(t, caps, got)

	// Capabilities stay reachable through the HostContext a registry adds.
	got, ok = CapabilitiesFrom(HostContextFrom(ctx, FuncKVGet))
	require.True(t, ok)
	assert.Same(t, caps, got)

	_, ok = CapabilitiesFrom(WithCapabilities(context.Background(), nil))
	assert.False(t, ok)
}
