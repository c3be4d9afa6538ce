package hostfuncs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// testCaps returns capabilities bound to a context, a log sink, and a
// cleanup that closes the call's table.
func testCaps(t *testing.T, opts ...EgressOption) (context.Context, *Capabilities, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: LevelTrace}))
	caps := NewCapabilities(NewNetworkEgress(opts...), NewKeyValueStore(), logger)
	t.Cleanup(func() { _ = caps.Close() })
	return WithCapabilities(context.Background(), caps), caps, &logs
}

// invoke calls a registered host function with req encoded as JSON and
// decodes the response into out.
func invoke(t *testing.T, ctx context.Context, reg *HandlerRegistry, name string, req, out any) {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := reg.Invoke(ctx, name, payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(resp, out), string(resp))
}
