package wazero

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/tsuki-dev/tsuki-host/hostfuncs"
	"github.com/tsuki-dev/tsuki-host/internal/testutil"
)

const testModule = "tsuki:test/host@1.0.0"

var logImport = testutil.GuestImport{
	Module:  testModule,
	Name:    hostfuncs.FuncLog,
	Params:  []testutil.ValType{testutil.I64},
	Results: []testutil.ValType{testutil.I64},
}

func newRuntime(t *testing.T, opts ...AdapterOption) wazero.Runtime {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	registry, err := hostfuncs.NewRegistry(
		hostfuncs.WithModule(testModule),
		hostfuncs.WithBundle(hostfuncs.LoggingBundle()),
	)
	require.NoError(t, err)
	opts = append(opts, WithCustomHandler(OutparamHandler(hostfuncs.DefaultMaxRequestSize)))
	require.NoError(t, RegisterWithRuntime(ctx, rt, registry, opts...))
	return rt
}

func newCapsContext(t *testing.T) (context.Context, *hostfuncs.Capabilities, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	caps := hostfuncs.NewCapabilities(hostfuncs.NewNetworkEgress(), nil,
		slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { _ = caps.Close() })
	return hostfuncs.WithCapabilities(context.Background(), caps), caps, &logs
}

func callPacked(t *testing.T, ctx context.Context, mod api.Module, export string, input []byte) []byte {
	t.Helper()
	packed, err := WriteGuestBytes(ctx, mod, input)
	require.NoError(t, err)
	ptr, length := UnpackPtrLen(packed)
	results, err := mod.ExportedFunction(export).Call(ctx, uint64(ptr), uint64(length))
	require.NoError(t, err)
	out, err := ReadGuestBytes(mod, results[0], 0)
	require.NoError(t, err)
	return out
}

func TestPackUnpackPtrLen(t *testing.T) {
	tests := []struct {
		ptr    uint32
		length uint32
	}{
		{0, 0},
		{1, 1},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{0x12345678, 0x9ABCDEF0},
	}

	for _, tt := range tests {
		gotPtr, gotLen := UnpackPtrLen(PackPtrLen(tt.ptr, tt.length))
		assert.Equal(t, tt.ptr, gotPtr)
		assert.Equal(t, tt.length, gotLen)
	}
}

func TestAdapterOptions(t *testing.T) {
	cfg := defaultAdapterConfig()
	assert.Equal(t, uint32(hostfuncs.DefaultMaxRequestSize), cfg.MaxRequestSize)

	WithModuleName("custom")(&cfg)
	WithMaxRequestSize(2048)(&cfg)
	WithMaxRequestSize(0)(&cfg)
	WithCustomHandler(CustomHandler{Name: "raw"})(&cfg)

	assert.Equal(t, "custom", cfg.ModuleName)
	assert.Equal(t, uint32(2048), cfg.MaxRequestSize)
	require.Len(t, cfg.CustomHandlers, 1)
	assert.Equal(t, "raw", cfg.CustomHandlers[0].Name)
}

func TestRegisterWithRuntime_RequiresModuleName(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer func() { _ = rt.Close(ctx) }()

	registry, err := hostfuncs.NewRegistry(hostfuncs.WithBundle(hostfuncs.LoggingBundle()))
	require.NoError(t, err)
	assert.Error(t, RegisterWithRuntime(ctx, rt, registry))
}

func TestRegistryCallFromGuest(t *testing.T) {
	rt := newRuntime(t)
	ctx, _, logs := newCapsContext(t)

	guest := testutil.NewGuest(logImport).
		Calls("run", 0, `{"level":"info","context":"test","message":"hello from guest"}`, `{"ok":true}`)
	mod, err := rt.Instantiate(ctx, guest.Bytes())
	require.NoError(t, err)
	defer func() { _ = mod.Close(ctx) }()

	out := callPacked(t, ctx, mod, "run", []byte(`{}`))
	assert.JSONEq(t, `{"ok":true}`, string(out))
	assert.Contains(t, logs.String(), "hello from guest")
	assert.Contains(t, logs.String(), `"context":"test"`)
}

func TestRegistryCallRejectsOversizedRequest(t *testing.T) {
	rt := newRuntime(t, WithMaxRequestSize(8))
	ctx, _, logs := newCapsContext(t)

	guest := testutil.NewGuest(logImport).
		Calls("run", 0, `{"level":"info","context":"test","message":"never logged"}`, `{"ok":true}`)
	mod, err := rt.Instantiate(ctx, guest.Bytes())
	require.NoError(t, err)
	defer func() { _ = mod.Close(ctx) }()

	out := callPacked(t, ctx, mod, "run", nil)
	assert.JSONEq(t, `{"ok":true}`, string(out))
	assert.NotContains(t, logs.String(), "never logged")
	assert.Contains(t, logs.String(), "exceeds maximum")
}

func TestOutparamHandler(t *testing.T) {
	rt := newRuntime(t)
	ctx, caps, _ := newCapsContext(t)

	setImport := testutil.GuestImport{
		Module:  testModule,
		Name:    hostfuncs.FuncResponseOutparamSet,
		Params:  []testutil.ValType{testutil.I32, testutil.I64},
		Results: []testutil.ValType{testutil.I32},
	}
	guest := testutil.NewGuest(setImport).
		Responder("handle-request", 0, `{"status":201,"body":"b2s="}`)
	mod, err := rt.Instantiate(ctx, guest.Bytes())
	require.NoError(t, err)
	defer func() { _ = mod.Close(ctx) }()

	out := hostfuncs.NewResponseOutparam()
	h, err := caps.Table.Push(out)
	require.NoError(t, err)

	_, err = mod.ExportedFunction("handle-request").Call(ctx, 0, uint64(h))
	require.NoError(t, err)

	resp := out.Response()
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Zero(t, caps.Table.Len())
}

func TestGuestMemoryBounds(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer func() { _ = rt.Close(ctx) }()

	mod, err := rt.Instantiate(ctx, testutil.NewGuest().Const("x", `{}`).Bytes())
	require.NoError(t, err)

	_, err = ReadGuestBytes(mod, PackPtrLen(65530, 100), 0)
	assert.ErrorContains(t, err, "out of guest memory range")

	_, err = ReadGuestBytes(mod, PackPtrLen(0, 100), 10)
	assert.ErrorContains(t, err, "exceeds maximum")

	noAlloc, err := rt.Instantiate(ctx, testutil.NewModule().Bytes())
	require.NoError(t, err)
	_, err = WriteGuestBytes(ctx, noAlloc, []byte("x"))
	assert.ErrorContains(t, err, "missing \"allocate\"")
}
