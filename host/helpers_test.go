package host

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// fakeGuest is a guestInstance backed by Go functions. They receive the
// capabilities of the execution the instance was created in.
type fakeGuest struct {
	caps   *hostfuncs.Capabilities
	call   func(ctx context.Context, caps *hostfuncs.Capabilities, export string, input []byte) (string, error)
	handle func(ctx context.Context, caps *hostfuncs.Capabilities, export string, req, out uint32) error
	closed *atomic.Int32
}

func (g *fakeGuest) Call(ctx context.Context, export string, input []byte) ([]byte, error) {
	out, err := g.call(ctx, g.caps, export, input)
	return []byte(out), err
}

func (g *fakeGuest) Handle(ctx context.Context, export string, a, b uint32) error {
	return g.handle(ctx, g.caps, export, a, b)
}

func (g *fakeGuest) Close(context.Context) error {
	g.closed.Add(1)
	return nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	e, err := NewEngine(ctx, append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e, &logs
}

func generation(t *testing.T, contract entities.Contract, version string) *Generation {
	t.Helper()
	gen, err := SelectGeneration(contract, version)
	require.NoError(t, err)
	return gen
}

// fakeTemplate links gen in e and swaps instantiation for g. The returned
// counter tracks closed instances.
func fakeTemplate(t *testing.T, e *Engine, gen *Generation, g fakeGuest) (*Template, *atomic.Int32) {
	t.Helper()
	lk, err := e.linkerFor(context.Background(), gen)
	require.NoError(t, err)

	closed := new(atomic.Int32)
	tpl := &Template{
		engine: e,
		gen:    gen,
		linker: lk,
		logger: e.logger.With("plugin", "fake"),
		meta:   entities.PluginMetadata{Name: "fake", Version: gen.Floor.String(), Kind: gen.Contract},
	}
	tpl.instantiate = func(ctx context.Context) (guestInstance, error) {
		caps, ok := hostfuncs.CapabilitiesFrom(ctx)
		require.True(t, ok)
		inst := g
		inst.caps = caps
		inst.closed = closed
		return &inst, nil
	}
	return tpl, closed
}

func fakeExtension(t *testing.T, version string, call func(ctx context.Context, caps *hostfuncs.Capabilities, export string, input []byte) (string, error)) (*Extension, *atomic.Int32) {
	t.Helper()
	e, _ := newTestEngine(t)
	tpl, closed := fakeTemplate(t, e, generation(t, entities.ContractExtension, version), fakeGuest{call: call})
	return &Extension{Template: tpl}, closed
}

// pushHTTP issues an outgoing-request handle the way http.new-request does.
func pushHTTP(t *testing.T, ctx context.Context, caps *hostfuncs.Capabilities, authority, path, body string) uint32 {
	t.Helper()
	resp, err := hostfuncs.NewRequest(ctx, caps, hostfuncs.NewRequestRequest{
		Scheme:        "https",
		Authority:     authority,
		PathWithQuery: path,
		Body:          []byte(body),
	})
	require.NoError(t, err)
	return resp.Handle
}
