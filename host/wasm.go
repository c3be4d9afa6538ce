package host

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
	wazeroadapter "github.com/tsuki-dev/tsuki-host/infrastructure/wazero"
)

// guestInstance is one live instantiation of a plugin, used for exactly one
// export call.
type guestInstance interface {
	// Call invokes a packed export with input and returns the bytes of its
	// result envelope.
	Call(ctx context.Context, export string, input []byte) ([]byte, error)

	// Handle invokes an (i32,i32)->() export.
	Handle(ctx context.Context, export string, a, b uint32) error

	Close(ctx context.Context) error
}

// instantiator creates a fresh guest instance. ctx carries the capabilities
// of the execution the instance belongs to.
type instantiator func(ctx context.Context) (guestInstance, error)

// wazeroInstantiator instantiates compiled anonymously, running _initialize
// when the module exports it.
func wazeroInstantiator(rt wazero.Runtime, compiled wazero.CompiledModule) instantiator {
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize")
	return func(ctx context.Context) (guestInstance, error) {
		mod, err := rt.InstantiateModule(ctx, compiled, cfg)
		if err != nil {
			return nil, &domainerrors.TrapError{Export: "_initialize", Err: err}
		}
		return &wasmInstance{mod: mod}, nil
	}
}

type wasmInstance struct {
	mod api.Module
}

func (w *wasmInstance) Call(ctx context.Context, export string, input []byte) ([]byte, error) {
	fn := w.mod.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found", export)
	}

	packed, err := wazeroadapter.WriteGuestBytes(ctx, w.mod, input)
	if err != nil {
		return nil, &domainerrors.TrapError{Export: export, Err: fmt.Errorf("pass input: %w", err)}
	}
	ptr, length := wazeroadapter.UnpackPtrLen(packed)

	results, err := fn.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(length))
	if err != nil {
		return nil, &domainerrors.TrapError{Export: export, Err: err}
	}
	if len(results) == 0 {
		return nil, &domainerrors.ProtocolViolationError{Message: fmt.Sprintf("export %q returned no result", export)}
	}

	data, err := wazeroadapter.ReadGuestBytes(w.mod, results[0], 0)
	if err != nil {
		return nil, &domainerrors.ProtocolViolationError{Message: fmt.Sprintf("export %q returned an unreadable result", export), Err: err}
	}
	return data, nil
}

func (w *wasmInstance) Handle(ctx context.Context, export string, a, b uint32) error {
	fn := w.mod.ExportedFunction(export)
	if fn == nil {
		return fmt.Errorf("export %q not found", export)
	}
	if _, err := fn.Call(ctx, api.EncodeU32(a), api.EncodeU32(b)); err != nil {
		return &domainerrors.TrapError{Export: export, Err: err}
	}
	return nil
}

func (w *wasmInstance) Close(ctx context.Context) error {
	return w.mod.Close(ctx)
}
