package host

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// execution is the state of one logical call: a fresh guest instance and the
// capabilities it was instantiated against. It is never reused.
type execution struct {
	ctx      context.Context
	caps     *hostfuncs.Capabilities
	instance guestInstance
	metrics  *Metrics
	id       string
}

// begin creates an execution context and instantiates the plugin in it.
func (t *Template) begin(ctx context.Context) (*execution, error) {
	id := uuid.NewString()
	caps := t.engine.capabilities(t.gen, t.logger.With("execution", id))
	xctx := hostfuncs.WithCapabilities(ctx, caps)

	t.engine.metrics.inFlight.Inc()
	inst, err := t.instantiate(xctx)
	if err != nil {
		_ = caps.Close()
		t.engine.metrics.inFlight.Dec()
		caps.Logger.ErrorContext(ctx, "instantiate plugin", "error", err)
		return nil, err
	}
	return &execution{
		ctx:      xctx,
		caps:     caps,
		instance: inst,
		metrics:  t.engine.metrics,
		id:       id,
	}, nil
}

// close tears the execution down. It runs even when the caller's context has
// been cancelled.
func (x *execution) close() {
	ctx := context.WithoutCancel(x.ctx)
	if err := x.instance.Close(ctx); err != nil {
		x.caps.Logger.WarnContext(ctx, "close guest instance", "error", err)
	}
	if err := x.caps.Close(); err != nil {
		x.caps.Logger.WarnContext(ctx, "close resource table", "error", err)
	}
	x.metrics.inFlight.Dec()
}

// logFailure records a failed export call at a level matching its cause.
func (x *execution) logFailure(export string, err error) {
	var guestErr *domainerrors.GuestError
	if errors.As(err, &guestErr) {
		x.caps.Logger.DebugContext(x.ctx, "guest returned an error", "export", export, "error", err)
		return
	}
	x.caps.Logger.ErrorContext(x.ctx, "guest call failed", "export", export, "error", err)
}

// invoke runs one packed export of t in a fresh execution and converts its ok
// payload with decode before the execution closes.
func invoke[T any](ctx context.Context, t *Template, export string, input any, decode func(*converter, json.RawMessage) (T, error)) (result T, err error) {
	start := time.Now()
	defer func() {
		t.engine.metrics.observe(t.meta.Name, export, time.Since(start).Seconds(), err)
	}()

	payload, err := json.Marshal(input)
	if err != nil {
		return result, &domainerrors.MarshalError{Value: export + " input", Err: err}
	}

	x, err := t.begin(ctx)
	if err != nil {
		return result, err
	}
	defer x.close()

	out, err := x.instance.Call(x.ctx, export, payload)
	if err == nil {
		var ok json.RawMessage
		if ok, err = decodeEnvelope(export, out); err == nil {
			result, err = decode(newConverter(x.ctx, x.caps), ok)
		}
	}
	if err != nil {
		x.logFailure(export, err)
	}
	return result, err
}
