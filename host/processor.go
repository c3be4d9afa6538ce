package host

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// Processor is a loaded media-resolution plugin. Inbound requests reach it
// through a Server.
type Processor struct {
	*Template
}

// ResolveToken asks the guest to resolve res and returns its opaque token.
func (p *Processor) ResolveToken(ctx context.Context, res entities.MediaResource) (string, error) {
	if p.gen.id != genProcessorV010Draft {
		return "", p.unknownGeneration()
	}
	in, err := resourceDescriptor(res)
	if err != nil {
		return "", err
	}
	return invoke(ctx, p.Template, ExportResolveResource, in, func(_ *converter, ok json.RawMessage) (string, error) {
		return decodeValue[string]("token", ok)
	})
}

// inbound is one request in flight inside a guest.
type inbound struct {
	out  *hostfuncs.ResponseOutparam
	done <-chan error
	id   string
}

// dispatch starts handle-request for in. The request and a response outparam
// are pushed into a fresh execution; the guest runs in its own goroutine,
// which owns the execution and closes it when the export returns. The
// outparam fires when the guest answers and done yields the task result.
func (p *Processor) dispatch(ctx context.Context, in *hostfuncs.IncomingRequest) (*inbound, error) {
	x, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}

	out := hostfuncs.NewResponseOutparam()
	reqHandle, err := x.caps.Table.Push(in)
	if err != nil {
		x.close()
		return nil, err
	}
	outHandle, err := x.caps.Table.Push(out)
	if err != nil {
		x.close()
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		defer x.close()
		start := time.Now()
		err := x.instance.Handle(x.ctx, ExportHandleRequest, reqHandle, outHandle)
		if err != nil {
			x.logFailure(ExportHandleRequest, err)
		}
		p.engine.metrics.observe(p.meta.Name, ExportHandleRequest, time.Since(start).Seconds(), err)
		done <- err
	}()
	return &inbound{out: out, done: done, id: x.id}, nil
}
