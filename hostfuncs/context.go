package hostfuncs

import (
	"context"
)

// HostContext is the context a registry hands to a handler. It names the
// host function being invoked so middleware can tag what it logs or measures.
type HostContext interface {
	context.Context

	// FunctionName returns the name of the host function being invoked.
	FunctionName() string
}

type hostContext struct {
	context.Context
	funcName string
}

// NewHostContext creates a new HostContext wrapping the given context.
func NewHostContext(ctx context.Context, funcName string) HostContext {
	return &hostContext{Context: ctx, funcName: funcName}
}

func (c *hostContext) FunctionName() string {
	return c.funcName
}

// HostContextFrom returns ctx when it already is a HostContext for funcName,
// otherwise wraps it.
func HostContextFrom(ctx context.Context, funcName string) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.FunctionName() == funcName {
		return hc
	}
	return NewHostContext(ctx, funcName)
}

type capabilitiesKey struct{}

// WithCapabilities binds the capabilities of one execution context to ctx.
// Host functions invoked with the returned context operate on caps.
func WithCapabilities(ctx context.Context, caps *Capabilities) context.Context {
	return context.WithValue(ctx, capabilitiesKey{}, caps)
}

// CapabilitiesFrom returns the capabilities bound to ctx, if any.
func CapabilitiesFrom(ctx context.Context) (*Capabilities, bool) {
	caps, ok := ctx.Value(capabilitiesKey{}).(*Capabilities)
	return caps, ok && caps != nil
}
