package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"
)

// ByteHandler is a function that accepts raw bytes (JSON) and returns raw bytes (JSON).
// This is the common interface that WASM runtimes can easily use.
type ByteHandler func(context.Context, []byte) ([]byte, error)

// CapabilityFunc is a typed host function operating on the capabilities of
// the execution context it was invoked from.
type CapabilityFunc[Req any, Resp any] func(ctx context.Context, caps *Capabilities, req Req) (Resp, error)

// NewCapabilityHandler wraps a typed CapabilityFunc into a ByteHandler.
// It resolves the call's capabilities from ctx, decodes the JSON request and
// encodes either the response or an ErrorResponse. Only encoding failures of
// the response itself surface as a Go error.
//
// Usage:
//
//	kvGet := hostfuncs.NewCapabilityHandler(func(ctx context.Context, caps *hostfuncs.Capabilities, req hostfuncs.KVKeyRequest) (hostfuncs.KVGetResponse, error) {
//	    return caps.KeyValue.Get(req)
//	})
func NewCapabilityHandler[Req any, Resp any](fn CapabilityFunc[Req, Resp]) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		caps, ok := CapabilitiesFrom(ctx)
		if !ok {
			return NewInternalError("host function called outside an execution context").ToJSON(), nil
		}

		var req Req
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return NewValidationError("malformed request: " + err.Error()).ToJSON(), nil
			}
		}

		resp, err := fn(ctx, caps, req)
		if err != nil {
			return ResponseFor(err).ToJSON(), nil
		}

		respBytes, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return respBytes, nil
	}
}

// Empty is the response of host functions that return nothing on success.
type Empty struct{}
