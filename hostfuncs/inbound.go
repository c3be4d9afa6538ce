package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/tsuki-dev/tsuki-host/internal/resource"
)

// Return codes of the raw response-outparam.set import.
const (
	OutparamOK         int32 = 0
	OutparamBadHandle  int32 = 1
	OutparamMalformed  int32 = 2
	OutparamAlreadySet int32 = 3
)

// IncomingRequest is an inbound HTTP request handed to a processor guest.
type IncomingRequest struct {
	Method        string      `json:"method"`
	Scheme        string      `json:"scheme"`
	Authority     string      `json:"authority"`
	PathWithQuery string      `json:"path_with_query"`
	Headers       [][2]string `json:"headers,omitempty"`
	Body          []byte      `json:"body,omitempty"`
}

// NewIncomingRequest snapshots r, reading its body up to maxBody bytes.
func NewIncomingRequest(ctx context.Context, r *http.Request, maxBody int64) (*IncomingRequest, error) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	in := &IncomingRequest{
		Method:        r.Method,
		Scheme:        scheme,
		Authority:     r.Host,
		PathWithQuery: r.URL.RequestURI(),
		Headers:       flattenHeaders(r.Header),
	}
	if r.Body != nil {
		body, err := DrainBody(ctx, r.Body, maxBody)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		if len(body) > 0 {
			in.Body = body
		}
	}
	return in, nil
}

// OutgoingResponse is the response a guest declares through its outparam.
type OutgoingResponse struct {
	Headers [][2]string `json:"headers,omitempty"`
	Body    []byte      `json:"body,omitempty"`
	Status  int         `json:"status"`
}

// ResponseOutparam is a one-shot slot the guest fills with its response.
// Done is closed when the response is set.
type ResponseOutparam struct {
	resp *OutgoingResponse
	done chan struct{}
	once sync.Once
}

// NewResponseOutparam returns an unset outparam.
func NewResponseOutparam() *ResponseOutparam {
	return &ResponseOutparam{done: make(chan struct{})}
}

// Set records resp and fires the signal. Only the first call wins.
func (o *ResponseOutparam) Set(resp *OutgoingResponse) bool {
	set := false
	o.once.Do(func() {
		o.resp = resp
		close(o.done)
		set = true
	})
	return set
}

// Done returns a channel closed once the response is set.
func (o *ResponseOutparam) Done() <-chan struct{} {
	return o.done
}

// Response returns the declared response; nil until Done is closed.
func (o *ResponseOutparam) Response() *OutgoingResponse {
	select {
	case <-o.done:
		return o.resp
	default:
		return nil
	}
}

// ReadIncomingRequest returns the request behind a handle without consuming it.
func ReadIncomingRequest(_ context.Context, caps *Capabilities, req HandleRequest) (*IncomingRequest, error) {
	return resource.Get[*IncomingRequest](caps.Table, req.Handle)
}

// SetResponseOutparam consumes an outparam handle and fills it with the JSON
// encoded OutgoingResponse in payload. It returns one of the Outparam codes.
func SetResponseOutparam(ctx context.Context, handle uint32, payload []byte) int32 {
	caps, ok := CapabilitiesFrom(ctx)
	if !ok {
		return OutparamBadHandle
	}
	out, err := resource.Take[*ResponseOutparam](caps.Table, handle)
	if err != nil {
		return OutparamBadHandle
	}

	var resp OutgoingResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return OutparamMalformed
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if resp.Status < 100 || resp.Status > 999 {
		return OutparamMalformed
	}
	if !out.Set(&resp) {
		return OutparamAlreadySet
	}
	return OutparamOK
}
