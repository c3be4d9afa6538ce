package hostfuncs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	"github.com/tsuki-dev/tsuki-host/internal/resource"
)

// DefaultMaxBodySize bounds outgoing request bodies and drained response bodies (10MB).
const DefaultMaxBodySize = 10 * 1024 * 1024

// ErrBodyTooLarge is returned when a body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("body exceeds size limit")

// OutgoingRequest is an in-progress HTTP request built by a guest.
// Guests only ever hold its resource handle.
type OutgoingRequest struct {
	body          *BoundedBuffer
	Method        string
	Scheme        string
	Authority     string
	PathWithQuery string
	Headers       [][2]string
}

// NewOutgoingRequest returns an empty request whose body may grow to maxBody bytes.
func NewOutgoingRequest(maxBody int) *OutgoingRequest {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	return &OutgoingRequest{body: NewBoundedBuffer(maxBody)}
}

// WriteBody appends p to the request body.
func (r *OutgoingRequest) WriteBody(p []byte) error {
	_, _ = r.body.Write(p)
	if r.body.Truncated {
		return ErrBodyTooLarge
	}
	return nil
}

// Body returns a reader over the body written so far.
func (r *OutgoingRequest) Body() io.Reader {
	return bytes.NewReader(r.body.Bytes())
}

// Resolve validates r and converts it into a host-native resource. The body
// is drained from body with a context-aware read bounded by maxBody.
func (r *OutgoingRequest) Resolve(ctx context.Context, maxBody int64) (entities.HTTPResource, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	if strings.IndexFunc(method, func(c rune) bool { return !httpguts.IsTokenRune(c) }) >= 0 {
		return entities.HTTPResource{}, fmt.Errorf("invalid method %q", method)
	}

	u, err := composeURL(r.Scheme, r.Authority, r.PathWithQuery)
	if err != nil {
		return entities.HTTPResource{}, err
	}

	headers := make([]entities.Header, 0, len(r.Headers))
	for _, h := range r.Headers {
		if !httpguts.ValidHeaderFieldName(h[0]) {
			return entities.HTTPResource{}, fmt.Errorf("invalid header name %q", h[0])
		}
		if !httpguts.ValidHeaderFieldValue(h[1]) {
			return entities.HTTPResource{}, fmt.Errorf("invalid value for header %q", h[0])
		}
		headers = append(headers, entities.Header{Name: h[0], Value: h[1]})
	}

	body, err := DrainBody(ctx, r.Body(), maxBody)
	if err != nil {
		return entities.HTTPResource{}, err
	}
	if len(body) == 0 {
		body = nil
	}

	return entities.HTTPResource{URL: u, Method: method, Headers: headers, Body: body}, nil
}

func composeURL(scheme, authority, pathWithQuery string) (*url.URL, error) {
	scheme = strings.ToLower(scheme)
	if scheme == "" {
		scheme = "https"
	}
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", scheme)
	}
	if authority == "" {
		return nil, fmt.Errorf("authority is required")
	}
	if pathWithQuery == "" {
		pathWithQuery = "/"
	}
	if !strings.HasPrefix(pathWithQuery, "/") {
		return nil, fmt.Errorf("path %q must start with /", pathWithQuery)
	}
	u, err := url.Parse(scheme + "://" + authority + pathWithQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Host != authority {
		return nil, fmt.Errorf("invalid authority %q", authority)
	}
	return u, nil
}

// DrainBody reads r to EOF, checking ctx between chunks. Bodies larger than
// limit fail with ErrBodyTooLarge.
func DrainBody(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	buf := NewBoundedBuffer(int(limit))
	chunk := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			_, _ = buf.Write(chunk[:n])
			if buf.Truncated {
				return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
			}
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// IncomingResponse is the result of an egress call handed back to the guest.
type IncomingResponse struct {
	Headers       [][2]string `json:"headers,omitempty"`
	Body          []byte      `json:"body,omitempty"`
	Status        int         `json:"status"`
	LatencyMs     int64       `json:"latency_ms,omitempty"`
	BodyTruncated bool        `json:"body_truncated,omitempty"`
}

// EgressOption is a functional option for configuring the egress client.
type EgressOption func(*egressConfig)

type egressConfig struct {
	netfilter       []NetfilterOption
	timeout         time.Duration
	maxRedirects    int
	maxBodySize     int64
	followRedirects bool
	ssrfProtection  bool
}

func defaultEgressConfig() egressConfig {
	return egressConfig{
		timeout:         30 * time.Second,
		maxRedirects:    10,
		followRedirects: true,
		maxBodySize:     DefaultMaxBodySize,
		ssrfProtection:  true,
	}
}

// WithHTTPRequestTimeout sets the per-request timeout.
func WithHTTPRequestTimeout(d time.Duration) EgressOption {
	return func(c *egressConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPMaxRedirects sets the maximum number of redirects to follow.
func WithHTTPMaxRedirects(n int) EgressOption {
	return func(c *egressConfig) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// WithHTTPFollowRedirects controls whether to follow redirects.
func WithHTTPFollowRedirects(follow bool) EgressOption {
	return func(c *egressConfig) {
		c.followRedirects = follow
	}
}

// WithHTTPMaxBodySize sets the maximum request and response body size.
func WithHTTPMaxBodySize(size int64) EgressOption {
	return func(c *egressConfig) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithHTTPSSRFProtection configures the dial-time address filter. Private,
// loopback and link-local targets are blocked unless allowPrivate is true.
func WithHTTPSSRFProtection(allowPrivate bool, opts ...NetfilterOption) EgressOption {
	return func(c *egressConfig) {
		c.ssrfProtection = true
		c.netfilter = opts
		if allowPrivate {
			c.netfilter = append([]NetfilterOption{
				WithBlockPrivate(false), WithBlockLocalhost(false), WithBlockLinkLocal(false),
			}, opts...)
		}
	}
}

// WithoutSSRFProtection disables the dial-time address filter entirely.
func WithoutSSRFProtection() EgressOption {
	return func(c *egressConfig) {
		c.ssrfProtection = false
	}
}

// NetworkEgress performs outbound HTTP on behalf of guests. One instance is
// shared by every execution of an engine.
type NetworkEgress struct {
	client      *http.Client
	maxBodySize int64
}

// NewNetworkEgress builds the shared egress client.
func NewNetworkEgress(opts ...EgressOption) *NetworkEgress {
	cfg := defaultEgressConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if cfg.ssrfProtection {
		dialer.Control = DialControl(cfg.netfilter...)
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{
		Timeout:   cfg.timeout,
		Transport: transport,
	}
	if !cfg.followRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if cfg.maxRedirects > 0 {
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= cfg.maxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.maxRedirects)
			}
			return nil
		}
	}

	return &NetworkEgress{client: client, maxBodySize: cfg.maxBodySize}
}

// MaxBodySize returns the body limit applied to requests and responses.
func (e *NetworkEgress) MaxBodySize() int64 {
	return e.maxBodySize
}

// Send performs res and reads the response body up to the configured limit.
func (e *NetworkEgress) Send(ctx context.Context, res entities.HTTPResource) (*IncomingResponse, error) {
	if res.URL == nil {
		return nil, fmt.Errorf("request has no url")
	}

	var body io.Reader
	if len(res.Body) > 0 {
		body = bytes.NewReader(res.Body)
	}
	req, err := http.NewRequestWithContext(ctx, res.Method, res.URL.String(), body)
	if err != nil {
		return nil, err
	}
	for _, h := range res.Headers {
		req.Header.Add(h.Name, h.Value)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, &HostError{Kind: CodeEgress, Message: err.Error(), Status: http.StatusBadGateway}
	}
	defer func() { _ = resp.Body.Close() }()

	buf := NewBoundedBuffer(int(e.maxBodySize))
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, &HostError{Kind: CodeEgress, Message: "read body: " + err.Error(), Status: http.StatusBadGateway}
	}

	return &IncomingResponse{
		Status:        resp.StatusCode,
		Headers:       flattenHeaders(resp.Header),
		Body:          buf.Bytes(),
		BodyTruncated: buf.Truncated,
		LatencyMs:     latency.Milliseconds(),
	}, nil
}

func flattenHeaders(h http.Header) [][2]string {
	out := make([][2]string, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			out = append(out, [2]string{name, v})
		}
	}
	return out
}

// NewRequestRequest is the payload of http.new-request.
type NewRequestRequest struct {
	Method        string      `json:"method"`
	Scheme        string      `json:"scheme"`
	Authority     string      `json:"authority"`
	PathWithQuery string      `json:"path_with_query"`
	Headers       [][2]string `json:"headers,omitempty"`
	Body          []byte      `json:"body,omitempty"`
}

// HandleRequest names a resource handle.
type HandleRequest struct {
	Handle uint32 `json:"handle"`
}

// HandleResponse returns a freshly issued resource handle.
type HandleResponse struct {
	Handle uint32 `json:"handle"`
}

// BodyWriteRequest is the payload of http.body-write.
type BodyWriteRequest struct {
	Data   []byte `json:"data"`
	Handle uint32 `json:"handle"`
}

// NewRequest creates an outgoing request and returns its handle.
func NewRequest(_ context.Context, caps *Capabilities, req NewRequestRequest) (HandleResponse, error) {
	out := NewOutgoingRequest(int(caps.Egress.MaxBodySize()))
	out.Method = req.Method
	out.Scheme = req.Scheme
	out.Authority = req.Authority
	out.PathWithQuery = req.PathWithQuery
	out.Headers = req.Headers
	if len(req.Body) > 0 {
		if err := out.WriteBody(req.Body); err != nil {
			return HandleResponse{}, validationErr(err.Error())
		}
	}
	h, err := caps.Table.Push(out)
	if err != nil {
		return HandleResponse{}, err
	}
	return HandleResponse{Handle: h}, nil
}

// WriteRequestBody appends to the body of an outgoing request.
func WriteRequestBody(_ context.Context, caps *Capabilities, req BodyWriteRequest) (Empty, error) {
	out, err := resource.Get[*OutgoingRequest](caps.Table, req.Handle)
	if err != nil {
		return Empty{}, err
	}
	if err := out.WriteBody(req.Data); err != nil {
		return Empty{}, validationErr(err.Error())
	}
	return Empty{}, nil
}

// SendRequest consumes an outgoing request handle and performs the call.
func SendRequest(ctx context.Context, caps *Capabilities, req HandleRequest) (*IncomingResponse, error) {
	out, err := resource.Take[*OutgoingRequest](caps.Table, req.Handle)
	if err != nil {
		return nil, err
	}
	res, err := out.Resolve(ctx, caps.Egress.MaxBodySize())
	if err != nil {
		return nil, validationErr(err.Error())
	}
	return caps.Egress.Send(ctx, res)
}

// DropResource releases any handle the guest no longer needs.
func DropResource(_ context.Context, caps *Capabilities, req HandleRequest) (Empty, error) {
	return Empty{}, caps.Table.Drop(req.Handle)
}
