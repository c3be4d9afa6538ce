package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// RequestIDHeader carries the id a Server assigns to every inbound request.
const RequestIDHeader = "X-Request-Id"

// noResponseMessage describes a guest that finished handle-request without
// setting its response outparam.
const noResponseMessage = "guest never invoked response-outparam::set"

// Server forwards inbound HTTP requests to a processor, one fresh execution
// per request.
type Server struct {
	processor *Processor
	logger    *slog.Logger
	srv       *http.Server
	addr      net.Addr
	maxBody   int64
	mu        sync.Mutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the request logger. Defaults to the plugin's logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxInboundBody limits inbound request bodies. Defaults to
// hostfuncs.DefaultMaxBodySize.
func WithMaxInboundBody(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// NewServer returns a server for p. It does not listen until Start.
func NewServer(p *Processor, opts ...ServerOption) *Server {
	s := &Server{
		processor: p,
		logger:    p.logger,
		maxBody:   hostfuncs.DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on addr (":0" picks a free port) and serves in the
// background. The bound address is recorded once and never changes.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.addr = ln.Addr()
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv := s.srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("inbound server stopped", "error", err)
		}
	}()
	s.logger.Info("inbound server listening", "addr", s.addr.String())
	return nil
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close stops accepting requests and waits for in-flight responses until ctx
// is done. Guests still running after their response was sent are not waited on.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ResolveResource asks the processor for a token and returns it as a URL on
// this server.
func (s *Server) ResolveResource(ctx context.Context, res entities.MediaResource) (*url.URL, error) {
	addr := s.Addr()
	if addr == nil {
		return nil, errors.New("server not started")
	}
	token, err := s.processor.ResolveToken(ctx, res)
	if err != nil {
		return nil, err
	}
	return composeURL(addr.String(), token)
}

// composeURL resolves token against http://addr/. Tokens must be relative
// references so the result always points back at this server.
func composeURL(addr, token string) (*url.URL, error) {
	ref, err := url.Parse(token)
	if err != nil {
		return nil, &domainerrors.MarshalError{Value: "token", Err: err}
	}
	if ref.Scheme != "" || ref.Host != "" {
		return nil, &domainerrors.MarshalError{Value: "token", Err: fmt.Errorf("%q is not a relative reference", token)}
	}
	base := &url.URL{Scheme: "http", Host: addr, Path: "/"}
	return base.ResolveReference(ref), nil
}

// ServeHTTP runs one request through the processor's handle-request export
// and answers with whatever the guest put in its response outparam.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set(RequestIDHeader, requestID)
	logger := s.logger.With("request_id", requestID, "method", r.Method, "path", r.URL.Path)

	in, err := hostfuncs.NewIncomingRequest(r.Context(), r, s.maxBody)
	if err != nil && r.Context().Err() != nil {
		logger.InfoContext(r.Context(), "client went away while sending its request")
		return
	}
	if err != nil {
		logger.WarnContext(r.Context(), "read inbound request", "error", err)
		status := http.StatusBadRequest
		if errors.Is(err, hostfuncs.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	// The guest outlives the request when it answers early.
	call, err := s.processor.dispatch(context.WithoutCancel(r.Context()), in)
	if err != nil {
		logger.ErrorContext(r.Context(), "start guest", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	logger = logger.With("execution", call.id)

	select {
	case <-call.out.Done():
		s.writeResponse(w, call.out.Response(), logger)
	case taskErr := <-call.done:
		// the signal may have fired just before the task returned
		select {
		case <-call.out.Done():
			s.writeResponse(w, call.out.Response(), logger)
			return
		default:
		}
		s.violation(w, r, taskErr, logger)
	case <-r.Context().Done():
		logger.InfoContext(r.Context(), "client went away before the guest answered")
	}
}

func (s *Server) violation(w http.ResponseWriter, r *http.Request, taskErr error, logger *slog.Logger) {
	err := &domainerrors.ProtocolViolationError{Message: noResponseMessage, Err: taskErr}
	s.processor.engine.metrics.violations.WithLabelValues(s.processor.meta.Name).Inc()
	logger.ErrorContext(r.Context(), "inbound request failed", "error", err)

	w.Header().Set("Connection", "close")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *hostfuncs.OutgoingResponse, logger *slog.Logger) {
	h := w.Header()
	for _, kv := range resp.Headers {
		if !httpguts.ValidHeaderFieldName(kv[0]) || !httpguts.ValidHeaderFieldValue(kv[1]) {
			logger.Warn("dropping invalid response header", "header", kv[0])
			continue
		}
		h.Add(kv[0], kv[1])
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			logger.Debug("write response body", "error", err)
		}
	}
	logger.Debug("inbound request answered", "status", resp.Status)
}
