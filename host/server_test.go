package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
	"github.com/tsuki-dev/tsuki-host/internal/resource"
)

type handleFunc = func(ctx context.Context, caps *hostfuncs.Capabilities, export string, req, out uint32) error

func fakeProcessor(t *testing.T, guest fakeGuest) (*Processor, *Engine, *bytes.Buffer) {
	t.Helper()
	e, logs := newTestEngine(t)
	tpl, _ := fakeTemplate(t, e, generation(t, entities.ContractProcessor, "0.1.0"), guest)
	return &Processor{Template: tpl}, e, logs
}

func respond(ctx context.Context, out uint32, resp hostfuncs.OutgoingResponse) int32 {
	payload, _ := json.Marshal(resp)
	return hostfuncs.SetResponseOutparam(ctx, out, payload)
}

func TestServer_GuestResponds(t *testing.T) {
	var handle handleFunc = func(ctx context.Context, caps *hostfuncs.Capabilities, export string, req, out uint32) error {
		assert.Equal(t, ExportHandleRequest, export)
		in, err := resource.Get[*hostfuncs.IncomingRequest](caps.Table, req)
		require.NoError(t, err)
		assert.Equal(t, "POST", in.Method)
		assert.Equal(t, "/stream/abc?x=1", in.PathWithQuery)
		assert.Equal(t, []byte("ping"), in.Body)

		code := respond(ctx, out, hostfuncs.OutgoingResponse{
			Status:  http.StatusCreated,
			Headers: [][2]string{{"Content-Type", "text/plain"}, {"X-Multi", "a"}, {"X-Multi", "b"}},
			Body:    []byte("pong"),
		})
		assert.Equal(t, hostfuncs.OutparamOK, code)
		return nil
	}
	p, _, _ := fakeProcessor(t, fakeGuest{handle: handle})
	s := NewServer(p)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stream/abc?x=1", strings.NewReader("ping")))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"a", "b"}, rec.Header().Values("X-Multi"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Empty(t, rec.Header().Get("Connection"))
}

func TestServer_GuestNeverResponds(t *testing.T) {
	var handle handleFunc = func(context.Context, *hostfuncs.Capabilities, string, uint32, uint32) error {
		return nil
	}
	p, e, logs := fakeProcessor(t, fakeGuest{handle: handle})
	s := NewServer(p)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
	assert.Contains(t, logs.String(), "guest never invoked response-outparam::set")
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.violations.WithLabelValues("fake")))
}

func TestServer_GuestTrapsBeforeResponding(t *testing.T) {
	trap := &domainerrors.TrapError{Export: ExportHandleRequest, Err: errors.New("unreachable")}
	var handle handleFunc = func(context.Context, *hostfuncs.Capabilities, string, uint32, uint32) error {
		return trap
	}
	p, _, logs := fakeProcessor(t, fakeGuest{handle: handle})

	rec := httptest.NewRecorder()
	NewServer(p).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
	assert.Contains(t, logs.String(), "guest trapped in handle-request")
}

func TestServer_SignalWinsOverRunningTask(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	var handle handleFunc = func(ctx context.Context, _ *hostfuncs.Capabilities, _ string, _, out uint32) error {
		defer close(finished)
		respond(ctx, out, hostfuncs.OutgoingResponse{Status: http.StatusOK, Body: []byte("early")})
		<-release
		return errors.New("late failure is discarded")
	}
	p, _, _ := fakeProcessor(t, fakeGuest{handle: handle})

	rec := httptest.NewRecorder()
	NewServer(p).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "early", rec.Body.String())

	close(release)
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("guest task never finished")
	}
}

func TestServer_SecondSetIsRejected(t *testing.T) {
	codes := make(chan int32, 2)
	var handle handleFunc = func(ctx context.Context, _ *hostfuncs.Capabilities, _ string, _, out uint32) error {
		codes <- respond(ctx, out, hostfuncs.OutgoingResponse{Status: http.StatusAccepted})
		codes <- respond(ctx, out, hostfuncs.OutgoingResponse{Status: http.StatusTeapot})
		return nil
	}
	p, _, _ := fakeProcessor(t, fakeGuest{handle: handle})

	rec := httptest.NewRecorder()
	NewServer(p).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, hostfuncs.OutparamOK, <-codes)
	assert.Equal(t, hostfuncs.OutparamBadHandle, <-codes)
}

func TestServer_ClientGoneBeforeAnswer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	var handle handleFunc = func(context.Context, *hostfuncs.Capabilities, string, uint32, uint32) error {
		cancel()
		<-release
		return nil
	}
	p, _, _ := fakeProcessor(t, fakeGuest{handle: handle})
	defer close(release)

	rec := httptest.NewRecorder()
	NewServer(p).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header().Get("Connection"))
}

func TestServer_RequestBodyTooLarge(t *testing.T) {
	var handle handleFunc = func(context.Context, *hostfuncs.Capabilities, string, uint32, uint32) error {
		t.Fatal("guest must not run")
		return nil
	}
	p, _, _ := fakeProcessor(t, fakeGuest{handle: handle})

	rec := httptest.NewRecorder()
	NewServer(p, WithMaxInboundBody(4)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_ResolveResource(t *testing.T) {
	var call = func(_ context.Context, _ *hostfuncs.Capabilities, export string, input []byte) (string, error) {
		assert.Equal(t, ExportResolveResource, export)
		assert.JSONEq(t, `{"magnet":"magnet:?xt=urn:btih:`+hexHash+`"}`, string(input))
		return `{"ok":"streams/42?part=1"}`, nil
	}
	p, _, _ := fakeProcessor(t, fakeGuest{call: call})
	s := NewServer(p)

	res := entities.MediaResource{Magnet: &entities.MagnetURI{Raw: "magnet:?xt=urn:btih:" + hexHash}}
	_, err := s.ResolveResource(context.Background(), res)
	assert.ErrorContains(t, err, "not started")

	require.NoError(t, s.Start("127.0.0.1:0"))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	assert.Error(t, s.Start("127.0.0.1:0"))

	u, err := s.ResolveResource(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "http://"+s.Addr().String()+"/streams/42?part=1", u.String())
}

func TestServer_OverNetwork(t *testing.T) {
	var handle handleFunc = func(ctx context.Context, caps *hostfuncs.Capabilities, _ string, req, out uint32) error {
		in, err := hostfuncs.ReadIncomingRequest(ctx, caps, hostfuncs.HandleRequest{Handle: req})
		if err != nil {
			return err
		}
		respond(ctx, out, hostfuncs.OutgoingResponse{Body: []byte(in.PathWithQuery)})
		return nil
	}
	p, _, _ := fakeProcessor(t, fakeGuest{handle: handle})
	s := NewServer(p)
	require.NoError(t, s.Start("127.0.0.1:0"))
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	resp, err := http.Get("http://" + s.Addr().String() + "/echo?x=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/echo?x=1", body.String())
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestComposeURL(t *testing.T) {
	u, err := composeURL("127.0.0.1:8080", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/a/b", u.String())

	u, err = composeURL("127.0.0.1:8080", "/abs?q=1")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/abs?q=1", u.String())

	for _, token := range []string{"https://evil.example/x", "//evil.example/x", "%zz"} {
		_, err := composeURL("127.0.0.1:8080", token)
		var marshalErr *domainerrors.MarshalError
		assert.ErrorAs(t, err, &marshalErr, token)
	}
}
