package host

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
	"github.com/tsuki-dev/tsuki-host/internal/resource"
)

// envelope is the result shape every packed export returns.
type envelope struct {
	OK  json.RawMessage `json:"ok"`
	Err *string         `json:"err"`
}

// decodeEnvelope splits a guest result into its ok payload or a GuestError.
func decodeEnvelope(export string, data []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &domainerrors.MarshalError{Value: export + " result", Err: err}
	}
	if env.Err != nil {
		return nil, &domainerrors.GuestError{Operation: export, Message: *env.Err}
	}
	if len(env.OK) == 0 {
		return nil, &domainerrors.MarshalError{Value: export + " result", Err: errors.New(`result has neither "ok" nor "err"`)}
	}
	return env.OK, nil
}

// decodeValue unmarshals a wire value, tagging failures with what was expected.
func decodeValue[T any](what string, data json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &domainerrors.MarshalError{Value: what, Err: err}
	}
	return v, nil
}

// converter turns guest values into host values within one execution.
// Handle-carrying values are consumed from its table.
type converter struct {
	ctx     context.Context
	table   *resource.Table
	maxBody int64
}

func newConverter(ctx context.Context, caps *hostfuncs.Capabilities) *converter {
	var maxBody int64 = hostfuncs.DefaultMaxBodySize
	if caps.Egress != nil {
		maxBody = caps.Egress.MaxBodySize()
	}
	return &converter{ctx: ctx, table: caps.Table, maxBody: maxBody}
}

// takeHTTP consumes an outgoing-request handle. The handle is removed from the
// table before the body is drained, so it is gone even when conversion fails.
func (c *converter) takeHTTP(h resource.Handle) (*entities.HTTPResource, error) {
	req, err := resource.Take[*hostfuncs.OutgoingRequest](c.table, h)
	if err != nil {
		return nil, &domainerrors.MarshalError{Value: "http-resource", Err: err}
	}
	res, err := req.Resolve(c.ctx, c.maxBody)
	if err != nil {
		return nil, &domainerrors.MarshalError{Value: "http-resource", Err: err}
	}
	return &res, nil
}

// optionalHTTP is takeHTTP for an optional handle.
func (c *converter) optionalHTTP(h *resource.Handle) (*entities.HTTPResource, error) {
	if h == nil {
		return nil, nil
	}
	return c.takeHTTP(*h)
}

// convertAll converts items in order, stopping at the first failure.
func convertAll[W, T any](items []W, fn func(W) (T, error)) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, item := range items {
		v, err := fn(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// convertPage converts a page element-wise, keeping has-next-page as given.
func convertPage[W, T any](items []W, hasNext bool, fn func(W) (T, error)) (entities.Page[T], error) {
	converted, err := convertAll(items, fn)
	if err != nil {
		return entities.Page[T]{}, err
	}
	return entities.Page[T]{Items: converted, HasNextPage: hasNext}, nil
}

// ParseMagnet validates a magnet link syntactically. It requires the magnet
// scheme and at least one BitTorrent exact topic with a 40 character hex or
// 32 character base32 info hash.
func ParseMagnet(raw string) (*entities.MagnetURI, error) {
	rest, ok := strings.CutPrefix(raw, "magnet:?")
	if !ok {
		return nil, &domainerrors.MarshalError{Value: "magnet", Err: errors.New("not a magnet URI")}
	}
	params, err := url.ParseQuery(rest)
	if err != nil {
		return nil, &domainerrors.MarshalError{Value: "magnet", Err: err}
	}

	m := &entities.MagnetURI{
		Raw:         raw,
		DisplayName: params.Get("dn"),
		Trackers:    params["tr"],
	}
	for _, xt := range params["xt"] {
		hash, ok := strings.CutPrefix(xt, "urn:btih:")
		if ok && validInfoHash(hash) {
			m.InfoHash = strings.ToLower(hash)
			return m, nil
		}
	}
	return nil, &domainerrors.MarshalError{Value: "magnet", Err: errors.New("missing urn:btih exact topic")}
}

func validInfoHash(hash string) bool {
	switch len(hash) {
	case 40:
		_, err := hex.DecodeString(hash)
		return err == nil
	case 32:
		for _, r := range strings.ToUpper(hash) {
			if (r < 'A' || r > 'Z') && (r < '2' || r > '7') {
				return false
			}
		}
		return true
	}
	return false
}

// ParseMediaResource converts a plain resource string, an http(s) URL or a
// magnet link, into a MediaResource.
func ParseMediaResource(raw string) (entities.MediaResource, error) {
	if strings.HasPrefix(raw, "magnet:") {
		m, err := ParseMagnet(raw)
		if err != nil {
			return entities.MediaResource{}, err
		}
		return entities.MediaResource{Magnet: m}, nil
	}
	res, err := parseHTTPURL(raw)
	if err != nil {
		return entities.MediaResource{}, err
	}
	return entities.MediaResource{HTTP: res}, nil
}

func parseHTTPURL(raw string) (*entities.HTTPResource, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &domainerrors.MarshalError{Value: "url", Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &domainerrors.MarshalError{Value: "url", Err: fmt.Errorf("%q is not an absolute http(s) URL", raw)}
	}
	return &entities.HTTPResource{Method: "GET", URL: u}, nil
}

func optionalURL(raw *string) (*entities.HTTPResource, error) {
	if raw == nil {
		return nil, nil
	}
	return parseHTTPURL(*raw)
}

func headerPairs(headers []entities.Header) [][2]string {
	if len(headers) == 0 {
		return nil
	}
	out := make([][2]string, len(headers))
	for i, h := range headers {
		out[i] = [2]string{h.Name, h.Value}
	}
	return out
}
