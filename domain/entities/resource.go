package entities

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Header is a single HTTP header line. Headers are kept as an ordered list so
// repeated names keep the order the guest gave them.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HTTPResource is a fully-specified HTTP request that yields media bytes.
type HTTPResource struct {
	URL     *url.URL `json:"-"`
	Method  string   `json:"method"`
	Headers []Header `json:"headers,omitempty"`
	Body    []byte   `json:"body,omitempty"`
}

// String returns "METHOD URL".
func (r HTTPResource) String() string {
	if r.URL == nil {
		return r.Method
	}
	return r.Method + " " + r.URL.String()
}

// MarshalJSON renders URL as a string field.
func (r HTTPResource) MarshalJSON() ([]byte, error) {
	type plain HTTPResource
	var u string
	if r.URL != nil {
		u = r.URL.String()
	}
	return json.Marshal(struct {
		URL string `json:"url"`
		plain
	}{URL: u, plain: plain(r)})
}

// MagnetURI is a syntactically validated magnet link. The host never
// dereferences it.
type MagnetURI struct {
	Raw         string   `json:"raw"`
	InfoHash    string   `json:"info_hash"`
	DisplayName string   `json:"display_name,omitempty"`
	Trackers    []string `json:"trackers,omitempty"`
}

// MediaResource points at playable media: exactly one of HTTP or Magnet is set.
type MediaResource struct {
	HTTP   *HTTPResource `json:"http,omitempty"`
	Magnet *MagnetURI    `json:"magnet,omitempty"`
}

// Validate reports whether exactly one variant is set.
func (m MediaResource) Validate() error {
	switch {
	case m.HTTP != nil && m.Magnet != nil:
		return fmt.Errorf("media resource has both http and magnet variants")
	case m.HTTP == nil && m.Magnet == nil:
		return fmt.Errorf("media resource is empty")
	}
	return nil
}

func (m MediaResource) String() string {
	switch {
	case m.HTTP != nil:
		return m.HTTP.String()
	case m.Magnet != nil:
		return m.Magnet.Raw
	}
	return "<empty>"
}
