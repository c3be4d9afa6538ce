package host

import (
	"errors"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
	"github.com/tsuki-dev/tsuki-host/internal/resource"
)

// Wire types of the 0.1.0-draft generations. Field names are kebab-case and
// HTTP resources are outgoing-request handles the host consumes.

type v010FilterSelection struct {
	ID     string   `json:"id"`
	Values []string `json:"values"`
}

type v010SearchInput struct {
	Page    *uint32               `json:"page"`
	Query   string                `json:"query"`
	Filters []v010FilterSelection `json:"filters"`
}

type v010IDInput struct {
	ID string `json:"id"`
}

type v010EpisodesInput struct {
	Page *uint32 `json:"page"`
	ID   string  `json:"id"`
}

type v010VideosInput struct {
	SeriesID  string `json:"series-id"`
	EpisodeID string `json:"episode-id"`
}

type v010FilterOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type v010Filter struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Options []v010FilterOption `json:"options"`
}

type v010Series struct {
	Poster   *resource.Handle `json:"poster,omitempty"`
	Synopsis *string          `json:"synopsis,omitempty"`
	Type     *string          `json:"type,omitempty"`
	ID       string           `json:"id"`
	Title    string           `json:"title"`
}

type v010Episode struct {
	Title       *string          `json:"title,omitempty"`
	Thumbnail   *resource.Handle `json:"thumbnail,omitempty"`
	Description *string          `json:"description,omitempty"`
	ID          string           `json:"id"`
	Number      float64          `json:"number"`
}

type v010MediaResource struct {
	HTTP   *resource.Handle `json:"http,omitempty"`
	Magnet *string          `json:"magnet,omitempty"`
}

type v010Video struct {
	Resource   v010MediaResource `json:"resource"`
	Server     string            `json:"server"`
	Resolution string            `json:"resolution"`
}

type v010SeriesPage struct {
	Items       []v010Series `json:"items"`
	HasNextPage bool         `json:"has-next-page"`
}

type v010EpisodePage struct {
	Items       []v010Episode `json:"items"`
	HasNextPage bool          `json:"has-next-page"`
}

// v010HTTPDescriptor is a handle-free HTTP request the host hands to a
// processor's resolve-resource.
type v010HTTPDescriptor struct {
	Method        string      `json:"method"`
	Scheme        string      `json:"scheme"`
	Authority     string      `json:"authority"`
	PathWithQuery string      `json:"path-with-query"`
	Headers       [][2]string `json:"headers,omitempty"`
	Body          []byte      `json:"body,omitempty"`
}

type v010ResourceDescriptor struct {
	HTTP   *v010HTTPDescriptor `json:"http,omitempty"`
	Magnet *string             `json:"magnet,omitempty"`
}

func filterSelections(in []entities.FilterSelection) []v010FilterSelection {
	out := make([]v010FilterSelection, len(in))
	for i, f := range in {
		out[i] = v010FilterSelection{ID: f.ID, Values: f.Values}
	}
	return out
}

func (f v010Filter) toEntity() (entities.Filter, error) {
	options := make([]entities.FilterOption, len(f.Options))
	for i, o := range f.Options {
		options[i] = entities.FilterOption{ID: o.ID, Name: o.Name}
	}
	return entities.Filter{ID: f.ID, Name: f.Name, Options: options}, nil
}

func (c *converter) series(s v010Series) (entities.Series, error) {
	poster, err := c.optionalHTTP(s.Poster)
	if err != nil {
		return entities.Series{}, err
	}
	return entities.Series{
		ID:       s.ID,
		Title:    s.Title,
		Poster:   poster,
		Synopsis: s.Synopsis,
		Type:     s.Type,
	}, nil
}

func (c *converter) episode(e v010Episode) (entities.Episode, error) {
	thumb, err := c.optionalHTTP(e.Thumbnail)
	if err != nil {
		return entities.Episode{}, err
	}
	return entities.Episode{
		ID:          e.ID,
		Number:      e.Number,
		Title:       e.Title,
		Thumbnail:   thumb,
		Description: e.Description,
	}, nil
}

func (c *converter) mediaResource(r v010MediaResource) (entities.MediaResource, error) {
	switch {
	case r.HTTP != nil && r.Magnet != nil:
		return entities.MediaResource{}, &domainerrors.MarshalError{Value: "media-resource", Err: errors.New("both http and magnet set")}
	case r.HTTP != nil:
		res, err := c.takeHTTP(*r.HTTP)
		if err != nil {
			return entities.MediaResource{}, err
		}
		return entities.MediaResource{HTTP: res}, nil
	case r.Magnet != nil:
		m, err := ParseMagnet(*r.Magnet)
		if err != nil {
			return entities.MediaResource{}, err
		}
		return entities.MediaResource{Magnet: m}, nil
	}
	return entities.MediaResource{}, &domainerrors.MarshalError{Value: "media-resource", Err: errors.New("no variant set")}
}

func (c *converter) video(v v010Video) (entities.Video, error) {
	res, err := c.mediaResource(v.Resource)
	if err != nil {
		return entities.Video{}, err
	}
	return entities.Video{Resource: res, Server: v.Server, Resolution: v.Resolution}, nil
}

// resourceDescriptor encodes a host MediaResource for a processor guest.
func resourceDescriptor(res entities.MediaResource) (v010ResourceDescriptor, error) {
	if err := res.Validate(); err != nil {
		return v010ResourceDescriptor{}, &domainerrors.MarshalError{Value: "media-resource", Err: err}
	}
	if res.Magnet != nil {
		raw := res.Magnet.Raw
		return v010ResourceDescriptor{Magnet: &raw}, nil
	}
	if res.HTTP.URL == nil {
		return v010ResourceDescriptor{}, &domainerrors.MarshalError{Value: "media-resource", Err: errors.New("http resource has no URL")}
	}
	method := res.HTTP.Method
	if method == "" {
		method = "GET"
	}
	return v010ResourceDescriptor{HTTP: &v010HTTPDescriptor{
		Method:        method,
		Scheme:        res.HTTP.URL.Scheme,
		Authority:     res.HTTP.URL.Host,
		PathWithQuery: res.HTTP.URL.RequestURI(),
		Headers:       headerPairs(res.HTTP.Headers),
		Body:          res.HTTP.Body,
	}}, nil
}
