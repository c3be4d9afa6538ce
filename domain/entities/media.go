package entities

// Page is one page of a guest-paginated listing.
// Pagination is opaque to the host: HasNextPage is whatever the guest said.
type Page[T any] struct {
	Items       []T  `json:"items"`
	HasNextPage bool `json:"has_next_page"`
}

// Series is a show, movie or other top-level entry returned by an extension.
type Series struct {
	Poster   *HTTPResource `json:"poster,omitempty"`
	Synopsis *string       `json:"synopsis,omitempty"`
	Type     *string       `json:"type,omitempty"`
	ID       string        `json:"id"`
	Title    string        `json:"title"`
}

// Episode belongs to a Series.
type Episode struct {
	Title       *string       `json:"title,omitempty"`
	Thumbnail   *HTTPResource `json:"thumbnail,omitempty"`
	Description *string       `json:"description,omitempty"`
	ID          string        `json:"id"`
	Number      float64       `json:"number"`
}

// Video is one playable source for an episode.
type Video struct {
	Resource MediaResource `json:"resource"`

	// Server is the label of the source server (e.g. a mirror name).
	Server string `json:"server"`

	// Resolution is the guest-provided quality label, e.g. "1080p".
	Resolution string `json:"resolution"`
}

// Filter is a filter category an extension accepts on search.
type Filter struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Options []FilterOption `json:"options"`
}

// FilterOption is one selectable value of a Filter.
type FilterOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FilterSelection is the caller's choice for one Filter, built from the output
// of the extension's filter listing.
type FilterSelection struct {
	ID     string   `json:"id"`
	Values []string `json:"values"`
}
