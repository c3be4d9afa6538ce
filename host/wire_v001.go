package host

import (
	"github.com/tsuki-dev/tsuki-host/domain/entities"
)

// Wire types of extension@0.0.1. Field names are snake_case and media
// resources travel as plain URL strings, so nothing here carries a handle.

type v001SearchInput struct {
	Page  *uint32 `json:"page"`
	Query string  `json:"query"`
}

type v001IDInput struct {
	ID string `json:"id"`
}

type v001EpisodesInput struct {
	Page *uint32 `json:"page"`
	ID   string  `json:"id"`
}

type v001VideosInput struct {
	SeriesID  string `json:"series_id"`
	EpisodeID string `json:"episode_id"`
}

type v001Series struct {
	PosterURL *string `json:"poster_url,omitempty"`
	Synopsis  *string `json:"synopsis,omitempty"`
	Type      *string `json:"type,omitempty"`
	ID        string  `json:"id"`
	Title     string  `json:"title"`
}

type v001Episode struct {
	Title        *string `json:"title,omitempty"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
	Description  *string `json:"description,omitempty"`
	ID           string  `json:"id"`
	Number       float64 `json:"number"`
}

type v001Video struct {
	URL        string `json:"url"`
	Server     string `json:"server"`
	Resolution string `json:"resolution"`
}

type v001SeriesPage struct {
	Items       []v001Series `json:"items"`
	HasNextPage bool         `json:"has_next_page"`
}

type v001EpisodePage struct {
	Items       []v001Episode `json:"items"`
	HasNextPage bool          `json:"has_next_page"`
}

func (s v001Series) toEntity() (entities.Series, error) {
	poster, err := optionalURL(s.PosterURL)
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

func (e v001Episode) toEntity() (entities.Episode, error) {
	thumb, err := optionalURL(e.ThumbnailURL)
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

func (v v001Video) toEntity() (entities.Video, error) {
	res, err := ParseMediaResource(v.URL)
	if err != nil {
		return entities.Video{}, err
	}
	return entities.Video{Resource: res, Server: v.Server, Resolution: v.Resolution}, nil
}
