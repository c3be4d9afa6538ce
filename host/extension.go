package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
)

// Extension is a loaded content-discovery plugin. Every method runs in its
// own execution context; guest-declared failures are *errors.GuestError.
type Extension struct {
	*Template
}

// Filters lists the filter categories the extension accepts on Search.
// Generations without a filters export report none.
func (x *Extension) Filters(ctx context.Context) ([]entities.Filter, error) {
	switch x.gen.id {
	case genExtensionV001:
		return []entities.Filter{}, nil
	case genExtensionV010Draft:
		return invoke(ctx, x.Template, ExportFilters, struct{}{}, func(_ *converter, ok json.RawMessage) ([]entities.Filter, error) {
			wire, err := decodeValue[[]v010Filter]("filters", ok)
			if err != nil {
				return nil, err
			}
			return convertAll(wire, v010Filter.toEntity)
		})
	}
	return nil, x.unknownGeneration()
}

// Search returns one page of series matching query. page is forwarded to the
// guest untouched; filters is built from the output of Filters.
func (x *Extension) Search(ctx context.Context, query string, page *uint32, filters []entities.FilterSelection) (entities.Page[entities.Series], error) {
	switch x.gen.id {
	case genExtensionV001:
		in := v001SearchInput{Query: query, Page: page}
		return invoke(ctx, x.Template, ExportSearch, in, func(_ *converter, ok json.RawMessage) (entities.Page[entities.Series], error) {
			wire, err := decodeValue[v001SeriesPage]("series page", ok)
			if err != nil {
				return entities.Page[entities.Series]{}, err
			}
			return convertPage(wire.Items, wire.HasNextPage, v001Series.toEntity)
		})
	case genExtensionV010Draft:
		in := v010SearchInput{Query: query, Page: page, Filters: filterSelections(filters)}
		return invoke(ctx, x.Template, ExportSearch, in, func(c *converter, ok json.RawMessage) (entities.Page[entities.Series], error) {
			wire, err := decodeValue[v010SeriesPage]("series page", ok)
			if err != nil {
				return entities.Page[entities.Series]{}, err
			}
			return convertPage(wire.Items, wire.HasNextPage, c.series)
		})
	}
	return entities.Page[entities.Series]{}, x.unknownGeneration()
}

// SeriesInfo returns the details of one series.
func (x *Extension) SeriesInfo(ctx context.Context, id string) (entities.Series, error) {
	switch x.gen.id {
	case genExtensionV001:
		return invoke(ctx, x.Template, ExportSeriesInfo, v001IDInput{ID: id}, func(_ *converter, ok json.RawMessage) (entities.Series, error) {
			wire, err := decodeValue[v001Series]("series", ok)
			if err != nil {
				return entities.Series{}, err
			}
			return wire.toEntity()
		})
	case genExtensionV010Draft:
		return invoke(ctx, x.Template, ExportSeriesInfo, v010IDInput{ID: id}, func(c *converter, ok json.RawMessage) (entities.Series, error) {
			wire, err := decodeValue[v010Series]("series", ok)
			if err != nil {
				return entities.Series{}, err
			}
			return c.series(wire)
		})
	}
	return entities.Series{}, x.unknownGeneration()
}

// SeriesEpisodes returns one page of the episodes of a series.
func (x *Extension) SeriesEpisodes(ctx context.Context, id string, page *uint32) (entities.Page[entities.Episode], error) {
	switch x.gen.id {
	case genExtensionV001:
		in := v001EpisodesInput{ID: id, Page: page}
		return invoke(ctx, x.Template, ExportSeriesEpisodes, in, func(_ *converter, ok json.RawMessage) (entities.Page[entities.Episode], error) {
			wire, err := decodeValue[v001EpisodePage]("episode page", ok)
			if err != nil {
				return entities.Page[entities.Episode]{}, err
			}
			return convertPage(wire.Items, wire.HasNextPage, v001Episode.toEntity)
		})
	case genExtensionV010Draft:
		in := v010EpisodesInput{ID: id, Page: page}
		return invoke(ctx, x.Template, ExportSeriesEpisodes, in, func(c *converter, ok json.RawMessage) (entities.Page[entities.Episode], error) {
			wire, err := decodeValue[v010EpisodePage]("episode page", ok)
			if err != nil {
				return entities.Page[entities.Episode]{}, err
			}
			return convertPage(wire.Items, wire.HasNextPage, c.episode)
		})
	}
	return entities.Page[entities.Episode]{}, x.unknownGeneration()
}

// SeriesVideos lists the playable sources of an episode.
func (x *Extension) SeriesVideos(ctx context.Context, seriesID, episodeID string) ([]entities.Video, error) {
	switch x.gen.id {
	case genExtensionV001:
		in := v001VideosInput{SeriesID: seriesID, EpisodeID: episodeID}
		return invoke(ctx, x.Template, ExportSeriesVideos, in, func(_ *converter, ok json.RawMessage) ([]entities.Video, error) {
			wire, err := decodeValue[[]v001Video]("videos", ok)
			if err != nil {
				return nil, err
			}
			return convertAll(wire, v001Video.toEntity)
		})
	case genExtensionV010Draft:
		in := v010VideosInput{SeriesID: seriesID, EpisodeID: episodeID}
		return invoke(ctx, x.Template, ExportSeriesVideos, in, func(c *converter, ok json.RawMessage) ([]entities.Video, error) {
			wire, err := decodeValue[[]v010Video]("videos", ok)
			if err != nil {
				return nil, err
			}
			return convertAll(wire, c.video)
		})
	}
	return nil, x.unknownGeneration()
}

func (t *Template) unknownGeneration() error {
	return fmt.Errorf("no wire format for %s", t.gen)
}
