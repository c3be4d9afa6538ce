package host

import (
	"fmt"

	"github.com/tsuki-dev/tsuki-host/domain/ports"
	"github.com/tsuki-dev/tsuki-host/host/registry"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// wireModels maps "<export>.input|output" to a value of each wire type of gen.
func wireModels(gen *Generation) map[string]any {
	switch gen.id {
	case genExtensionV001:
		return map[string]any{
			ExportSearch + ".input":          v001SearchInput{},
			ExportSearch + ".output":         v001SeriesPage{},
			ExportSeriesInfo + ".input":      v001IDInput{},
			ExportSeriesInfo + ".output":     v001Series{},
			ExportSeriesEpisodes + ".input":  v001EpisodesInput{},
			ExportSeriesEpisodes + ".output": v001EpisodePage{},
			ExportSeriesVideos + ".input":    v001VideosInput{},
			ExportSeriesVideos + ".output":   []v001Video{},
		}
	case genExtensionV010Draft:
		return map[string]any{
			ExportFilters + ".output":        []v010Filter{},
			ExportSearch + ".input":          v010SearchInput{},
			ExportSearch + ".output":         v010SeriesPage{},
			ExportSeriesInfo + ".input":      v010IDInput{},
			ExportSeriesInfo + ".output":     v010Series{},
			ExportSeriesEpisodes + ".input":  v010EpisodesInput{},
			ExportSeriesEpisodes + ".output": v010EpisodePage{},
			ExportSeriesVideos + ".input":    v010VideosInput{},
			ExportSeriesVideos + ".output":   []v010Video{},
		}
	case genProcessorV010Draft:
		return map[string]any{
			ExportResolveResource + ".input":  v010ResourceDescriptor{},
			ExportResolveResource + ".output": "",
			ExportHandleRequest + ".input":    hostfuncs.IncomingRequest{},
			ExportHandleRequest + ".output":   hostfuncs.OutgoingResponse{},
		}
	}
	return nil
}

// WireSchemas returns a registry with the JSON schema of every value gen
// exchanges through its exports.
func WireSchemas(gen *Generation) (ports.SchemaRegistry, error) {
	reg := registry.NewRegistry()
	for name, model := range wireModels(gen) {
		if err := reg.Register(name, model); err != nil {
			return nil, fmt.Errorf("%s: %w", gen, err)
		}
	}
	return reg, nil
}
