package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
)

type inspectOutput struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Description   string   `json:"description,omitempty"`
	Kind          string   `json:"kind"`
	Generation    string   `json:"generation"`
	Exports       []string `json:"exports"`
	Imports       []string `json:"imports"`
	HostFunctions []string `json:"host_functions"`
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <plugin.wasm>",
		Short: "Show a plugin's metadata and the interface it was linked against",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			meta := p.Metadata()
			gen := p.Generation()
			return a.print(cmd, inspectOutput{
				Name:          meta.Name,
				Version:       meta.Version,
				Description:   meta.Description,
				Kind:          string(meta.Kind),
				Generation:    gen.String(),
				Exports:       gen.Exports(),
				Imports:       gen.Imports(),
				HostFunctions: p.HostFunctions(),
			})
		},
	}
}

func newFiltersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "filters <plugin.wasm>",
		Short: "List the search filters an extension accepts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := a.extension(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			filters, err := x.Filters(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, filters)
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		page    uint32
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "search <plugin.wasm> <query>",
		Short: "Search an extension's catalogue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			selections, err := parseFilters(filters)
			if err != nil {
				return err
			}
			x, err := a.extension(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result, err := x.Search(cmd.Context(), args[1], pageFlag(cmd, page), selections)
			if err != nil {
				return err
			}
			return a.print(cmd, result)
		},
	}
	cmd.Flags().Uint32Var(&page, "page", 0, "page to request (omitted lets the extension choose)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter selection as id=value[,value...] (repeatable)")
	return cmd
}

func newSeriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "series <plugin.wasm> <series-id>",
		Short: "Show details for one series",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := a.extension(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			series, err := x.SeriesInfo(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return a.print(cmd, series)
		},
	}
}

func newEpisodesCmd(a *app) *cobra.Command {
	var page uint32
	cmd := &cobra.Command{
		Use:   "episodes <plugin.wasm> <series-id>",
		Short: "List one page of a series' episodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := a.extension(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result, err := x.SeriesEpisodes(cmd.Context(), args[1], pageFlag(cmd, page))
			if err != nil {
				return err
			}
			return a.print(cmd, result)
		},
	}
	cmd.Flags().Uint32Var(&page, "page", 0, "page to request (omitted lets the extension choose)")
	return cmd
}

func newVideosCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "videos <plugin.wasm> <series-id> <episode-id>",
		Short: "List the playable sources of an episode",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := a.extension(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			videos, err := x.SeriesVideos(cmd.Context(), args[1], args[2])
			if err != nil {
				return err
			}
			return a.print(cmd, videos)
		},
	}
}

// pageFlag returns nil unless --page was given.
func pageFlag(cmd *cobra.Command, page uint32) *uint32 {
	if !cmd.Flags().Changed("page") {
		return nil
	}
	return &page
}

// parseFilters turns "genre=action,drama" into a FilterSelection.
func parseFilters(raw []string) ([]entities.FilterSelection, error) {
	out := make([]entities.FilterSelection, 0, len(raw))
	for _, r := range raw {
		id, values, ok := strings.Cut(r, "=")
		if !ok || id == "" || values == "" {
			return nil, fmt.Errorf("invalid filter %q, want id=value[,value...]", r)
		}
		out = append(out, entities.FilterSelection{ID: id, Values: strings.Split(values, ",")})
	}
	return out, nil
}
