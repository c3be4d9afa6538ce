package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tsuki-dev/tsuki-host/application/config"
	"github.com/tsuki-dev/tsuki-host/application/template"
	"github.com/tsuki-dev/tsuki-host/host"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	cfgFile  string
	format   string
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
	registry *prometheus.Registry
	engine   *host.Engine
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "tsuki-host",
		Short:         "Run sandboxed tsuki plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&a.format, "format", "", "render results with a Go template instead of JSON")

	root.AddCommand(
		newInspectCmd(a),
		newFiltersCmd(a),
		newSearchCmd(a),
		newSeriesCmd(a),
		newEpisodesCmd(a),
		newVideosCmd(a),
		newServeCmd(a),
		newSchemaCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	a.logger, a.closeLog, err = newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.registry = prometheus.NewRegistry()
	return nil
}

// teardown releases what setup and load acquired. It is safe to call when
// neither ran.
func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.engine != nil {
		errs = append(errs, a.engine.Close(ctx))
	}
	if a.closeLog != nil {
		errs = append(errs, a.closeLog())
	}
	return errors.Join(errs...)
}

// load starts the engine on first use and loads the plugin at path.
func (a *app) load(ctx context.Context, path string) (*host.Plugin, error) {
	if a.engine == nil {
		opts := append(a.cfg.EngineOptions(),
			host.WithLogger(a.logger),
			host.WithMetricsRegisterer(a.registry),
		)
		engine, err := host.NewEngine(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("start engine: %w", err)
		}
		a.engine = engine
	}
	return a.engine.Load(ctx, path)
}

func (a *app) extension(ctx context.Context, path string) (*host.Extension, error) {
	p, err := a.load(ctx, path)
	if err != nil {
		return nil, err
	}
	x, ok := p.Extension()
	if !ok {
		return nil, fmt.Errorf("%s is a %s plugin, not an extension", path, p.Kind())
	}
	return x, nil
}

// print writes v as indented JSON, or through --format when given.
func (a *app) print(cmd *cobra.Command, v any) error {
	if a.format != "" {
		out, err := template.NewGoTemplateEngine().Render(a.format, v)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	return printJSON(cmd, v)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
