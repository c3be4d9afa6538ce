package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tsuki-dev/tsuki-host/host"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var resolve []string
	cmd := &cobra.Command{
		Use:   "serve <processor.wasm>",
		Short: "Serve a processor plugin over HTTP",
		Long: `Serve a processor plugin over HTTP on the configured listen address.
Every request is handed to the plugin's handle-request export. With
--resolve, each media resource is first resolved through the plugin and the
resulting local URL printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cmd, args[0], resolve)
		},
	}
	cmd.Flags().StringArrayVar(&resolve, "resolve", nil, "http(s) URL or magnet link to resolve after start (repeatable)")
	return cmd
}

func (a *app) serve(ctx context.Context, cmd *cobra.Command, path string, resolve []string) error {
	p, err := a.load(ctx, path)
	if err != nil {
		return err
	}
	proc, ok := p.Processor()
	if !ok {
		return fmt.Errorf("%s is a %s plugin, not a processor", path, p.Kind())
	}

	srv := host.NewServer(proc,
		host.WithServerLogger(a.logger),
		host.WithMaxInboundBody(a.cfg.Egress.MaxBodyBytes),
	)
	if err := srv.Start(a.cfg.Listen); err != nil {
		return err
	}

	for _, raw := range resolve {
		res, err := host.ParseMediaResource(raw)
		if err != nil {
			return errors.Join(err, srv.Close(ctx))
		}
		u, err := srv.ResolveResource(ctx, res)
		if err != nil {
			return errors.Join(fmt.Errorf("resolve %s: %w", raw, err), srv.Close(ctx))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", raw, u)
	}

	g, gctx := errgroup.WithContext(ctx)

	var metrics *http.Server
	if a.cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		metrics = &http.Server{
			Addr:              a.cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("metrics listening", "addr", metrics.Addr)
			if err := metrics.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		errs := []error{srv.Close(shutdownCtx)}
		if metrics != nil {
			errs = append(errs, metrics.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
