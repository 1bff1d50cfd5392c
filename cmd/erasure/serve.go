package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/erasure/pkg/cli"
	"mercator-hq/erasure/pkg/config"
	"mercator-hq/erasure/pkg/deletion/completion"
	"mercator-hq/erasure/pkg/deletion/scheduler"
	"mercator-hq/erasure/pkg/server"
	"mercator-hq/erasure/pkg/telemetry/health"
	"mercator-hq/erasure/pkg/telemetry/metrics"
)

type serveOptions struct {
	listenAddress string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled deletion cycles and the admin API",
		Long: `Run scheduling cycles on deletion.schedule and serve the admin HTTP API.

The API lists batches, accepts completion reports from the system of record
and can trigger a run on demand. Health, readiness and Prometheus metrics
endpoints are served alongside.

Examples:
  # Start with a config file
  erasure serve --config /etc/erasure/config.yaml

  # Override the listen address
  erasure serve --listen 0.0.0.0:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := cli.SetupSignalHandler()
			defer stop()
			return serve(ctx, cmd.OutOrStdout(), root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listenAddress, "listen", "l", "", "override listen address")

	return cmd
}

func serve(ctx context.Context, out io.Writer, root *rootOptions, opts *serveOptions) error {
	cfg := config.GetConfig()
	if opts.listenAddress != "" {
		cfg.Server.ListenAddress = opts.listenAddress
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	client, token, err := a.requester()
	if err != nil {
		return err
	}
	s, err := a.scheduler(nil, nil, client)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	runner := scheduler.NewRunner(s, scheduler.RunnerConfig{
		Schedule: cfg.Deletion.Schedule,
		Locker:   a.locker,
		Observer: collector,
	})
	if err := runner.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer runner.Stop()

	checker := health.New(5 * time.Second)
	checker.RegisterCheck("storage", health.StorageCheck(a.store))
	if cfg.Deletion.MaxPendingAge > 0 {
		checker.RegisterCheck("pending_batch", health.PendingBatchCheck(a.store, nil, cfg.Deletion.MaxPendingAge))
	}
	if token != nil {
		checker.RegisterCheck("elite2_token", func(ctx context.Context) error {
			_, err := token(ctx)
			return err
		})
	}

	deps := server.Dependencies{
		Store:     a.store,
		Completer: completion.New(a.store, nil),
		Runner:    runner,
		Observer:  collector,
		Health:    checker,
		Build:     buildInfo(),

		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	}
	if cfg.Telemetry.Metrics.Enabled {
		deps.Metrics = collector.Handler()
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}

	fmt.Fprintf(out, "Erasure v%s\n", Version)
	if next := runner.NextRun(); next != nil {
		fmt.Fprintf(out, "✓ Next scheduled run: %s\n", next.Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "✓ Scheduled runs disabled (deletion.schedule is empty)")
	}
	fmt.Fprintf(out, "✓ Admin API listening on %s\n", cfg.Server.ListenAddress)

	cli.OnReload(ctx, root.reload)

	srv := server.NewServer(&cfg.Server, deps)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}
