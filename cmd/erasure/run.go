package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/erasure/pkg/cli"
	"mercator-hq/erasure/pkg/config"
	"mercator-hq/erasure/pkg/deletion"
	"mercator-hq/erasure/pkg/deletion/scheduler"
)

type runOptions struct {
	dryRun bool
	now    string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scheduling cycle",
		Long: `Run one scheduling cycle: choose the next window, store it as a batch and
request deletion from the system of record.

The run is refused, without writing anything, when the previous batch has
not completed or when the chosen window ends in the future.

Examples:
  # Run once (e.g. from cron)
  erasure run --config /etc/erasure/config.yaml

  # Show what the next run would request
  erasure run --dry-run

  # Show what a run at a given instant would request
  erasure run --dry-run --now 2021-06-01T02:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := cli.SetupSignalHandler()
			defer stop()
			return runOnce(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "compute the next window without storing or requesting it")
	cmd.Flags().StringVar(&opts.now, "now", "", "RFC3339 instant to use as the current time (dry run only)")

	return cmd
}

func runOnce(ctx context.Context, out io.Writer, opts *runOptions) error {
	if opts.now != "" && !opts.dryRun {
		return cli.NewConfigError("--now", "only allowed with --dry-run")
	}

	a, err := openApp(ctx, config.GetConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.dryRun {
		return previewRun(ctx, out, a, opts.now)
	}

	client, _, err := a.requester()
	if err != nil {
		return err
	}
	s, err := a.scheduler(nil, nil, client)
	if err != nil {
		return err
	}

	runner := scheduler.NewRunner(s, scheduler.RunnerConfig{Locker: a.locker})
	result, err := runner.Trigger(ctx)
	if errors.Is(err, scheduler.ErrRunInProgress) {
		fmt.Fprintln(out, "Another run is in progress, nothing to do")
		return nil
	}
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintf(out, "✓ Batch %d requested: [%s, %s) (%s)\n",
		result.Batch.ID,
		result.Batch.WindowStart.Format(time.RFC3339),
		result.Batch.WindowEnd.Format(time.RFC3339),
		result.Mode,
	)
	return nil
}

// previewRun runs the scheduler against a store that discards saves and a
// requester that sends nothing.
func previewRun(ctx context.Context, out io.Writer, a *app, now string) error {
	var clock deletion.Clock = deletion.SystemClock{}
	if now != "" {
		t, err := time.Parse(time.RFC3339, now)
		if err != nil {
			return cli.NewConfigError("--now", fmt.Sprintf("must be RFC3339: %v", err))
		}
		clock = deletion.FixedClock{T: t.UTC()}
	}

	noop := deletion.RequesterFunc(func(ctx context.Context, start, end time.Time, batchID int64) error {
		slog.DebugContext(ctx, "dry run, deletion request not sent", "window_start", start, "window_end", end)
		return nil
	})

	s, err := a.scheduler(clock, previewStore{BatchStore: a.store}, noop)
	if err != nil {
		return err
	}
	result, err := s.Execute(ctx)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintf(out, "Next run would request [%s, %s) (%s)\n",
		result.Batch.WindowStart.Format(time.RFC3339),
		result.Batch.WindowEnd.Format(time.RFC3339),
		result.Mode,
	)
	return nil
}

// previewStore reads through to the real store and drops saves.
type previewStore struct {
	deletion.BatchStore
}

func (previewStore) Save(ctx context.Context, batch deletion.Batch) (*deletion.Batch, error) {
	return &batch, nil
}
