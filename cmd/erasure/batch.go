package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/erasure/pkg/cli"
	"mercator-hq/erasure/pkg/config"
	"mercator-hq/erasure/pkg/deletion/completion"
)

type batchOptions struct {
	output    string
	limit     int
	remaining int
	at        string
}

func newBatchCmd() *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect and complete deletion batches",
		Long: `Inspect stored deletion batches and record completion reports.

Examples:
  # Ten most recent batches
  erasure batch list --limit 10

  # Most recent batch as JSON
  erasure batch latest -o json

  # Record that batch 42 finished with 120 records left in its window
  erasure batch complete 42 --remaining 120`,
	}
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", string(cli.FormatText), "output format (text, json)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List batches, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, f cli.Formatter) error {
				batches, err := a.store.List(ctx, opts.limit)
				if err != nil {
					return cli.NewCommandError("batch list", err)
				}
				return f.FormatTo(cmd.OutOrStdout(), batches)
			})
		},
	}
	list.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of batches (0 for all)")

	latest := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, f cli.Formatter) error {
				last, err := a.store.LastBatch(ctx)
				if err != nil {
					return cli.NewCommandError("batch latest", err)
				}
				if last == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No batches yet")
					return nil
				}
				return f.FormatTo(cmd.OutOrStdout(), last)
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBatchID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, f cli.Formatter) error {
				b, err := a.store.Get(ctx, id)
				if err != nil {
					return cli.NewCommandError("batch get", err)
				}
				return f.FormatTo(cmd.OutOrStdout(), b)
			})
		},
	}

	complete := &cobra.Command{
		Use:   "complete <id>",
		Short: "Record the completion report for a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBatchID(args[0])
			if err != nil {
				return err
			}

			report := completion.Report{RemainingInWindow: opts.remaining}
			if opts.at != "" {
				at, err := time.Parse(time.RFC3339, opts.at)
				if err != nil {
					return cli.NewConfigError("--at", fmt.Sprintf("must be RFC3339: %v", err))
				}
				report.CompletedAt = at.UTC()
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app, f cli.Formatter) error {
				b, err := completion.New(a.store, nil).Complete(ctx, id, report)
				if err != nil {
					return cli.NewCommandError("batch complete", err)
				}
				return f.FormatTo(cmd.OutOrStdout(), b)
			})
		},
	}
	complete.Flags().IntVar(&opts.remaining, "remaining", 0, "records left unprocessed in the batch's window")
	complete.Flags().StringVar(&opts.at, "at", "", "RFC3339 completion time (default now)")
	_ = complete.MarkFlagRequired("remaining")

	cmd.AddCommand(list, latest, get, complete)
	return cmd
}

// withApp opens the app, resolves the output formatter and runs fn.
func withApp(cmd *cobra.Command, opts *batchOptions, fn func(context.Context, *app, cli.Formatter) error) error {
	f, err := cli.NewFormatter(cli.OutputFormat(opts.output))
	if err != nil {
		return cli.NewConfigError("--output", err.Error())
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, config.GetConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, f)
}

func parseBatchID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, cli.NewConfigError("id", fmt.Sprintf("batch id must be a positive integer, got %q", raw))
	}
	return id, nil
}
