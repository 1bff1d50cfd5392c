/*
Package cli provides command-line helpers for the erasure command.

Output Formatting:

Batch listings can be printed as an aligned table or as JSON:

	formatter, err := cli.NewFormatter(cli.FormatText)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, batches)

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Exit Codes:

ExitCode maps command errors to process exit codes so that cron wrappers
can tell a configuration problem from a run that was refused by the
scheduler's preconditions.
*/
package cli
