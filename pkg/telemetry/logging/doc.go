// Package logging configures the process-wide slog logger.
//
// New builds a *slog.Logger from configuration. Attribute values are passed
// through a Redactor so that bearer tokens, credentials embedded in
// connection URLs and offender numbers never reach the log output, and a
// run ID stored in the context with WithRunID is attached to every record
// logged with that context.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRunID(ctx, runID)
//	slog.InfoContext(ctx, "requesting deletions") // includes run_id
package logging
