// Package scheduler computes and requests deletion windows.
//
// # Window Selection
//
// Each run looks at the most recent batch and picks the next window:
//
//   - No batch yet: the configured initial window
//     [InitialWindowStart, InitialWindowStart+WindowLength)
//   - Last batch pending: abort with *deletion.PrecedingBatchIncompleteError
//   - Last batch complete with records remaining: the same window again
//   - Last batch complete and exhausted: the next contiguous window
//
// The chosen window is rejected with *deletion.FutureWindowError when its
// start or end lies after the current time. A window ending exactly now is
// accepted.
//
// # Basic Usage
//
//	s := scheduler.New(deletion.SystemClock{}, deletion.WindowConfig{
//	    InitialWindowStart: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
//	    WindowLength:       24 * time.Hour,
//	}, store, client)
//
//	if err := s.Run(ctx); err != nil {
//	    var incomplete *deletion.PrecedingBatchIncompleteError
//	    if errors.As(err, &incomplete) {
//	        log.Printf("batch %d still outstanding", incomplete.BatchID)
//	    }
//	}
//
// # Scheduling
//
// Scheduler.Run must not run concurrently with itself. Runner triggers it
// on a cron schedule and takes a Locker around every run:
//
//	runner := scheduler.NewRunner(s, scheduler.RunnerConfig{
//	    Schedule: "0 2 * * *", // Daily at 2 AM
//	    Locker:   pgStore.RunLocker(lockKey),
//	})
//	if err := runner.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer runner.Stop()
//
// A trigger that finds the lock held is skipped with ErrRunInProgress.
package scheduler
