// Erasure schedules deletion batches against the offender system of record.
//
// Each run picks a due-for-deletion window, records it as a batch and asks
// the system of record to process it. A window is requested again while the
// previous batch reported records remaining in it; otherwise the next
// contiguous window is requested.
//
// Usage:
//
//	# One scheduling cycle, suitable for a cron job
//	erasure run --config /etc/erasure/config.yaml
//
//	# Show the window the next run would request without writing anything
//	erasure run --dry-run
//
//	# Daemon: cron-driven runs plus the admin HTTP API
//	erasure serve
//
//	# Inspect and complete batches
//	erasure batch list --limit 10
//	erasure batch complete 42 --remaining 0
package main

import "os"

func main() {
	os.Exit(Execute())
}
