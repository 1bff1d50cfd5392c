// Package health provides liveness and readiness probes.
//
// Readiness runs every registered CheckFunc concurrently with a per-check
// timeout. StorageCheck pings the batch store; PendingBatchCheck reports a
// batch that has waited too long for its completion report.
package health
