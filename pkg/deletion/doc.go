// Package deletion defines the domain types for windowed deletion requests
// sent to the system of record.
//
// # Batches and Windows
//
// Each scheduler run produces one Batch: an audit record of a single
// deletion request covering the half-open window [WindowStart, WindowEnd).
// Windows are contiguous and of fixed length:
//
//	[S, S+L)  →  [S+L, S+2L)  →  [S+2L, S+3L)  ...
//
// A window is requested again while the system of record reports eligible
// records remaining inside it, and only advances once it is exhausted.
//
// # Lifecycle
//
// A Batch is created by the scheduler, persisted by a BatchStore (which
// assigns its ID), and later completed by a separate process that reports
// CompletionTime and RemainingInWindow:
//
//	(unsaved) → PENDING → COMPLETE
//
// Batches are never deleted or cancelled. While the most recent batch is
// PENDING no further batch may be created.
//
// # Ports
//
// The scheduler depends on three ports defined here:
//
//   - Clock: source of the current instant
//   - BatchStore: last batch lookup and batch persistence
//   - Requester: the system of record's pending-deletion endpoint
//
// The completion write path uses CompletionStore. Storage backends in the
// storage subpackage implement both store ports.
package deletion
