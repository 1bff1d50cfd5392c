// Package storage provides backends for deletion batch records.
//
// # Storage Backends
//
// All backends implement deletion.Storage:
//
//   - Memory: in-process map, for tests and dry runs
//   - SQLite: embedded database for single-node deployments, using either
//     mattn/go-sqlite3 (driver "sqlite3") or modernc.org/sqlite (driver "sqlite")
//   - PostgreSQL: shared database for multi-instance deployments (pgx)
//
// # Ordering
//
// LastBatch and List order by request time, newest first, breaking ties by
// batch ID. IDs are assigned by the backend on Save and never reused.
//
// # Completion
//
// MarkComplete only updates a batch that is still pending. A second report
// for the same batch fails with deletion.ErrBatchAlreadyComplete and leaves
// the first report in place.
//
// # Run Locking
//
// PostgresStorage.RunLocker returns an advisory-lock based locker so that
// scheduler runs are serialized across processes:
//
//	store, err := storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
//	    URL: "postgres://erasure@db/erasure",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	runner := scheduler.NewRunner(s, scheduler.RunnerConfig{
//	    Schedule: "0 2 * * *",
//	    Locker:   store.RunLocker(0x6572617375726521),
//	})
package storage
