package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mercator-hq/erasure/pkg/deletion"
)

// PostgresConfig contains configuration for the PostgreSQL storage backend.
type PostgresConfig struct {
	// URL is a libpq-style connection string or postgres:// URL.
	URL string

	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
}

// PostgresStorage implements deletion.Storage on PostgreSQL using pgxpool.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStorage connects to PostgreSQL and ensures the schema exists.
func NewPostgresStorage(ctx context.Context, config *PostgresConfig) (*PostgresStorage, error) {
	if config == nil || config.URL == "" {
		return nil, deletion.NewStorageError("postgres", "open", errors.New("connection URL is required"))
	}

	pcfg, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, deletion.NewStorageError("postgres", "parse_config", err)
	}
	if config.MaxConns > 0 {
		pcfg.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, deletion.NewStorageError("postgres", "open", err)
	}

	s := &PostgresStorage{
		pool:   pool,
		logger: slog.Default().With("component", "deletion.storage.postgres"),
	}

	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, deletion.NewStorageError("postgres", "create_schema", err)
	}

	s.logger.Info("PostgreSQL storage initialized", "max_conns", pcfg.MaxConns)
	return s, nil
}

const pgSelectBatch = `
SELECT batch_id, request_time, window_start, window_end, completion_time, remaining_in_window
FROM deletion_batch`

// LastBatch returns the batch with the greatest request time.
func (s *PostgresStorage) LastBatch(ctx context.Context) (*deletion.Batch, error) {
	row := s.pool.QueryRow(ctx, pgSelectBatch+" ORDER BY request_time DESC, batch_id DESC LIMIT 1")
	b, err := scanPgBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, deletion.NewStorageError("postgres", "last_batch", err)
	}
	return b, nil
}

// Save inserts a new batch and returns it with the assigned ID.
func (s *PostgresStorage) Save(ctx context.Context, batch deletion.Batch) (*deletion.Batch, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO deletion_batch (request_time, window_start, window_end, completion_time, remaining_in_window)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING batch_id`,
		batch.RequestTime.UTC(), batch.WindowStart.UTC(), batch.WindowEnd.UTC(),
		batch.CompletionTime, batch.RemainingInWindow,
	).Scan(&id)
	if err != nil {
		return nil, deletion.NewStorageError("postgres", "save", err)
	}

	saved := batch.Clone()
	saved.ID = id
	return saved, nil
}

// Get returns the batch with the given ID.
func (s *PostgresStorage) Get(ctx context.Context, id int64) (*deletion.Batch, error) {
	b, err := scanPgBatch(s.pool.QueryRow(ctx, pgSelectBatch+" WHERE batch_id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, deletion.ErrBatchNotFound
	}
	if err != nil {
		return nil, deletion.NewStorageError("postgres", "get", err)
	}
	return b, nil
}

// MarkComplete records completion for a pending batch.
func (s *PostgresStorage) MarkComplete(ctx context.Context, id int64, completedAt time.Time, remainingInWindow int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE deletion_batch
		   SET completion_time = $2, remaining_in_window = $3
		 WHERE batch_id = $1 AND completion_time IS NULL`,
		id, completedAt.UTC(), remainingInWindow,
	)
	if err != nil {
		return deletion.NewStorageError("postgres", "complete", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return deletion.ErrBatchAlreadyComplete
}

// List returns up to limit batches, most recent first.
func (s *PostgresStorage) List(ctx context.Context, limit int) ([]*deletion.Batch, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.pool.Query(ctx, pgSelectBatch+" ORDER BY request_time DESC, batch_id DESC LIMIT $1", limit)
	if err != nil {
		return nil, deletion.NewStorageError("postgres", "list", err)
	}
	defer rows.Close()

	batches := []*deletion.Batch{}
	for rows.Next() {
		b, err := scanPgBatch(rows)
		if err != nil {
			return nil, deletion.NewStorageError("postgres", "scan", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, deletion.NewStorageError("postgres", "list", err)
	}
	return batches, nil
}

// Ping verifies the pool can reach the server.
func (s *PostgresStorage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return deletion.NewStorageError("postgres", "ping", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	s.logger.Info("PostgreSQL storage closed")
	return nil
}

// RunLocker returns a scheduler.Locker backed by a session-level advisory
// lock on key. It serializes runs across every process sharing the database.
func (s *PostgresStorage) RunLocker(key int64) *AdvisoryLocker {
	return &AdvisoryLocker{pool: s.pool, key: key}
}

// AdvisoryLocker takes pg_try_advisory_lock on a dedicated pooled
// connection and holds it until unlock.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
	key  int64
}

// TryLock implements scheduler.Locker.
func (l *AdvisoryLocker) TryLock(ctx context.Context) (func(), bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, deletion.NewStorageError("postgres", "acquire_lock", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, deletion.NewStorageError("postgres", "acquire_lock", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		// The run context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
			slog.Warn("failed to release advisory lock, closing connection",
				"key", l.key,
				"error", err,
			)
			// Closing the session drops every advisory lock it holds.
			_ = conn.Conn().Close(ctx)
		}
		conn.Release()
	}
	return unlock, true, nil
}

func scanPgBatch(row pgx.Row) (*deletion.Batch, error) {
	var (
		b         deletion.Batch
		completed *time.Time
		remaining *int32
	)
	if err := row.Scan(&b.ID, &b.RequestTime, &b.WindowStart, &b.WindowEnd, &completed, &remaining); err != nil {
		return nil, err
	}

	b.RequestTime = b.RequestTime.UTC()
	b.WindowStart = b.WindowStart.UTC()
	b.WindowEnd = b.WindowEnd.UTC()
	if completed != nil {
		t := completed.UTC()
		b.CompletionTime = &t
	}
	if remaining != nil {
		n := int(*remaining)
		b.RemainingInWindow = &n
	}
	return &b, nil
}

