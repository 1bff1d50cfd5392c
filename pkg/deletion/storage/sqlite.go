package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)

	"mercator-hq/erasure/pkg/deletion"
)

// SQLite driver names.
const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver: "sqlite3" (mattn/go-sqlite3,
	// requires cgo) or "sqlite" (modernc.org/sqlite).
	// Default: "sqlite3"
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/erasure.db",
		Driver:       DriverCGO,
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements deletion.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database and initializes its schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverCGO
	}
	if config.Driver != DriverCGO && config.Driver != DriverPureGo {
		return nil, deletion.NewStorageError("sqlite", "open",
			fmt.Errorf("unsupported sqlite driver %q", config.Driver))
	}

	logger := slog.Default().With("component", "deletion.storage.sqlite")

	db, err := sql.Open(config.Driver, sqliteDSN(config))
	if err != nil {
		return nil, deletion.NewStorageError("sqlite", "open", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up pragmas and the schema.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return deletion.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return deletion.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return deletion.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return deletion.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return deletion.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return deletion.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

const sqliteSelectBatch = `
SELECT batch_id, request_time, window_start, window_end, completion_time, remaining_in_window
FROM deletion_batch`

// LastBatch returns the batch with the greatest request time.
func (s *SQLiteStorage) LastBatch(ctx context.Context) (*deletion.Batch, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectBatch+" ORDER BY request_time DESC, batch_id DESC LIMIT 1")
	b, err := scanSQLiteBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, deletion.NewStorageError("sqlite", "last_batch", err)
	}
	return b, nil
}

// Save inserts a new batch and returns it with the assigned ID.
func (s *SQLiteStorage) Save(ctx context.Context, batch deletion.Batch) (*deletion.Batch, error) {
	var completion, remaining interface{}
	if batch.CompletionTime != nil {
		completion = formatTime(*batch.CompletionTime)
	}
	if batch.RemainingInWindow != nil {
		remaining = *batch.RemainingInWindow
	}

	for _, t := range []time.Time{batch.RequestTime, batch.WindowStart, batch.WindowEnd} {
		if err := checkTimeRange(t); err != nil {
			return nil, deletion.NewStorageError("sqlite", "save", err)
		}
	}
	if batch.CompletionTime != nil {
		if err := checkTimeRange(*batch.CompletionTime); err != nil {
			return nil, deletion.NewStorageError("sqlite", "save", err)
		}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO deletion_batch (request_time, window_start, window_end, completion_time, remaining_in_window)
		VALUES (?, ?, ?, ?, ?)`,
		formatTime(batch.RequestTime), formatTime(batch.WindowStart), formatTime(batch.WindowEnd), completion, remaining,
	)
	if err != nil {
		return nil, deletion.NewStorageError("sqlite", "save", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, deletion.NewStorageError("sqlite", "save", err)
	}

	saved := batch.Clone()
	saved.ID = id
	return saved, nil
}

// Get returns the batch with the given ID.
func (s *SQLiteStorage) Get(ctx context.Context, id int64) (*deletion.Batch, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectBatch+" WHERE batch_id = ?", id)
	b, err := scanSQLiteBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, deletion.ErrBatchNotFound
	}
	if err != nil {
		return nil, deletion.NewStorageError("sqlite", "get", err)
	}
	return b, nil
}

// MarkComplete records completion for a pending batch.
func (s *SQLiteStorage) MarkComplete(ctx context.Context, id int64, completedAt time.Time, remainingInWindow int) error {
	if err := checkTimeRange(completedAt); err != nil {
		return deletion.NewStorageError("sqlite", "complete", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE deletion_batch
		   SET completion_time = ?, remaining_in_window = ?
		 WHERE batch_id = ? AND completion_time IS NULL`,
		formatTime(completedAt), remainingInWindow, id,
	)
	if err != nil {
		return deletion.NewStorageError("sqlite", "complete", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return deletion.NewStorageError("sqlite", "complete", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing updated: either unknown or already complete.
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return deletion.ErrBatchAlreadyComplete
}

// List returns up to limit batches, most recent first.
func (s *SQLiteStorage) List(ctx context.Context, limit int) ([]*deletion.Batch, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, sqliteSelectBatch+" ORDER BY request_time DESC, batch_id DESC LIMIT ?", limit)
	if err != nil {
		return nil, deletion.NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	batches := []*deletion.Batch{}
	for rows.Next() {
		b, err := scanSQLiteBatch(rows)
		if err != nil {
			return nil, deletion.NewStorageError("sqlite", "scan", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, deletion.NewStorageError("sqlite", "list", err)
	}
	return batches, nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return deletion.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return deletion.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

// sqliteDSN builds a connection string that applies busy_timeout to every
// pooled connection, not only the one that ran the pragma.
func sqliteDSN(config *SQLiteConfig) string {
	ms := config.BusyTimeout.Milliseconds()
	if config.Driver == DriverPureGo {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", config.Path, ms)
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d", config.Path, ms)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteBatch(row rowScanner) (*deletion.Batch, error) {
	var (
		b                       deletion.Batch
		requestTime, start, end string
		completionTime          sql.NullString
		remaining               sql.NullInt64
	)
	if err := row.Scan(&b.ID, &requestTime, &start, &end, &completionTime, &remaining); err != nil {
		return nil, err
	}

	var err error
	if b.RequestTime, err = parseTime(requestTime); err != nil {
		return nil, err
	}
	if b.WindowStart, err = parseTime(start); err != nil {
		return nil, err
	}
	if b.WindowEnd, err = parseTime(end); err != nil {
		return nil, err
	}
	if completionTime.Valid {
		t, err := parseTime(completionTime.String)
		if err != nil {
			return nil, err
		}
		b.CompletionTime = &t
	}
	if remaining.Valid {
		n := int(remaining.Int64)
		b.RemainingInWindow = &n
	}
	return &b, nil
}

// sqliteTimeLayout has a fixed width for years 0000-9999, so text order is
// time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// checkTimeRange rejects instants the fixed-width layout cannot hold.
func checkTimeRange(t time.Time) error {
	if y := t.UTC().Year(); y < 0 || y > 9999 {
		return fmt.Errorf("timestamp %s outside supported years 0000-9999", t.UTC().Format(time.RFC3339))
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
