package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the batch schema in SQLite.
// Timestamps are stored as fixed-width UTC text (see sqliteTimeLayout), which
// sorts chronologically and reads back identically through both drivers.
const Schema = `
-- Deletion batches
CREATE TABLE IF NOT EXISTS deletion_batch (
    batch_id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_time TEXT NOT NULL,
    window_start TEXT NOT NULL,
    window_end TEXT NOT NULL,

    -- Set by the completion process
    completion_time TEXT,
    remaining_in_window INTEGER
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deletion_batch_request_time ON deletion_batch(request_time);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

// PostgresSchema contains the SQL statements to create the batch schema in
// PostgreSQL.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS deletion_batch (
    batch_id BIGSERIAL PRIMARY KEY,
    request_time TIMESTAMPTZ NOT NULL,
    window_start TIMESTAMPTZ NOT NULL,
    window_end TIMESTAMPTZ NOT NULL,
    completion_time TIMESTAMPTZ,
    remaining_in_window INTEGER
);

CREATE INDEX IF NOT EXISTS idx_deletion_batch_request_time ON deletion_batch(request_time);
`
