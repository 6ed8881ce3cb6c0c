package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/cricv/devserve/internal/model"
)

// ErrNoDatabase is returned by Open when CreateIfNotExists is disabled and
// no database file exists. Callers treat this as "no history yet", unlike
// a corrupt or unreadable database.
var ErrNoDatabase = errors.New("history database not found")

// Store provides SQLite-based storage for run records and events.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all projects rather
// than one per project. Runs carry their profile and command, which is
// enough to tell projects apart, and a single file keeps listing and
// cleanup trivial.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a Store at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is
// returned; `devserve history` uses this mode so it never creates an empty
// database just to report that there is no history.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, "devserve.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNoDatabase, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a second connection buys nothing
	// for this workload
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // Best effort cleanup
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *Store) createTables() error {
	schema := `
	-- Runs store one record per devserve up invocation
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		profile TEXT NOT NULL,
		command TEXT NOT NULL,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		ended_at DATETIME,
		exit_code INTEGER DEFAULT 0,
		restarts INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_profile ON runs(profile);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Run events store the lifecycle timeline within a run
	CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		type TEXT NOT NULL,
		detail TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_id ON run_events(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_type ON run_events(type);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// InsertRun records the beginning of a supervised run.
func (s *Store) InsertRun(ctx context.Context, rec *model.RunRecord) error {
	commandJSON, err := json.Marshal(rec.Command)
	if err != nil {
		return fmt.Errorf("failed to serialize command: %w", err)
	}

	query := `
	INSERT INTO runs (run_id, profile, command, started_at)
	VALUES (?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.RunID,
		rec.Profile,
		string(commandJSON),
		rec.StartedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// FinishRun records the end of a supervised run.
func (s *Store) FinishRun(ctx context.Context, runID string, exitCode, restarts int) error {
	query := `
	UPDATE runs
	SET ended_at = ?, exit_code = ?, restarts = ?
	WHERE run_id = ?
	`

	_, err := s.db.ExecContext(ctx, query,
		time.Now().UTC().Format(timestampLayout),
		exitCode,
		restarts,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	return nil
}

// InsertEvent appends a lifecycle event to a run's timeline.
func (s *Store) InsertEvent(ctx context.Context, ev *model.RunEvent) error {
	query := `
	INSERT INTO run_events (run_id, type, detail, timestamp)
	VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ev.RunID,
		ev.Type.String(),
		ev.Detail,
		ev.Timestamp.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// ListRuns returns the most recent runs, newest first.
// A limit of zero or less returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	query := `
	SELECT id, run_id, profile, command, started_at, ended_at, exit_code, restarts
	FROM runs
	ORDER BY started_at DESC, id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}

	return runs, rows.Err()
}

// GetRun retrieves a run by its run ID, or nil when no such run exists.
func (s *Store) GetRun(ctx context.Context, runID string) (*model.RunRecord, error) {
	query := `
	SELECT id, run_id, profile, command, started_at, ended_at, exit_code, restarts
	FROM runs
	WHERE run_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// RunEvents retrieves the event timeline for a run, oldest first.
func (s *Store) RunEvents(ctx context.Context, runID string) ([]*model.RunEvent, error) {
	query := `
	SELECT id, run_id, type, detail, timestamp
	FROM run_events
	WHERE run_id = ?
	ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*model.RunEvent
	for rows.Next() {
		var (
			ev        model.RunEvent
			typeName  string
			timestamp string
		)
		if err := rows.Scan(&ev.ID, &ev.RunID, &typeName, &ev.Detail, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ev.TypeName = typeName
		if typ, ok := model.ParseEventType(typeName); ok {
			ev.Type = typ
		}
		ev.Timestamp = parseTimestamp(timestamp)

		events = append(events, &ev)
	}

	return events, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRun reads one run row into a RunRecord.
func scanRun(row scanner) (*model.RunRecord, error) {
	var (
		rec         model.RunRecord
		commandJSON string
		startedAt   string
		endedAt     sql.NullString
	)

	err := row.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.Profile,
		&commandJSON,
		&startedAt,
		&endedAt,
		&rec.ExitCode,
		&rec.Restarts,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if err := json.Unmarshal([]byte(commandJSON), &rec.Command); err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	rec.StartedAt = parseTimestamp(startedAt)
	if endedAt.Valid {
		rec.EndedAt = parseTimestamp(endedAt.String)
	}

	return &rec, nil
}

// timestampLayout is the format used when writing timestamps.
const timestampLayout = "2006-01-02 15:04:05"

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
