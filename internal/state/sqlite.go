package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DefaultListLimit caps List when Filter.Limit is zero.
const DefaultListLimit = 50

// ErrRunNotFound is returned by Get for an unknown id.
var ErrRunNotFound = errors.New("stage run not found")

// SQLiteStore implements History using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite history store. A nil logger
// discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database at path and applies migrations.
// Use MemoryPath for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == MemoryPath {
		dsn = MemoryPath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	s.logger.Debug("history store opened", slog.String("path", path))
	return nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// Record inserts a stage run, filling in the ID and start time when unset.
func (s *SQLiteStore) Record(ctx context.Context, run *StageRun) error {
	if s.db == nil {
		return errNotOpened
	}
	if run.ID == "" {
		run.ID = generateID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_runs (id, session_id, stage, status, message, params,
			datasets_before, datasets_after, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.Stage, string(run.Status), run.Message, run.Params,
		run.DatasetsBefore, run.DatasetsAfter, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record stage run: %w", err)
	}
	s.logger.Debug("stage run recorded",
		slog.String("id", run.ID),
		slog.String("stage", run.Stage),
		slog.String("status", string(run.Status)))
	return nil
}

const selectRuns = `SELECT id, session_id, stage, status, message, params,
	datasets_before, datasets_after, started_at, duration_ms FROM stage_runs`

// List returns runs newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*StageRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	var where []string
	var args []any
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Stage != "" {
		where = append(where, "stage = ?")
		args = append(args, f.Stage)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := selectRuns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*StageRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stage runs: %w", err)
	}
	return runs, nil
}

// Get returns one run by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*StageRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stage run: %w", err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*StageRun, error) {
	run := &StageRun{}
	var status string
	var startedMs, durationMs int64
	err := row.Scan(&run.ID, &run.SessionID, &run.Stage, &status, &run.Message, &run.Params,
		&run.DatasetsBefore, &run.DatasetsAfter, &startedMs, &durationMs)
	if err != nil {
		return nil, err
	}
	run.Status = Status(status)
	run.StartedAt = time.UnixMilli(startedMs).UTC()
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return run, nil
}
