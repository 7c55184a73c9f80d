package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/actocrawler/crawler"
)

// DefaultFileName is the database file created when Open receives a directory.
const DefaultFileName = "actocrawl.db"

// ErrRunFinished is returned when recording into a run that was already finished.
var ErrRunFinished = errors.New("store: run already finished")

// EventStore persists crawl events.
type EventStore struct {
	db     *sql.DB
	dbPath string
}

// Options configures EventStore behavior.
type Options struct {
	// CreateIfNotExists creates the database file and its directory if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates an EventStore.
// A path ending in ".db", ".sqlite" or ".sqlite3" names the database file
// itself; any other path is treated as a directory holding DefaultFileName.
func Open(path string, opts Options) (*EventStore, error) {
	dbPath := resolvePath(path)
	dbDir := filepath.Dir(dbPath)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &EventStore{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func resolvePath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return path
	default:
		return filepath.Join(path, DefaultFileName)
	}
}

// Path returns the database file path.
func (s *EventStore) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *EventStore) Close() error {
	return s.db.Close()
}

func (s *EventStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		seeds TEXT NOT NULL,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS crawl_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES crawl_runs(id),
		request_order INTEGER NOT NULL,
		depth INTEGER NOT NULL,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		success INTEGER NOT NULL,
		error TEXT,
		output TEXT,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON crawl_events(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_host ON crawl_events(host);
	CREATE INDEX IF NOT EXISTS idx_events_url ON crawl_events(url);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Run describes one crawl session.
type Run struct {
	ID         string
	Seeds      []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Finished reports whether FinishRun was called for the run.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Record is a stored crawl result.
type Record struct {
	ID         int64
	RunID      string
	Order      uint64
	Depth      uint64
	URL        string
	Host       string
	Success    bool
	Error      string
	Output     string
	RecordedAt time.Time
}

// RecordFromEvent converts a DidCrawl event into a Record.
// The output is stored as JSON, falling back to its fmt representation
// when it cannot be marshaled.
func RecordFromEvent[O, I any](runID string, ev crawler.Event[O, I]) Record {
	rec := Record{
		RunID:   runID,
		Order:   ev.Request.Order,
		Depth:   ev.Request.Depth,
		URL:     ev.Request.String(),
		Host:    ev.Request.Host(),
		Success: ev.Succeeded(),
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
		return rec
	}
	if b, err := json.Marshal(ev.Output); err == nil {
		rec.Output = string(b)
	} else {
		rec.Output = fmt.Sprint(ev.Output)
	}
	return rec
}

// StartRun creates a new run and returns its identifier.
func (s *EventStore) StartRun(ctx context.Context, seeds ...string) (string, error) {
	seedsJSON, err := json.Marshal(seeds)
	if err != nil {
		return "", fmt.Errorf("failed to serialize seeds: %w", err)
	}

	id := uuid.New().String()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_runs (id, seeds) VALUES (?, ?)`,
		id, string(seedsJSON),
	); err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run as finished.
func (s *EventStore) FinishRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE crawl_runs SET finished_at = CURRENT_TIMESTAMP WHERE id = ? AND finished_at IS NULL`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrRunFinished)
	}
	return nil
}

// Insert stores a record and returns its row ID.
func (s *EventStore) Insert(ctx context.Context, rec Record) (int64, error) {
	var finishedAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT finished_at FROM crawl_runs WHERE id = ?`, rec.RunID,
	).Scan(&finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("unknown run %q", rec.RunID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up run: %w", err)
	}
	if finishedAt.Valid {
		return 0, fmt.Errorf("run %s: %w", rec.RunID, ErrRunFinished)
	}

	result, err := s.db.ExecContext(ctx, `
	INSERT INTO crawl_events (run_id, request_order, depth, url, host, success, error, output)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID,
		int64(rec.Order), //nolint:gosec // orders are bounded by the request budget
		int64(rec.Depth), //nolint:gosec // depths are bounded by the depth limit
		rec.URL,
		rec.Host,
		rec.Success,
		rec.Error,
		rec.Output,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl event: %w", err)
	}
	return result.LastInsertId()
}

// Events returns the records of a run sorted by request order.
func (s *EventStore) Events(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, run_id, request_order, depth, url, host, success, error, output, recorded_at
	FROM crawl_events
	WHERE run_id = ?
	ORDER BY request_order, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl events: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var (
			rec        Record
			order      int64
			depth      int64
			errText    sql.NullString
			output     sql.NullString
			recordedAt string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&order,
			&depth,
			&rec.URL,
			&rec.Host,
			&rec.Success,
			&errText,
			&output,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan crawl event: %w", err)
		}
		rec.Order = uint64(order) //nolint:gosec // stored from uint64
		rec.Depth = uint64(depth) //nolint:gosec // stored from uint64
		rec.Error = errText.String
		rec.Output = output.String
		rec.RecordedAt = parseTimestamp(recordedAt)
		results = append(results, rec)
	}
	return results, rows.Err()
}

// Runs lists all runs, newest first.
func (s *EventStore) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, seeds, started_at, finished_at
	FROM crawl_runs
	ORDER BY started_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			seedsJSON  string
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&run.ID, &seedsJSON, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(seedsJSON), &run.Seeds); err != nil {
			return nil, fmt.Errorf("failed to parse seeds: %w", err)
		}
		run.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTimestamp(finishedAt.String)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// timestampFormats lists the layouts SQLite may return, most specific first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time when no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
