// Package journal records completed download runs in a local sqlite
// database. The journal is purely informational; skip decisions are
// always made from the files on disk, never from journal rows.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dropfetch/dropfetch/internal/domain"
)

// Journal persists run history
type Journal struct {
	db *sql.DB
}

// RunRecord represents a single completed download run
type RunRecord struct {
	ID         int64
	Link       string
	SaveDir    string
	StartTime  time.Time
	EndTime    time.Time
	Status     string // "success", "partial", "failed"
	Found      int
	Skipped    int
	Downloaded int
	Failed     int
	Bytes      int64
	Error      string
}

// FailureRecord represents one file that could not be downloaded
type FailureRecord struct {
	RunID    int64
	Name     string
	Attempts int
	Error    string
}

// Open creates or opens the journal database under dataDir
func Open(dataDir string) (*Journal, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "dropfetch.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit the pool to one connection to avoid "database is locked"
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set database pragmas: %w", err)
	}

	j := &Journal{db: db}

	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link TEXT NOT NULL,
		save_dir TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		found INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		downloaded INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS run_failures (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_link_time ON runs(link, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_run_failures_run ON run_failures(run_id);
	`

	_, err := j.db.Exec(schema)
	return err
}

// RecordRun writes a run and its per-file failures in one transaction
// and returns the assigned run ID
func (j *Journal) RecordRun(record RunRecord, failures []domain.FileResult) (int64, error) {
	if record.Status != "success" && record.Status != "partial" && record.Status != "failed" {
		return 0, fmt.Errorf("invalid status: %s (must be 'success', 'partial', or 'failed')", record.Status)
	}

	tx, err := j.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	res, err := tx.Exec(`
		INSERT INTO runs (link, save_dir, start_time, end_time, status, found, skipped, downloaded, failed, bytes, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Link,
		record.SaveDir,
		record.StartTime,
		record.EndTime,
		record.Status,
		record.Found,
		record.Skipped,
		record.Downloaded,
		record.Failed,
		record.Bytes,
		record.Error,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to save run record: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for _, f := range failures {
		errText := ""
		if f.Err != nil {
			errText = f.Err.Error()
		}
		if _, err := tx.Exec(`
			INSERT INTO run_failures (run_id, name, attempts, error)
			VALUES (?, ?, ?, ?)`,
			runID, f.Name, f.Attempts, errText,
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to save failure record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run record: %w", err)
	}

	return runID, nil
}

// History retrieves the most recent runs, newest first
func (j *Journal) History(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := j.db.Query(`
		SELECT id, link, save_dir, start_time, end_time, status, found, skipped, downloaded, failed, bytes, error
		FROM runs
		ORDER BY start_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// HistoryForLink retrieves the most recent runs for one shared link
func (j *Journal) HistoryForLink(link string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := j.db.Query(`
		SELECT id, link, save_dir, start_time, end_time, status, found, skipped, downloaded, failed, bytes, error
		FROM runs
		WHERE link = ?
		ORDER BY start_time DESC
		LIMIT ?`, link, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// LastSuccess retrieves the most recent fully successful run for a
// link, or nil when there is none
func (j *Journal) LastSuccess(link string) (*RunRecord, error) {
	var record RunRecord
	err := j.db.QueryRow(`
		SELECT id, link, save_dir, start_time, end_time, status, found, skipped, downloaded, failed, bytes, error
		FROM runs
		WHERE link = ? AND status = 'success'
		ORDER BY start_time DESC
		LIMIT 1`, link).Scan(
		&record.ID,
		&record.Link,
		&record.SaveDir,
		&record.StartTime,
		&record.EndTime,
		&record.Status,
		&record.Found,
		&record.Skipped,
		&record.Downloaded,
		&record.Failed,
		&record.Bytes,
		&record.Error,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last success: %w", err)
	}

	return &record, nil
}

// Failures retrieves the per-file failures of a run
func (j *Journal) Failures(runID int64) ([]FailureRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, name, attempts, error
		FROM run_failures
		WHERE run_id = ?
		ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var records []FailureRecord
	for rows.Next() {
		var r FailureRecord
		if err := rows.Scan(&r.RunID, &r.Name, &r.Attempts, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan failure record: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failure records: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func scanRuns(rows *sql.Rows) ([]RunRecord, error) {
	var records []RunRecord
	for rows.Next() {
		var record RunRecord
		err := rows.Scan(
			&record.ID,
			&record.Link,
			&record.SaveDir,
			&record.StartTime,
			&record.EndTime,
			&record.Status,
			&record.Found,
			&record.Skipped,
			&record.Downloaded,
			&record.Failed,
			&record.Bytes,
			&record.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run records: %w", err)
	}

	return records, nil
}

// StatusForSummary derives the journal status from a run summary
func StatusForSummary(summary domain.RunSummary) string {
	switch {
	case summary.Failed == 0:
		return "success"
	case summary.Downloaded > 0 || summary.Skipped > 0:
		return "partial"
	default:
		return "failed"
	}
}
