package database

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

	"github.com/nao1215/capilint/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "capilint.db"

// timestampLayout is fixed-width so that timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryDB provides SQLite-based storage for run reports.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per check run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		file_count INTEGER NOT NULL DEFAULT 0,
		finding_count INTEGER NOT NULL DEFAULT 0,
		context_summary TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_label ON runs(label);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);

	-- Per-file outcome of a run
	CREATE TABLE IF NOT EXISTS file_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		sha3 TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		finding_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_file_results_run ON file_results(run);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// fileStatus condenses a FileResult into one word for the file_results table.
func fileStatus(fr *model.FileResult) string {
	switch {
	case fr.TimedOut:
		return "timed_out"
	case fr.Failed():
		return "error"
	case fr.Skipped:
		return "skipped"
	default:
		return "scanned"
	}
}

// SaveRun stores report and returns its database ID. The run row and its
// file rows are written in one transaction.
func (hdb *HistoryDB) SaveRun(ctx context.Context, report *model.Report) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	summary := make(map[string]int)
	for _, c := range report.ContextCounts() {
		summary[c.Name] = c.Count
	}
	summaryJSON, _ := json.Marshal(summary) //nolint:errcheck,errchkjson // A map of ints always marshals

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after Commit

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, label, timestamp, file_count, finding_count, context_summary, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.Label,
		report.StartedAt.UTC().Format(timestampLayout),
		len(report.Files),
		report.TotalFindings(),
		string(summaryJSON),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO file_results (run, path, sha3, size, finding_count, status)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer stmt.Close()

	for _, fr := range report.Files {
		if _, err := stmt.ExecContext(ctx, id, fr.Display, fr.Hash, fr.Size, len(fr.Findings), fileStatus(fr)); err != nil {
			return 0, fmt.Errorf("failed to save file result for %s: %w", fr.Display, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// ListLabels returns every label with at least one stored run.
func (hdb *HistoryDB) ListLabels(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `SELECT DISTINCT label FROM runs ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// GetRunHistory retrieves all reports stored under label, newest first.
// Rows whose JSON cannot be parsed are skipped.
func (hdb *HistoryDB) GetRunHistory(ctx context.Context, label string) ([]*model.Report, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT report_json FROM runs
	WHERE label = ?
	ORDER BY timestamp DESC, id DESC
	`, label)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.Report
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// This is used for displaying history without loading full reports.
type RunMetadata struct {
	// ID is the database ID, used with GetRunByID.
	ID int64

	// RunID is the run's UUID.
	RunID string

	// Label groups runs over the same inputs.
	Label string

	// Timestamp is when the run started.
	Timestamp time.Time

	// Files is the number of input files.
	Files int

	// Findings is the total number of findings.
	Findings int

	// ContextSummary counts findings by context name.
	ContextSummary map[string]int
}

// GetRunHistoryWithMetadata retrieves run metadata for label, newest first.
func (hdb *HistoryDB) GetRunHistoryWithMetadata(ctx context.Context, label string) ([]RunMetadata, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT id, run_id, label, timestamp, file_count, finding_count, context_summary
	FROM runs
	WHERE label = ?
	ORDER BY timestamp DESC, id DESC
	`, label)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var (
			meta        RunMetadata
			timestamp   string
			summaryJSON sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.RunID, &meta.Label, &timestamp, &meta.Files, &meta.Findings, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		meta.ContextSummary = make(map[string]int)
		if summaryJSON.Valid && summaryJSON.String != "" {
			if err := json.Unmarshal([]byte(summaryJSON.String), &meta.ContextSummary); err != nil {
				meta.ContextSummary = make(map[string]int)
			}
		}

		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetRunByID retrieves a report by its database ID. It returns nil and no
// error when the ID does not exist.
func (hdb *HistoryDB) GetRunByID(ctx context.Context, id int64) (*model.Report, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Missing run is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// FileHashes returns the content hash of every file scanned in run id,
// keyed by display path. Files that were never read have no entry.
func (hdb *HistoryDB) FileHashes(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT f.path, f.sha3 FROM file_results f
	JOIN runs r ON r.id = f.run
	WHERE r.run_id = ? AND f.sha3 IS NOT NULL AND f.sha3 != ''
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan file hash: %w", err)
		}
		hashes[path] = hash
	}
	return hashes, rows.Err()
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
