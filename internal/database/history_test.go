package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/capilint/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newTestReport builds a report with one flagged file and one skipped file.
func newTestReport(label string, startedAt time.Time, findings int) *model.Report {
	report := model.NewReport(label)
	report.StartedAt = startedAt

	fr := model.NewFileResult("src/obj.c", "")
	fr.Hash = "abc123"
	fr.Size = 120
	fr.State = model.StateDone
	for i := range findings {
		fr.Findings = append(fr.Findings, model.Finding{
			File:    "src/obj.c",
			Line:    i + 1,
			Col:     5,
			Symbol:  "Py_TYPE",
			Context: model.Assignment,
			Snippet: "Py_TYPE(o) = t;",
		})
	}
	report.Add(fr)

	skipped := model.NewFileResult("src/gen.c", "")
	skipped.Hash = "def456"
	skipped.State = model.StateDone
	skipped.Skip("generated by Cython")
	report.Add(skipped)

	return report
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); errors.Is(err, os.ErrNotExist) {
			t.Error("database file was not created")
		}
		if got, want := db.Path(), filepath.Join(dbDir, FileName); got != want {
			t.Errorf("Path() = %q, want %q", got, want)
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

func TestSaveRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	report := newTestReport("myproject", time.Now(), 2)
	id, err := db.SaveRun(ctx, report)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if id <= 0 {
		t.Fatalf("SaveRun() id = %d, want positive", id)
	}

	got, err := db.GetRunByID(ctx, id)
	if err != nil {
		t.Fatalf("GetRunByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetRunByID() returned nil")
	}
	if got.RunID != report.RunID {
		t.Errorf("RunID = %q, want %q", got.RunID, report.RunID)
	}
	if got.TotalFindings() != 2 {
		t.Errorf("TotalFindings() = %d, want 2", got.TotalFindings())
	}
	if got.Files[0].State != model.StateDone {
		t.Errorf("State = %v, want done", got.Files[0].State)
	}
	if got.Files[0].Findings[0].Context != model.Assignment {
		t.Errorf("Context = %v, want assignment", got.Files[0].Findings[0].Context)
	}

	t.Run("duplicate run ID is rejected", func(t *testing.T) {
		if _, err := db.SaveRun(ctx, report); err == nil {
			t.Error("expected error saving the same run twice")
		}
	})
}

func TestGetRunByIDMissing(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	got, err := db.GetRunByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetRunByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetRunByID() = %v, want nil", got)
	}
}

func TestGetRunHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, n := range []int{1, 3, 2} {
		if _, err := db.SaveRun(ctx, newTestReport("proj", base.Add(time.Duration(i)*time.Hour), n)); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}
	if _, err := db.SaveRun(ctx, newTestReport("other", base, 5)); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	reports, err := db.GetRunHistory(ctx, "proj")
	if err != nil {
		t.Fatalf("GetRunHistory() error = %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("len(reports) = %d, want 3", len(reports))
	}
	wantFindings := []int{2, 3, 1}
	for i, r := range reports {
		if r.TotalFindings() != wantFindings[i] {
			t.Errorf("reports[%d].TotalFindings() = %d, want %d", i, r.TotalFindings(), wantFindings[i])
		}
	}

	empty, err := db.GetRunHistory(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetRunHistory() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("len(empty) = %d, want 0", len(empty))
	}
}

func TestGetRunHistoryWithMetadata(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	startedAt := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	report := newTestReport("proj", startedAt, 3)
	id, err := db.SaveRun(ctx, report)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	metas, err := db.GetRunHistoryWithMetadata(ctx, "proj")
	if err != nil {
		t.Fatalf("GetRunHistoryWithMetadata() error = %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("len(metas) = %d, want 1", len(metas))
	}
	meta := metas[0]
	if meta.ID != id {
		t.Errorf("ID = %d, want %d", meta.ID, id)
	}
	if meta.RunID != report.RunID {
		t.Errorf("RunID = %q, want %q", meta.RunID, report.RunID)
	}
	if !meta.Timestamp.Equal(startedAt) {
		t.Errorf("Timestamp = %v, want %v", meta.Timestamp, startedAt)
	}
	if meta.Files != 2 {
		t.Errorf("Files = %d, want 2", meta.Files)
	}
	if meta.Findings != 3 {
		t.Errorf("Findings = %d, want 3", meta.Findings)
	}
	if meta.ContextSummary["assignment"] != 3 {
		t.Errorf("ContextSummary[assignment] = %d, want 3", meta.ContextSummary["assignment"])
	}
}

func TestListLabels(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	for _, label := range []string{"b", "a", "b"} {
		if _, err := db.SaveRun(ctx, newTestReport(label, time.Now(), 0)); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	labels, err := db.ListLabels(ctx)
	if err != nil {
		t.Fatalf("ListLabels() error = %v", err)
	}
	if len(labels) != 2 || labels[0] != "a" || labels[1] != "b" {
		t.Errorf("ListLabels() = %v, want [a b]", labels)
	}
}

func TestFileHashes(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	report := newTestReport("proj", time.Now(), 1)
	if _, err := db.SaveRun(ctx, report); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	hashes, err := db.FileHashes(ctx, report.RunID)
	if err != nil {
		t.Fatalf("FileHashes() error = %v", err)
	}
	want := map[string]string{"src/obj.c": "abc123", "src/gen.c": "def456"}
	if len(hashes) != len(want) {
		t.Fatalf("FileHashes() = %v, want %v", hashes, want)
	}
	for path, hash := range want {
		if hashes[path] != hash {
			t.Errorf("hashes[%q] = %q, want %q", path, hashes[path], hash)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "RFC3339Nano", input: "2026-01-02T03:04:05.123456789Z"},
		{name: "RFC3339", input: "2026-01-02T03:04:05Z"},
		{name: "SQLite datetime", input: "2026-01-02 03:04:05"},
		{name: "no zone", input: "2026-01-02T03:04:05"},
		{name: "garbage", input: "yesterday", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) = %v, zero want %v", tt.input, got, tt.zero)
			}
		})
	}
}
