// Package database stores the history of capilint runs in SQLite.
//
// Every run is saved with its full JSON report, a per-context summary and
// one row per file with the file's SHA3-256 content hash. Runs are grouped
// by label so that "compare" can diff the latest run over a source tree
// against an earlier one.
//
// The driver is modernc.org/sqlite, a CGO-free SQLite, so the database is
// a single file and the binary still cross-compiles.
package database
