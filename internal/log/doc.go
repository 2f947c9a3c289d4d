// Package log provides the structured logger used by capilint, built on
// top of the standard slog package.
//
// PathHandler wraps any slog.Handler and rewrites path-valued attributes
// ("path", "file", "root", "archive") relative to a base directory, so
// log lines match the diagnostics printed for the same files.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.LevelFor(verbose, quiet), false)
//	logger.Debug("file checked", "file", "/home/me/proj/src/obj.c")
//	// level=DEBUG msg="file checked" file=src/obj.c
//
//	slog.SetDefault(logger)
package log
