package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// pathKeys are the attribute keys whose string values are file paths.
var pathKeys = map[string]bool{
	"path":    true,
	"file":    true,
	"root":    true,
	"archive": true,
}

// PathHandler wraps an slog.Handler and shortens absolute paths in
// path-valued attributes to paths relative to a base directory. Paths
// outside the base are left alone.
type PathHandler struct {
	handler slog.Handler
	base    string
}

// NewPathHandler creates a PathHandler wrapping handler. If handler is nil
// slog.Default().Handler() is used; if base is empty the working directory
// is used.
func NewPathHandler(handler slog.Handler, base string) *PathHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	if base == "" {
		if wd, err := os.Getwd(); err == nil {
			base = wd
		}
	}
	return &PathHandler{handler: handler, base: base}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PathHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rewrites the record's attributes and passes it on.
func (h *PathHandler) Handle(ctx context.Context, r slog.Record) error {
	rewritten := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		rewritten.AddAttrs(h.rewriteAttr(a))
		return true
	})
	return h.handler.Handle(ctx, rewritten)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *PathHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	rewritten := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		rewritten[i] = h.rewriteAttr(a)
	}
	return &PathHandler{handler: h.handler.WithAttrs(rewritten), base: h.base}
}

// WithGroup returns a new handler with the given group name.
func (h *PathHandler) WithGroup(name string) slog.Handler {
	return &PathHandler{handler: h.handler.WithGroup(name), base: h.base}
}

func (h *PathHandler) rewriteAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		rewritten := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			rewritten[i] = h.rewriteAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(rewritten...)}
	}

	if !pathKeys[strings.ToLower(a.Key)] || a.Value.Kind() != slog.KindString {
		return a
	}
	return slog.String(a.Key, h.relative(a.Value.String()))
}

// relative shortens path when it lies under the base directory. The
// "archive!member" form keeps its member part.
func (h *PathHandler) relative(path string) string {
	if h.base == "" || !filepath.IsAbs(path) {
		return path
	}
	file, member, hasMember := strings.Cut(path, "!")
	rel, err := filepath.Rel(h.base, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	if hasMember {
		return rel + "!" + member
	}
	return rel
}

// LevelFor maps the verbosity flags to a level: Debug when verbose,
// Error when quiet, Warn otherwise.
func LevelFor(verbose, quiet bool) slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// NewLogger creates a logger writing to w at the given level. JSON output
// suits log aggregation; text output is meant for a terminal.
func NewLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(NewPathHandler(handler, ""))
}
