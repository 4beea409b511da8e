package fovea

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/fovealab/fovea/geometry"
	"github.com/fovealab/fovea/loader"
	"github.com/fovealab/fovea/raw"
	"github.com/fovealab/fovea/render"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for fovea and all its sub-packages.
// By default, fovea produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger
// atomically. Pass nil to disable logging (restore default silent
// behavior).
//
// Log levels used by fovea:
//   - [slog.LevelDebug]: internal diagnostics (pipeline state, cache hits,
//     per-stage timings)
//   - [slog.LevelInfo]: important lifecycle events (GPU adapter selected,
//     raw cleanup timings)
//   - [slog.LevelWarn]: non-fatal issues (CPU fallback, unsupported raw
//     compression)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	fovea.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	fovea.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	raw.SetLogger(l)
	geometry.SetLogger(l)
	render.SetLogger(l)
	loader.SetLogger(l)
}

// Logger returns the current logger used by fovea.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
