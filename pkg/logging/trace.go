package logging

import (
	"log/slog"
	"sync/atomic"
)

var traceOn atomic.Bool

// SetTrace toggles the per-beat debug logs of the render path.
func SetTrace(on bool) { traceOn.Store(on) }

// Tracing reports whether per-beat logs are on.
func Tracing() bool { return traceOn.Load() }

// Trace logs at DEBUG level while tracing is on.
func Trace(msg string, args ...any) {
	if traceOn.Load() {
		slog.Debug(msg, args...)
	}
}
