// Package monitoring holds the diagnostic logging streams shared by the
// reconstruction pipeline and its tooling.
//
// Three streams are available:
//   - Ops: actionable warnings, fallbacks and lifecycle events.
//   - Diag: per-stage summaries useful when tuning budgets and radii.
//   - Trace: high-frequency detail (per refinement pass, per progress tick).
//
// All streams are muted until SetLogWriters is called.
package monitoring

import (
	"io"
	"log"
	"sync"
)

// Stream identifies one of the logging streams.
type Stream int

const (
	Ops Stream = iota
	Diag
	Trace
	numStreams
)

const prefix = "[pointmesh] "

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu      sync.RWMutex
	loggers [numStreams]*log.Logger
)

// SetLogWriters replaces all three streams at once. A nil writer mutes its
// stream; the zero LogWriters mutes everything.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	for s, out := range [numStreams]io.Writer{w.Ops, w.Diag, w.Trace} {
		loggers[s] = nil
		if out != nil {
			loggers[s] = log.New(out, prefix, log.LstdFlags|log.Lmicroseconds)
		}
	}
}

// Enabled reports whether s currently has a writer. Hot loops check it
// before building trace arguments.
func Enabled(s Stream) bool {
	return logger(s) != nil
}

func logger(s Stream) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return loggers[s]
}

func logf(s Stream, format string, args []interface{}) {
	if l := logger(s); l != nil {
		l.Printf(format, args...)
	}
}

// Opsf reports something an operator should act on: a stage fell back,
// input was truncated, or a run could not be recorded.
func Opsf(format string, args ...interface{}) { logf(Ops, format, args) }

// Diagf reports a stage summary such as counts, chosen sizes and elapsed time.
func Diagf(format string, args ...interface{}) { logf(Diag, format, args) }

// Tracef reports per-iteration detail. Expect many lines per run.
func Tracef(format string, args ...interface{}) { logf(Trace, format, args) }
