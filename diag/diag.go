// Package diag carries the pipeline's stage timing and counting diagnostics.
//
// Following gofem/fem's own mix of the standard log package for hard
// failures and gosl/io's colour helpers for progress banners, this package
// never introduces a structured-logging dependency: the core has no
// persisted state and no log file of its own, only console narration that a
// caller may silence.
package diag

import (
	"log"
	"time"

	"github.com/cpmech/gosl/io"
)

// Logger narrates pipeline stage progress. The zero value is silent.
type Logger struct {
	Verbose bool
	start   time.Time
}

// NewLogger returns a Logger that prints stage banners iff verbose is true.
func NewLogger(verbose bool) *Logger {
	return &Logger{Verbose: verbose}
}

// Stage announces the start of a pipeline stage.
func (l *Logger) Stage(name string) {
	l.start = time.Now()
	if l.Verbose {
		io.Pfcyan("==> %s\n", name)
	}
}

// Done announces the end of the most recently started stage, reporting
// elapsed time and an arbitrary count (atoms processed, faces built, ...).
func (l *Logger) Done(name string, count int) {
	if l.Verbose {
		io.Pfgreen("    %s: %d in %v\n", name, count, time.Since(l.start))
	}
}

// Warn reports a recoverable local failure (missing ideal vector, unassigned
// transition, ...) that does not abort the frame.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.Verbose {
		io.Pfred("warn: "+format+"\n", args...)
	}
}

// Fatal reports an unrecoverable boundary error and mirrors it to the
// standard logger so it survives even when Verbose is false.
func (l *Logger) Fatal(err error) {
	log.Printf("volterra: %v", err)
}
