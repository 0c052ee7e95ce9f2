// Package errs defines the error taxonomy surfaced at the pipeline boundary.
//
// The original analysis core raises C++ exceptions to abort a frame. Per the
// source's own design notes this maps to a sum-typed result in Go: callers
// use errors.As against the concrete pointer types below instead of
// catching a base exception class.
package errs

import "fmt"

// CellTooSmall is returned when a simulation cell vector is shorter than
// twice the active cutoff, or when a wrapped displacement's reduced
// magnitude reaches the 1/2+ε boundary along a periodic axis.
type CellTooSmall struct {
	Axis int // 0, 1 or 2
}

func (e *CellTooSmall) Error() string {
	return fmt.Sprintf("cell vector along axis %d is too small for the requested cutoff", e.Axis)
}

// InvalidCell is returned for a degenerate (zero-volume) or NaN-contaminated
// simulation cell.
type InvalidCell struct {
	Reason string
}

func (e *InvalidCell) Error() string {
	return fmt.Sprintf("invalid simulation cell: %s", e.Reason)
}

// TessellationFailed is returned when the Delaunay tessellator cannot
// produce a complete complex even after degeneracy-breaking jitter.
type TessellationFailed struct {
	Reason string
}

func (e *TessellationFailed) Error() string {
	return fmt.Sprintf("delaunay tessellation failed: %s", e.Reason)
}

// NoCompatibleCrystal is informational, not fatal: it is carried on
// FrameOutput rather than returned as an error, but the type is kept here so
// callers can test for it uniformly if they chose to wrap it.
type NoCompatibleCrystal struct{}

func (e *NoCompatibleCrystal) Error() string {
	return "no elastically compatible crystal found in this frame"
}

// InternalConsistency marks a broken invariant that the analysis cannot
// recover from locally (as opposed to a per-atom/per-face local failure,
// which is recorded as a flag and never surfaces here).
type InternalConsistency struct {
	Where string
}

func (e *InternalConsistency) Error() string {
	return fmt.Sprintf("internal consistency violated: %s", e.Where)
}
