// Package clock provides the time source used for scan decisions.
//
// Every component that reasons about cycle anchors, deadlines or report
// freshness receives a Clock instead of calling time.Now directly, so tests
// can pin "now" to a fixed instant.
package clock

import "time"

// Clock returns the current instant in UTC.
type Clock interface {
	Now() time.Time
}

// System reads the real system time.
type System struct{}

// Now returns the current system time in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant. Intended for tests.
type Fixed struct {
	Instant time.Time
}

// NewFixed returns a Fixed clock pinned to t (normalized to UTC).
func NewFixed(t time.Time) *Fixed {
	return &Fixed{Instant: t.UTC()}
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time {
	return f.Instant
}

// Advance moves the pinned instant forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.Instant = f.Instant.Add(d)
}
