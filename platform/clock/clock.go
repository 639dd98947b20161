// Package clock provides an injectable time source.
// This is part of the platform layer and contains no business logic.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock, always in UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant. Used by tests.
type Fixed time.Time

// Now returns the fixed instant.
func (f Fixed) Now() time.Time { return time.Time(f) }

// Func adapts an ordinary function to Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time { return f() }
