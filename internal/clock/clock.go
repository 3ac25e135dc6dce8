// Package clock supplies the current date and time in a configured timezone
// so "today" is deterministic in tests.
package clock

import (
	"fmt"
	"time"

	"example.com/challenge/internal/domain"
)

// Wall reads the system clock in a fixed IANA timezone.
type Wall struct {
	loc *time.Location
}

// NewWall constructs a Wall clock for the given timezone name.
func NewWall(timezone string) (*Wall, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Wall{loc: loc}, nil
}

// Now returns the current instant in the configured timezone.
func (w *Wall) Now() time.Time {
	return time.Now().In(w.loc)
}

// Today returns the current calendar day in the configured timezone.
func (w *Wall) Today() domain.Date {
	return domain.DateOf(w.Now())
}

// Location exposes the configured timezone.
func (w *Wall) Location() *time.Location {
	return w.loc
}

// Fixed always reports the same instant. Test helper.
type Fixed struct {
	Instant time.Time
}

// Now returns the pinned instant.
func (f Fixed) Now() time.Time { return f.Instant }

// Today returns the pinned instant's calendar day.
func (f Fixed) Today() domain.Date { return domain.DateOf(f.Instant) }
