// Package cutoff models the fixed daily instant at which market values settle.
package cutoff

import (
	"fmt"
	"time"

	// Embedded zone database so Europe/Berlin resolves in minimal containers.
	_ "time/tzdata"

	"kickbase-market-lab/internal/domain"
)

// Boundary is a daily wall-clock instant in a fixed location.
type Boundary struct {
	loc    *time.Location
	hour   int
	minute int
}

// New creates a Boundary at hour:minute in the named time zone.
func New(timezone string, hour, minute int) (Boundary, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Boundary{}, fmt.Errorf("load location %q: %w", timezone, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Boundary{}, fmt.Errorf("invalid boundary %02d:%02d", hour, minute)
	}
	return Boundary{loc: loc, hour: hour, minute: minute}, nil
}

// Settlement is the 22:15 Europe/Berlin market value update boundary.
func Settlement() Boundary {
	b, err := New("Europe/Berlin", 22, 15)
	if err != nil {
		panic(err)
	}
	return b
}

// MarketClose is the 22:00 Europe/Berlin transfer market processing boundary.
func MarketClose() Boundary {
	b, err := New("Europe/Berlin", 22, 0)
	if err != nil {
		panic(err)
	}
	return b
}

// Location returns the boundary's time zone.
func (b Boundary) Location() *time.Location {
	return b.loc
}

// On returns the boundary instant on the local calendar day of t.
func (b Boundary) On(t time.Time) time.Time {
	local := t.In(b.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, b.hour, b.minute, 0, 0, b.loc)
}

// Today returns the local calendar date of now as UTC midnight.
func (b Boundary) Today(now time.Time) time.Time {
	return domain.DateOf(now.In(b.loc))
}

// EffectiveDate is the first date whose market value is not yet settled:
// yesterday while now is at or before today's boundary, today after it.
func (b Boundary) EffectiveDate(now time.Time) time.Time {
	local := now.In(b.loc)
	if !local.After(b.On(local)) {
		return domain.DateOf(local.AddDate(0, 0, -1))
	}
	return domain.DateOf(local)
}

// Next returns the first boundary instant at or after now.
func (b Boundary) Next(now time.Time) time.Time {
	today := b.On(now)
	if now.After(today) {
		return b.On(now.In(b.loc).AddDate(0, 0, 1))
	}
	return today
}

// HoursUntilNext returns the hours from now to Next(now).
func (b Boundary) HoursUntilNext(now time.Time) float64 {
	return b.Next(now).Sub(now).Hours()
}

// Passed reports whether now is strictly after today's boundary.
func (b Boundary) Passed(now time.Time) bool {
	return now.After(b.On(now))
}

// String renders the boundary as "HH:MM Zone".
func (b Boundary) String() string {
	return fmt.Sprintf("%02d:%02d %s", b.hour, b.minute, b.loc)
}
