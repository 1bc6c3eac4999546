// Package timeutil provides calendar-day utilities for the gradebook engine.
// Streaks and activity dates are counted in whole calendar days of a single
// configured location (the school's timezone), never in raw 24h windows.
package timeutil

import (
	"sync"
	"time"
)

var (
	mu       sync.RWMutex
	location = time.UTC
)

// SetLocation sets the location used for calendar-day arithmetic.
// A nil location resets it to UTC.
func SetLocation(loc *time.Location) {
	mu.Lock()
	defer mu.Unlock()
	if loc == nil {
		loc = time.UTC
	}
	location = loc
}

// Location returns the configured location.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in the configured location.
func DateOf(t time.Time) Date {
	local := t.In(Location())
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// NewDate builds a Date, normalising overflow the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.utcMidnight().Format(time.DateOnly)
}

func (d Date) utcMidnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of calendar days from a to b.
// It is DST-safe because it compares UTC midnights of the two dates.
func DaysBetween(a, b Date) int {
	return int(b.utcMidnight().Sub(a.utcMidnight()).Hours() / 24)
}
