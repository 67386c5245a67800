package acme

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time without a date or location.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// Valid reports whether t lies within 00:00:00 and 23:59:59.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 &&
		t.Minute >= 0 && t.Minute < 60 &&
		t.Second >= 0 && t.Second < 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Next returns the first instant strictly after the given time whose wall
// clock, in after's location, reads t.
func (t TimeOfDay) Next(after time.Time) time.Time {
	y, m, d := after.Date()
	next := time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, after.Location())
	if !next.After(after) {
		next = time.Date(y, m, d+1, t.Hour, t.Minute, t.Second, 0, after.Location())
	}
	return next
}
