package model

import (
	"fmt"
	"time"
)

// SpaceStatusAvailable is the only status under which a space accepts new
// reservations.  Other values (Maintenance, Closed, ...) are managed by the
// space administration tooling.
const SpaceStatusAvailable = "Available"

// SpaceStatusDeleted marks a soft-deleted space.  Such rows are treated as
// absent.
const SpaceStatusDeleted = "Deleted"

// Space is the read-only view of a `study_spaces` row used when deciding
// whether a reservation may be placed.
type Space struct {
	ID             uint64         `json:"id"`
	Name           string         `json:"name"`
	Status         string         `json:"status"`
	OperatingHours OperatingHours `json:"operating_hours"`
}

// Bookable reports whether the space currently accepts reservations.
func (s Space) Bookable() bool { return s.Status == SpaceStatusAvailable }

// OperatingHours splits the opening policy into weekday and weekend windows.
type OperatingHours struct {
	Weekday HoursWindow `json:"weekday"`
	Weekend HoursWindow `json:"weekend"`
}

// For returns the window that applies to the calendar day of t.
func (h OperatingHours) For(t time.Time) HoursWindow {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return h.Weekend
	}
	return h.Weekday
}

// HoursWindow is an opening/closing pair expressed as minutes after
// midnight.  A zero value means "not configured".
type HoursWindow struct {
	Open       ClockTime `json:"start"`
	Close      ClockTime `json:"end"`
	Configured bool      `json:"-"`
}

// ClockTime is a wall-clock time of day in minutes after midnight.
type ClockTime int

// ParseClockTime accepts "HH:MM" or "HH:MM:SS" as returned by TIME columns.
func ParseClockTime(s string) (ClockTime, error) {
	var h, m, sec int
	n, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	if n < 2 {
		if err == nil {
			err = fmt.Errorf("invalid time of day %q", s)
		}
		return 0, err
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return ClockTime(h*60 + m), nil
}

// On returns the instant at this time of day on the calendar day of t, in t's location.
func (c ClockTime) On(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location()).Add(time.Duration(c) * time.Minute)
}

// String formats the time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalText renders HH:MM so JSON responses match the stored policy.
func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
