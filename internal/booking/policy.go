package booking

import "time"

// Policy holds the tunable booking rules.  config.LoadPolicy fills it
// from the environment; DefaultPolicy mirrors the documented defaults.
type Policy struct {
	// MaxActive caps the Confirmed reservations with a future start a
	// single requester may hold.
	MaxActive int
	// MinDuration and MaxDuration bound end - start, inclusive.
	MinDuration time.Duration
	MaxDuration time.Duration
	// MaxLead is how far ahead of now a reservation may start.
	MaxLead time.Duration
	// CancelGrace is the window before start in which cancellation is refused.
	CancelGrace time.Duration
	// PurposeMaxLen is measured in characters, not bytes.
	PurposeMaxLen int
	// Location decides the calendar day and wall clock used for operating hours.
	Location *time.Location
	// CodeLength and CodeAttempts configure confirmation code generation.
	CodeLength   int
	CodeAttempts int
}

// DefaultPolicy returns the policy used when no overrides are configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxActive:     5,
		MinDuration:   60 * time.Minute,
		MaxDuration:   180 * time.Minute,
		MaxLead:       14 * 24 * time.Hour,
		CancelGrace:   15 * time.Minute,
		PurposeMaxLen: 500,
		Location:      time.UTC,
		CodeLength:    10,
		CodeAttempts:  10,
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
