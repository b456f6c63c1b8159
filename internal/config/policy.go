package config

import (
	"log"
	"time"
	_ "time/tzdata" // BOOKING_TIMEZONE must resolve on hosts without zoneinfo

	"github.com/iliyamo/study-space-booking/internal/booking"
)

// LoadPolicy reads the booking rules.  Every variable is optional and
// defaults to booking.DefaultPolicy.
//
//	BOOKING_MAX_ACTIVE    – active future reservations per user (5)
//	BOOKING_MIN_DURATION  – shortest reservation (60m)
//	BOOKING_MAX_DURATION  – longest reservation (180m)
//	BOOKING_MAX_LEAD      – how far ahead a reservation may start (336h)
//	BOOKING_CANCEL_GRACE  – no cancellation this close to start (15m)
//	BOOKING_PURPOSE_MAX   – purpose length in characters (500)
//	BOOKING_TIMEZONE      – IANA zone used for operating hours (UTC)
func LoadPolicy() booking.Policy {
	p := booking.DefaultPolicy()
	p.MaxActive = envInt("BOOKING_MAX_ACTIVE", p.MaxActive)
	p.MinDuration = envDur("BOOKING_MIN_DURATION", p.MinDuration)
	p.MaxDuration = envDur("BOOKING_MAX_DURATION", p.MaxDuration)
	p.MaxLead = envDur("BOOKING_MAX_LEAD", p.MaxLead)
	p.CancelGrace = envDur("BOOKING_CANCEL_GRACE", p.CancelGrace)
	p.PurposeMaxLen = envInt("BOOKING_PURPOSE_MAX", p.PurposeMaxLen)

	tz := envStr("BOOKING_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Fatalf("invalid BOOKING_TIMEZONE %q: %v", tz, err)
	}
	p.Location = loc

	if p.MaxActive < 1 {
		log.Fatalf("BOOKING_MAX_ACTIVE must be positive, got %d", p.MaxActive)
	}
	if p.MinDuration <= 0 || p.MaxDuration < p.MinDuration {
		log.Fatalf("invalid booking durations: min %s, max %s", p.MinDuration, p.MaxDuration)
	}
	return p
}
