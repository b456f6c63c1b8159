package booking

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/study-space-booking/internal/model"
)

// Request is a booking request as received from the caller.  Timestamps
// are kept as strings so that parse failures are reported alongside every
// other violated rule.
type Request struct {
	// SpaceID is zero when the caller supplied no usable space identifier.
	SpaceID   uint64
	StartTime string
	EndTime   string
	Purpose   *string
}

// Window is a validated half-open reservation interval in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate checks req against p without touching storage.  It never stops
// at the first failure: the returned slice holds one field-named message
// per violated rule and is empty when req is acceptable.
func Validate(req Request, now time.Time, p Policy) (Window, []string) {
	var problems []string
	var w Window

	if req.SpaceID == 0 {
		problems = append(problems, "space_id must be a positive integer")
	}

	start, startOK := parseTimestamp("start_time", req.StartTime, &problems)
	if startOK {
		if !start.After(now) {
			problems = append(problems, "start_time must be in the future")
		}
		if start.After(now.Add(p.MaxLead)) {
			problems = append(problems, fmt.Sprintf("start_time must be within %s of now", leadText(p.MaxLead)))
		}
	}

	end, endOK := parseTimestamp("end_time", req.EndTime, &problems)
	if endOK && startOK {
		if !end.After(start) {
			problems = append(problems, "end_time must be after start_time")
		} else {
			d := end.Sub(start)
			if d < p.MinDuration {
				problems = append(problems, fmt.Sprintf("duration must be at least %d minutes", int(p.MinDuration/time.Minute)))
			}
			if d > p.MaxDuration {
				problems = append(problems, fmt.Sprintf("duration must be at most %d minutes", int(p.MaxDuration/time.Minute)))
			}
		}
	}

	if req.Purpose != nil && utf8.RuneCountInString(*req.Purpose) > p.PurposeMaxLen {
		problems = append(problems, fmt.Sprintf("purpose must be at most %d characters", p.PurposeMaxLen))
	}

	if startOK {
		w.Start = start.UTC()
	}
	if endOK {
		w.End = end.UTC()
	}
	return w, problems
}

func parseTimestamp(field, raw string, problems *[]string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*problems = append(*problems, field+" is required")
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		*problems = append(*problems, field+" must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

func leadText(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}

// CheckOperatingHours verifies that [start, end) fits inside the opening
// window of the calendar day on which start falls, evaluated in loc.
// It returns an empty string when the window fits.  Windows crossing
// midnight never fit unless the space closes at 24:00.
func CheckOperatingHours(hours model.OperatingHours, start, end time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	ls := start.In(loc)
	win := hours.For(ls)
	if !win.Configured {
		return "space operating hours not configured"
	}
	if ls.Before(win.Open.On(ls)) {
		return "booking must start at or after " + win.Open.String()
	}
	if end.After(win.Close.On(ls)) {
		return "booking must end at or before " + win.Close.String()
	}
	return ""
}
