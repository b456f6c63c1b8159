package model

import "time"

// Status is the lifecycle state of a reservation.  Only the booking
// service creates rows (Confirmed) and only cancellation moves a row to
// Cancelled.  Completed and No_Show are written by housekeeping outside
// this service.
type Status string

const (
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
	StatusCompleted Status = "Completed"
	StatusNoShow    Status = "No_Show"
)

// CancellationReason is the closed set of reasons stored with a
// cancelled reservation.
type CancellationReason string

const (
	ReasonUserRequested    CancellationReason = "User_Requested"
	ReasonAdministrative   CancellationReason = "Administrative"
	ReasonSpaceMaintenance CancellationReason = "Space_Maintenance"
)

// ParseCancellationReason reports whether s names a known reason.
func ParseCancellationReason(s string) (CancellationReason, bool) {
	switch r := CancellationReason(s); r {
	case ReasonUserRequested, ReasonAdministrative, ReasonSpaceMaintenance:
		return r, true
	}
	return "", false
}

// Reservation mirrors a row of the `reservations` table.
//
// Fields:
//
//	ID                 – primary key identifier.
//	UserID             – requester who owns the reservation.
//	SpaceID            – booked study space.
//	StartTime/EndTime  – half-open window [start, end), stored in UTC.
//	Purpose            – optional free text (nil when absent).
//	Status             – lifecycle state.
//	ConfirmationCode   – unique 10 character code shown to the user.
//	CreatedAt          – creation timestamp.
//	CancelledAt        – set when Status is Cancelled.
//	CancellationReason – set when Status is Cancelled.
type Reservation struct {
	ID                 uint64              `db:"id" json:"id"`
	UserID             uint64              `db:"user_id" json:"user_id"`
	SpaceID            uint64              `db:"space_id" json:"space_id"`
	StartTime          time.Time           `db:"start_time" json:"start_time"`
	EndTime            time.Time           `db:"end_time" json:"end_time"`
	Purpose            *string             `db:"purpose" json:"purpose,omitempty"`
	Status             Status              `db:"status" json:"status"`
	ConfirmationCode   string              `db:"confirmation_code" json:"confirmation_code"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	CancelledAt        *time.Time          `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason *CancellationReason `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
}

// DurationMinutes returns the length of the reservation window in whole minutes.
func (r Reservation) DurationMinutes() int {
	return int(r.EndTime.Sub(r.StartTime) / time.Minute)
}

// Overlaps reports whether the reservation window intersects [start, end).
// Touching boundaries do not overlap.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

// EnrichedReservation is a reservation decorated with the space, building
// and campus it belongs to.  Space is nil when the decoration could not be
// loaded.
type EnrichedReservation struct {
	Reservation
	DurationMinutes int           `json:"duration_minutes"`
	Space           *SpaceSummary `json:"space,omitempty"`
}

// SpaceSummary is the space metadata attached to an enriched reservation.
type SpaceSummary struct {
	ID             uint64         `json:"id"`
	Name           string         `json:"name"`
	RoomNumber     string         `json:"room_number"`
	Floor          int            `json:"floor"`
	Capacity       int            `json:"capacity"`
	RoomType       string         `json:"room_type"`
	OperatingHours OperatingHours `json:"operating_hours"`
	BuildingID     uint64         `json:"building_id"`
	BuildingName   string         `json:"building_name"`
	CampusID       uint64         `json:"campus_id"`
	CampusName     string         `json:"campus_name"`
}
