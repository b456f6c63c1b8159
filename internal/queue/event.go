// Package queue defines the booking notification payloads exchanged over
// RabbitMQ and the consumer that records them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/study-space-booking/internal/model"
)

// Queue names.  Both are durable and bound to the default exchange.
const (
	ConfirmedQueue = "booking.confirmed"
	CancelledQueue = "booking.cancelled"
)

// Event kinds carried in BookingEvent.Kind.
const (
	KindConfirmed = "reservation.confirmed"
	KindCancelled = "reservation.cancelled"
)

// BookingEvent is published after a reservation is confirmed or
// cancelled.  It carries everything the mailer needs so that consumers
// never query the booking database.
type BookingEvent struct {
	EventID            string `json:"event_id"`
	Kind               string `json:"kind"`
	ReservationID      uint64 `json:"reservation_id"`
	UserID             uint64 `json:"user_id"`
	SpaceID            uint64 `json:"space_id"`
	ConfirmationCode   string `json:"confirmation_code"`
	SpaceName          string `json:"space_name,omitempty"`
	RoomNumber         string `json:"room_number,omitempty"`
	BuildingName       string `json:"building_name,omitempty"`
	CampusName         string `json:"campus_name,omitempty"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	DurationMinutes    int    `json:"duration_minutes"`
	Purpose            string `json:"purpose,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	RecipientEmail     string `json:"recipient_email"`
	RecipientName      string `json:"recipient_name"`
	OccurredAt         string `json:"occurred_at"`
}

// Queue returns the queue the event is routed to.
func (e BookingEvent) Queue() string {
	if e.Kind == KindCancelled {
		return CancelledQueue
	}
	return ConfirmedQueue
}

// NewBookingEvent builds an event of the given kind for r, addressed to to.
func NewBookingEvent(kind string, r model.EnrichedReservation, to model.UserContact, at time.Time) BookingEvent {
	ev := BookingEvent{
		EventID:          uuid.NewString(),
		Kind:             kind,
		ReservationID:    r.ID,
		UserID:           r.UserID,
		SpaceID:          r.SpaceID,
		ConfirmationCode: r.ConfirmationCode,
		StartTime:        r.StartTime.UTC().Format(time.RFC3339),
		EndTime:          r.EndTime.UTC().Format(time.RFC3339),
		DurationMinutes:  r.DurationMinutes,
		RecipientEmail:   to.Email,
		RecipientName:    to.FullName,
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
	if r.Space != nil {
		ev.SpaceName = r.Space.Name
		ev.RoomNumber = r.Space.RoomNumber
		ev.BuildingName = r.Space.BuildingName
		ev.CampusName = r.Space.CampusName
	}
	if r.Purpose != nil {
		ev.Purpose = *r.Purpose
	}
	if r.CancellationReason != nil {
		ev.CancellationReason = string(*r.CancellationReason)
	}
	return ev
}
