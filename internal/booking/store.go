package booking

import (
	"context"
	"time"

	"github.com/iliyamo/study-space-booking/internal/model"
)

// Store is the persistence boundary of the booking engine.  Methods
// outside a Tx are unlocked reads.  Missing rows are reported with
// ErrNotFound; lock wait timeouts and deadlocks with ErrLockTimeout.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	// FindSpaceByID reads the current availability and operating hours.
	FindSpaceByID(ctx context.Context, id uint64) (model.Space, error)
	ConfirmationCodeExists(ctx context.Context, code string) (bool, error)
	// FindReservationWithSpace decorates a reservation with its space,
	// building and campus.
	FindReservationWithSpace(ctx context.Context, id uint64) (model.EnrichedReservation, error)
	ListReservationsByUser(ctx context.Context, userID uint64, f ListFilter) ([]model.EnrichedReservation, error)
	CountReservationsByUser(ctx context.Context, userID uint64, f ListFilter) (int, error)
}

// Tx is one create or cancel transaction.  Every read that guards a
// write takes an exclusive row lock and observes rows committed by the
// transactions it waited for.
type Tx interface {
	// LockRequester locks the requester's user row.  Creates for the same
	// requester serialize here.
	LockRequester(ctx context.Context, userID uint64) error
	// LockSpace locks and returns the space row.  Creates for the same
	// space serialize here.  It is always taken after LockRequester.
	LockSpace(ctx context.Context, spaceID uint64) (model.Space, error)
	// CountActiveFutureReservations counts Confirmed reservations of the
	// user whose start is after now.
	CountActiveFutureReservations(ctx context.Context, userID uint64, now time.Time) (int, error)
	// FindOverlappingBySpace returns Confirmed reservations on the space
	// satisfying start < end' AND end > start'.  excludeID 0 excludes nothing.
	FindOverlappingBySpace(ctx context.Context, spaceID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error)
	// FindOverlappingByUser is FindOverlappingBySpace scoped to the
	// requester across all spaces.
	FindOverlappingByUser(ctx context.Context, userID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error)
	// InsertReservation stores r and fills in its ID.  A confirmation
	// code collision is reported as ErrDuplicate.
	InsertReservation(ctx context.Context, r *model.Reservation) error
	FindReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id uint64, status model.Status, at time.Time, reason *model.CancellationReason) (model.Reservation, error)

	Commit() error
	Rollback() error
}

// Scope selects a slice of a user's reservation history.
type Scope string

const (
	ScopeAll Scope = ""
	// ScopeUpcoming is Confirmed reservations starting after Now.
	ScopeUpcoming Scope = "upcoming"
	// ScopePast is reservations that have started or are no longer Confirmed.
	ScopePast Scope = "past"
)

// ListFilter narrows ListReservationsByUser and CountReservationsByUser.
// Limit 0 means no limit; counts ignore Limit and Offset.
type ListFilter struct {
	Scope  Scope
	Status model.Status
	Now    time.Time
	Limit  int
	Offset int
}

// Matches reports whether r falls inside the filter.  It is the reference
// semantics for the SQL in the repository package.
func (f ListFilter) Matches(r model.Reservation) bool {
	switch f.Scope {
	case ScopeUpcoming:
		if !(r.StartTime.After(f.Now) && r.Status == model.StatusConfirmed) {
			return false
		}
	case ScopePast:
		if r.StartTime.After(f.Now) && r.Status == model.StatusConfirmed {
			return false
		}
	}
	return f.Status == "" || r.Status == f.Status
}
