// Package booking is the reservation transaction engine.  It decides,
// under concurrent demand, whether a window on a study space may be
// granted, and creates or cancels reservations atomically.  Serialization
// comes from row locks taken through Store, never from in-process mutexes,
// so any number of service instances may share one database.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-space-booking/internal/model"
)

// Notifier receives committed reservation changes.  Implementations must
// not block the caller; delivery failures stay inside the notifier.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, r model.EnrichedReservation)
	ReservationCancelled(ctx context.Context, r model.EnrichedReservation)
}

// Actor identifies the caller of an operation on an existing reservation.
type Actor struct {
	UserID uint64
	Role   string
}

func (a Actor) mayAccess(r model.Reservation) bool {
	return r.UserID == a.UserID || model.ElevatedRole(a.Role)
}

// Service composes validation, locking, quota and conflict checks into
// the create and cancel transactions.
type Service struct {
	store    Store
	policy   Policy
	now      func() time.Time
	codes    *CodeGenerator
	notifier Notifier
	log      logrus.FieldLogger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithNotifier registers the post-commit notification sink.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithLogger sets the structured logger.
func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

// WithCodeGenerator replaces the confirmation code generator.
func WithCodeGenerator(g *CodeGenerator) Option { return func(s *Service) { s.codes = g } }

// NewService wires a Service over store.
func NewService(store Store, policy Policy, opts ...Option) *Service {
	if store == nil {
		panic("nil store passed to booking.NewService")
	}
	s := &Service{
		store:  store,
		policy: policy,
		now:    time.Now,
		codes:  NewCodeGenerator(policy.CodeLength, policy.CodeAttempts),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the rules the service enforces.
func (s *Service) Policy() Policy { return s.policy }

// Space returns the current snapshot of a space.  The read is not locked.
func (s *Service) Space(ctx context.Context, id uint64) (model.Space, error) {
	sp, err := s.store.FindSpaceByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Space{}, notFound("space not found")
		}
		return model.Space{}, storeError("find space", err)
	}
	return sp, nil
}

// Create books req for requesterID.  On success the reservation is
// Confirmed and committed; the returned value is enriched with space
// details when they could be loaded.
func (s *Service) Create(ctx context.Context, requesterID uint64, req Request) (model.EnrichedReservation, error) {
	now := s.now().UTC()
	win, problems := Validate(req, now, s.policy)
	if len(problems) > 0 {
		return model.EnrichedReservation{}, validationError("invalid booking request", problems)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.EnrichedReservation{}, storeError("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// user row first, then space row: every create takes them in this order
	if err := tx.LockRequester(ctx, requesterID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.EnrichedReservation{}, notFound("requester not found")
		}
		return model.EnrichedReservation{}, storeError("lock requester", err)
	}
	space, err := tx.LockSpace(ctx, req.SpaceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.EnrichedReservation{}, notFound("space not found")
		}
		return model.EnrichedReservation{}, storeError("lock space", err)
	}
	if !space.Bookable() {
		return model.EnrichedReservation{}, conflict("space is not available for booking")
	}
	if msg := CheckOperatingHours(space.OperatingHours, win.Start, win.End, s.policy.location()); msg != "" {
		return model.EnrichedReservation{}, validationError(msg, []string{msg})
	}

	active, err := tx.CountActiveFutureReservations(ctx, requesterID, now)
	if err != nil {
		return model.EnrichedReservation{}, storeError("count active reservations", err)
	}
	if active >= s.policy.MaxActive {
		return model.EnrichedReservation{}, forbidden(fmt.Sprintf("maximum %d active reservations allowed", s.policy.MaxActive))
	}

	own, err := tx.FindOverlappingByUser(ctx, requesterID, win.Start, win.End, 0)
	if err != nil {
		return model.EnrichedReservation{}, storeError("find overlapping requester reservations", err)
	}
	if len(own) > 0 {
		return model.EnrichedReservation{}, conflict("you already have a reservation at this time")
	}
	taken, err := tx.FindOverlappingBySpace(ctx, space.ID, win.Start, win.End, 0)
	if err != nil {
		return model.EnrichedReservation{}, storeError("find overlapping space reservations", err)
	}
	if len(taken) > 0 {
		return model.EnrichedReservation{}, conflict("space is already booked at this time")
	}

	code, err := s.codes.Generate(ctx, s.store.ConfirmationCodeExists)
	if err != nil {
		return model.EnrichedReservation{}, err
	}
	res := model.Reservation{
		UserID:           requesterID,
		SpaceID:          space.ID,
		StartTime:        win.Start,
		EndTime:          win.End,
		Purpose:          req.Purpose,
		Status:           model.StatusConfirmed,
		ConfirmationCode: code,
		CreatedAt:        now,
	}
	if err := tx.InsertReservation(ctx, &res); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return model.EnrichedReservation{}, conflict("confirmation code already issued, please retry")
		}
		return model.EnrichedReservation{}, storeError("insert reservation", err)
	}
	if err := tx.Commit(); err != nil {
		return model.EnrichedReservation{}, storeError("commit", err)
	}
	committed = true

	s.log.WithFields(logrus.Fields{
		"reservation_id":    res.ID,
		"user_id":           res.UserID,
		"space_id":          res.SpaceID,
		"confirmation_code": res.ConfirmationCode,
	}).Info("reservation confirmed")

	enriched := s.enrich(ctx, res)
	if s.notifier != nil {
		s.notifier.ReservationConfirmed(ctx, enriched)
	}
	return enriched, nil
}

// Cancel moves a Confirmed reservation to Cancelled.  The actor must own
// the reservation or hold an elevated role.  When reason is nil it
// defaults to Administrative for elevated actors and User_Requested
// otherwise.
func (s *Service) Cancel(ctx context.Context, id uint64, actor Actor, reason *model.CancellationReason) (model.Reservation, error) {
	now := s.now().UTC()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Reservation{}, storeError("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.FindReservationForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Reservation{}, notFound("reservation not found")
		}
		return model.Reservation{}, storeError("load reservation", err)
	}
	if !actor.mayAccess(res) {
		return model.Reservation{}, forbidden("you do not have permission to cancel this reservation")
	}
	if res.Status != model.StatusConfirmed {
		msg := "only confirmed reservations can be cancelled"
		return model.Reservation{}, validationError(msg, []string{msg})
	}
	if !res.StartTime.After(now) {
		msg := "cannot cancel past reservations"
		return model.Reservation{}, validationError(msg, []string{msg})
	}
	if res.StartTime.Sub(now) <= s.policy.CancelGrace {
		msg := fmt.Sprintf("cannot cancel within %d minutes of the start time", int(s.policy.CancelGrace/time.Minute))
		return model.Reservation{}, validationError(msg, []string{msg})
	}

	r := model.ReasonUserRequested
	if model.ElevatedRole(actor.Role) {
		r = model.ReasonAdministrative
	}
	if reason != nil {
		r = *reason
	}
	updated, err := tx.UpdateReservationStatus(ctx, id, model.StatusCancelled, now, &r)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Reservation{}, notFound("reservation not found")
		}
		return model.Reservation{}, storeError("update reservation", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Reservation{}, storeError("commit", err)
	}
	committed = true

	s.log.WithFields(logrus.Fields{
		"reservation_id": updated.ID,
		"user_id":        updated.UserID,
		"space_id":       updated.SpaceID,
		"actor_id":       actor.UserID,
		"reason":         r,
	}).Info("reservation cancelled")

	if s.notifier != nil {
		s.notifier.ReservationCancelled(ctx, s.enrich(ctx, updated))
	}
	return updated, nil
}

// Get returns one enriched reservation visible to actor.
func (s *Service) Get(ctx context.Context, id uint64, actor Actor) (model.EnrichedReservation, error) {
	r, err := s.store.FindReservationWithSpace(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.EnrichedReservation{}, notFound("reservation not found")
		}
		return model.EnrichedReservation{}, storeError("load reservation", err)
	}
	if !actor.mayAccess(r.Reservation) {
		return model.EnrichedReservation{}, forbidden("you do not have permission to view this reservation")
	}
	return r, nil
}

// enrich loads space details for a committed reservation.  A failure is
// logged and the bare reservation is returned; the commit stands.
func (s *Service) enrich(ctx context.Context, r model.Reservation) model.EnrichedReservation {
	out, err := s.store.FindReservationWithSpace(ctx, r.ID)
	if err != nil {
		s.log.WithError(err).WithField("reservation_id", r.ID).Warn("enrich reservation")
		return model.EnrichedReservation{Reservation: r, DurationMinutes: r.DurationMinutes()}
	}
	return out
}
