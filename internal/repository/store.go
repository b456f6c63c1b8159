package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/model"
)

// Store implements booking.Store over the reservation, space and user
// repositories sharing one connection pool.
type Store struct {
	db           *sqlx.DB
	lockTimeout  time.Duration
	Reservations *ReservationRepo
	Spaces       *SpaceRepo
	Users        *UserRepo
}

var _ booking.Store = (*Store)(nil)

// NewStore wires the repositories over db.  lockTimeout bounds how long a
// transaction waits for a row lock; zero keeps the server default.
func NewStore(db *sqlx.DB, lockTimeout time.Duration) *Store {
	return &Store{
		db:           db,
		lockTimeout:  lockTimeout,
		Reservations: NewReservationRepo(db),
		Spaces:       NewSpaceRepo(db),
		Users:        NewUserRepo(db),
	}
}

// Begin opens a READ COMMITTED transaction.  Locking reads inside it
// always see the latest committed rows, so a transaction that waited on
// a lock re-evaluates against what the lock holder committed.
func (s *Store) Begin(ctx context.Context) (booking.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, Classify(err)
	}
	if s.lockTimeout > 0 {
		if err := s.applyLockTimeout(ctx, tx); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}
	return &storeTx{tx: tx, s: s}, nil
}

func (s *Store) applyLockTimeout(ctx context.Context, tx *sqlx.Tx) error {
	var stmt string
	switch s.db.DriverName() {
	case "postgres":
		stmt = fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
	case "mysql":
		secs := int64(s.lockTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		stmt = fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)
	default:
		return nil
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

func (s *Store) FindSpaceByID(ctx context.Context, id uint64) (model.Space, error) {
	return s.Spaces.GetByID(ctx, id)
}

func (s *Store) ConfirmationCodeExists(ctx context.Context, code string) (bool, error) {
	return s.Reservations.CodeExists(ctx, code)
}

func (s *Store) FindReservationWithSpace(ctx context.Context, id uint64) (model.EnrichedReservation, error) {
	return s.Reservations.GetWithSpace(ctx, id)
}

func (s *Store) ListReservationsByUser(ctx context.Context, userID uint64, f booking.ListFilter) ([]model.EnrichedReservation, error) {
	return s.Reservations.ListByUser(ctx, userID, f)
}

func (s *Store) CountReservationsByUser(ctx context.Context, userID uint64, f booking.ListFilter) (int, error) {
	return s.Reservations.CountByUser(ctx, userID, f)
}

// FindUserContact returns the notification contact of a user.
func (s *Store) FindUserContact(ctx context.Context, id uint64) (model.UserContact, error) {
	return s.Users.FindContact(ctx, id)
}

type storeTx struct {
	tx *sqlx.Tx
	s  *Store
}

func (t *storeTx) LockRequester(ctx context.Context, userID uint64) error {
	return t.s.Users.LockTx(ctx, t.tx, userID)
}

func (t *storeTx) LockSpace(ctx context.Context, spaceID uint64) (model.Space, error) {
	return t.s.Spaces.LockByIDTx(ctx, t.tx, spaceID)
}

func (t *storeTx) CountActiveFutureReservations(ctx context.Context, userID uint64, now time.Time) (int, error) {
	return t.s.Reservations.CountActiveFutureTx(ctx, t.tx, userID, now)
}

func (t *storeTx) FindOverlappingBySpace(ctx context.Context, spaceID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	return t.s.Reservations.FindOverlappingTx(ctx, t.tx, "space_id", spaceID, start, end, excludeID)
}

func (t *storeTx) FindOverlappingByUser(ctx context.Context, userID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	return t.s.Reservations.FindOverlappingTx(ctx, t.tx, "user_id", userID, start, end, excludeID)
}

func (t *storeTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.Reservations.CreateTx(ctx, t.tx, r)
}

func (t *storeTx) FindReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	return t.s.Reservations.GetForUpdateTx(ctx, t.tx, id)
}

func (t *storeTx) UpdateReservationStatus(ctx context.Context, id uint64, status model.Status, at time.Time, reason *model.CancellationReason) (model.Reservation, error) {
	return t.s.Reservations.UpdateStatusTx(ctx, t.tx, id, status, at, reason)
}

func (t *storeTx) Commit() error   { return Classify(t.tx.Commit()) }
func (t *storeTx) Rollback() error { return t.tx.Rollback() }
