package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/model"
)

// ReservationRepo provides the reads and writes on the reservations table.
// Methods ending in Tx run inside the caller's transaction; the caller
// must commit or roll back.  All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sqlx.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, space_id, start_time, end_time, purpose, status,
	confirmation_code, created_at, cancelled_at, cancellation_reason`

// CodeExists reports whether any reservation, in any status, already
// carries code.
func (r *ReservationRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var one int
	q := r.db.Rebind(`SELECT 1 FROM reservations WHERE confirmation_code = ? LIMIT 1`)
	if err := r.db.GetContext(ctx, &one, q, code); err != nil {
		if err = Classify(err); errors.Is(err, booking.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CountActiveFutureTx counts the user's Confirmed reservations starting
// after now.  The rows are read FOR UPDATE and counted here because
// Postgres refuses FOR UPDATE together with aggregates.
func (r *ReservationRepo) CountActiveFutureTx(ctx context.Context, tx *sqlx.Tx, userID uint64, now time.Time) (int, error) {
	var ids []uint64
	q := tx.Rebind(`SELECT id FROM reservations
	                WHERE user_id = ? AND status = ? AND start_time > ?
	                FOR UPDATE`)
	if err := tx.SelectContext(ctx, &ids, q, userID, model.StatusConfirmed, now.UTC()); err != nil {
		return 0, Classify(err)
	}
	return len(ids), nil
}

// FindOverlappingTx returns the Confirmed reservations in column = value
// whose window intersects [start, end), locking every candidate row.
// column is either "space_id" or "user_id".
func (r *ReservationRepo) FindOverlappingTx(ctx context.Context, tx *sqlx.Tx, column string, value uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	if column != "space_id" && column != "user_id" {
		panic("repository: FindOverlappingTx on unsupported column " + column)
	}
	q := tx.Rebind(`SELECT ` + reservationColumns + ` FROM reservations
	                WHERE ` + column + ` = ? AND status = ?
	                  AND start_time < ? AND end_time > ? AND id <> ?
	                ORDER BY start_time
	                FOR UPDATE`)
	var out []model.Reservation
	if err := tx.SelectContext(ctx, &out, q, value, model.StatusConfirmed, end.UTC(), start.UTC(), excludeID); err != nil {
		return nil, Classify(err)
	}
	return out, nil
}

// CreateTx inserts res with status, code and timestamps already set and
// populates its generated ID.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	q := `INSERT INTO reservations (user_id, space_id, start_time, end_time, purpose, status, confirmation_code, created_at)
	      VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{res.UserID, res.SpaceID, res.StartTime.UTC(), res.EndTime.UTC(), res.Purpose,
		res.Status, res.ConfirmationCode, res.CreatedAt.UTC()}

	// lib/pq has no LastInsertId
	if tx.DriverName() == "postgres" {
		var id uint64
		if err := tx.QueryRowxContext(ctx, tx.Rebind(q+` RETURNING id`), args...).Scan(&id); err != nil {
			return Classify(err)
		}
		res.ID = id
		return nil
	}
	result, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
	if err != nil {
		return Classify(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetForUpdateTx loads a reservation and locks its row.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Reservation, error) {
	var res model.Reservation
	q := tx.Rebind(`SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`)
	if err := tx.GetContext(ctx, &res, q, id); err != nil {
		return model.Reservation{}, Classify(err)
	}
	return res, nil
}

// UpdateStatusTx sets the status of a reservation.  Cancelling also
// records when and why; other statuses leave the cancellation columns
// untouched.  The updated row is returned.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uint64, status model.Status, at time.Time, reason *model.CancellationReason) (model.Reservation, error) {
	var (
		result sql.Result
		err    error
	)
	if status == model.StatusCancelled {
		q := tx.Rebind(`UPDATE reservations SET status = ?, cancelled_at = ?, cancellation_reason = ? WHERE id = ?`)
		result, err = tx.ExecContext(ctx, q, status, at.UTC(), reason, id)
	} else {
		q := tx.Rebind(`UPDATE reservations SET status = ? WHERE id = ?`)
		result, err = tx.ExecContext(ctx, q, status, id)
	}
	if err != nil {
		return model.Reservation{}, Classify(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.Reservation{}, err
	}
	if n == 0 {
		return model.Reservation{}, booking.ErrNotFound
	}
	var res model.Reservation
	sel := tx.Rebind(`SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`)
	if err := tx.GetContext(ctx, &res, sel, id); err != nil {
		return model.Reservation{}, Classify(err)
	}
	return res, nil
}

// enrichedRow is a reservation joined with its space, building and
// campus.  The joins are LEFT so a reservation is never hidden by missing
// metadata.
type enrichedRow struct {
	model.Reservation
	SpaceRef     sql.NullInt64  `db:"space_ref"`     // study_spaces.id, NULL when the space row is gone
	SpaceName    sql.NullString `db:"space_name"`    // display name of the space
	RoomNumber   sql.NullString `db:"room_number"`   // room label inside the building
	Floor        sql.NullInt64  `db:"floor"`         // floor number
	Capacity     sql.NullInt64  `db:"capacity"`      // seats in the room
	RoomType     sql.NullString `db:"room_type"`     // e.g. Silent, Group
	BuildingID   sql.NullInt64  `db:"building_id"`   // parent building
	BuildingName sql.NullString `db:"building_name"` // building display name
	CampusID     sql.NullInt64  `db:"campus_id"`     // parent campus
	CampusName   sql.NullString `db:"campus_name"`   // campus display name
	hoursColumns
}

func (e enrichedRow) toModel() model.EnrichedReservation {
	out := model.EnrichedReservation{Reservation: e.Reservation, DurationMinutes: e.Reservation.DurationMinutes()}
	if !e.SpaceRef.Valid {
		return out
	}
	out.Space = &model.SpaceSummary{
		ID:             uint64(e.SpaceRef.Int64),
		Name:           e.SpaceName.String,
		RoomNumber:     e.RoomNumber.String,
		Floor:          int(e.Floor.Int64),
		Capacity:       int(e.Capacity.Int64),
		RoomType:       e.RoomType.String,
		OperatingHours: e.hoursColumns.toModel(),
		BuildingID:     uint64(e.BuildingID.Int64),
		BuildingName:   e.BuildingName.String,
		CampusID:       uint64(e.CampusID.Int64),
		CampusName:     e.CampusName.String,
	}
	return out
}

const enrichedSelect = `SELECT r.id, r.user_id, r.space_id, r.start_time, r.end_time, r.purpose, r.status,
       r.confirmation_code, r.created_at, r.cancelled_at, r.cancellation_reason,
       s.id AS space_ref, s.name AS space_name, s.room_number, s.floor, s.capacity, s.room_type,
       s.weekday_open, s.weekday_close, s.weekend_open, s.weekend_close,
       b.id AS building_id, b.name AS building_name, c.id AS campus_id, c.name AS campus_name
FROM reservations r
LEFT JOIN study_spaces s ON s.id = r.space_id
LEFT JOIN buildings b ON b.id = s.building_id
LEFT JOIN campuses c ON c.id = b.campus_id`

// GetWithSpace returns a reservation decorated with its space, building
// and campus.
func (r *ReservationRepo) GetWithSpace(ctx context.Context, id uint64) (model.EnrichedReservation, error) {
	var row enrichedRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(enrichedSelect+` WHERE r.id = ?`), id); err != nil {
		return model.EnrichedReservation{}, Classify(err)
	}
	return row.toModel(), nil
}

// filterClause renders f as a WHERE fragment over the alias r.
func filterClause(userID uint64, f booking.ListFilter) (string, []interface{}) {
	where := []string{"r.user_id = ?"}
	args := []interface{}{userID}
	switch f.Scope {
	case booking.ScopeUpcoming:
		where = append(where, "r.start_time > ? AND r.status = ?")
		args = append(args, f.Now.UTC(), model.StatusConfirmed)
	case booking.ScopePast:
		where = append(where, "(r.start_time <= ? OR r.status <> ?)")
		args = append(args, f.Now.UTC(), model.StatusConfirmed)
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, f.Status)
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// ListByUser returns a page of the user's reservations, newest start
// first.  An empty result is an empty slice, never nil.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64, f booking.ListFilter) ([]model.EnrichedReservation, error) {
	where, args := filterClause(userID, f)
	q := enrichedSelect + where + ` ORDER BY r.start_time DESC, r.id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	var rows []enrichedRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, Classify(err)
	}
	out := make([]model.EnrichedReservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// CountByUser counts the user's reservations matching f, ignoring paging.
func (r *ReservationRepo) CountByUser(ctx context.Context, userID uint64, f booking.ListFilter) (int, error) {
	where, args := filterClause(userID, f)
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM reservations r`+where), args...); err != nil {
		return 0, Classify(err)
	}
	return n, nil
}
