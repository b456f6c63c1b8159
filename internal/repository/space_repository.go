package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/study-space-booking/internal/model"
)

// hoursColumns holds the operating-hours TIME columns of study_spaces.
// A window is configured only when both its open and close are set.
type hoursColumns struct {
	WeekdayOpen  clockColumn `db:"weekday_open"`  // opening time Monday to Friday
	WeekdayClose clockColumn `db:"weekday_close"` // closing time Monday to Friday
	WeekendOpen  clockColumn `db:"weekend_open"`  // opening time Saturday and Sunday
	WeekendClose clockColumn `db:"weekend_close"` // closing time Saturday and Sunday
}

// clockColumn scans a nullable TIME column.  MySQL hands TIME values over
// as text while lib/pq decodes them into a time.Time on year zero.
type clockColumn struct {
	Clock model.ClockTime
	Valid bool
}

func (c *clockColumn) Scan(src interface{}) error {
	*c = clockColumn{}
	switch v := src.(type) {
	case nil:
		return nil
	case time.Time:
		c.Clock = model.ClockTime(v.Hour()*60 + v.Minute())
		// lib/pq decodes TIME '24:00:00' as midnight of the following day
		if c.Clock == 0 && v.YearDay() == 2 {
			c.Clock = 24 * 60
		}
	case []byte:
		return c.parse(string(v))
	case string:
		return c.parse(v)
	default:
		return fmt.Errorf("unsupported TIME value %T", src)
	}
	c.Valid = true
	return nil
}

func (c *clockColumn) parse(s string) error {
	if s == "" {
		return nil
	}
	t, err := model.ParseClockTime(s)
	if err != nil {
		return err
	}
	c.Clock, c.Valid = t, true
	return nil
}

func (h hoursColumns) toModel() model.OperatingHours {
	return model.OperatingHours{
		Weekday: hoursWindow(h.WeekdayOpen, h.WeekdayClose),
		Weekend: hoursWindow(h.WeekendOpen, h.WeekendClose),
	}
}

func hoursWindow(open, close clockColumn) model.HoursWindow {
	if !open.Valid || !close.Valid {
		return model.HoursWindow{}
	}
	return model.HoursWindow{Open: open.Clock, Close: close.Clock, Configured: true}
}

// spaceRow mirrors the columns of study_spaces read by the booking engine.
type spaceRow struct {
	ID     uint64 `db:"id"`
	Name   string `db:"name"`
	Status string `db:"status"`
	hoursColumns
}

func (r spaceRow) toModel() model.Space {
	return model.Space{ID: r.ID, Name: r.Name, Status: r.Status, OperatingHours: r.hoursColumns.toModel()}
}

const spaceColumns = `id, name, status, weekday_open, weekday_close, weekend_open, weekend_close`

// SpaceRepo reads study spaces.  Space CRUD belongs to the administration
// service; this repository never writes.
type SpaceRepo struct {
	db *sqlx.DB
}

// NewSpaceRepo returns a SpaceRepo bound to db.
func NewSpaceRepo(db *sqlx.DB) *SpaceRepo { return &SpaceRepo{db: db} }

// GetByID returns the current snapshot of a space without locking it.
// Soft-deleted spaces are reported as booking.ErrNotFound.
func (r *SpaceRepo) GetByID(ctx context.Context, id uint64) (model.Space, error) {
	var row spaceRow
	q := r.db.Rebind(`SELECT ` + spaceColumns + ` FROM study_spaces WHERE id = ? AND status <> ?`)
	if err := r.db.GetContext(ctx, &row, q, id, model.SpaceStatusDeleted); err != nil {
		return model.Space{}, Classify(err)
	}
	return row.toModel(), nil
}

// LockByIDTx reads the space with an exclusive row lock held until tx ends.
func (r *SpaceRepo) LockByIDTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Space, error) {
	var row spaceRow
	q := tx.Rebind(`SELECT ` + spaceColumns + ` FROM study_spaces WHERE id = ? AND status <> ? FOR UPDATE`)
	if err := tx.GetContext(ctx, &row, q, id, model.SpaceStatusDeleted); err != nil {
		return model.Space{}, Classify(err)
	}
	return row.toModel(), nil
}
