// Package repository implements booking.Store on MySQL or Postgres
// through sqlx.  Every query is written with '?' placeholders and passed
// through Rebind so the same text serves both drivers.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/iliyamo/study-space-booking/internal/booking"
)

// Classify maps driver errors onto the booking sentinels.  Errors it does
// not recognise are returned unchanged.
//
//	sql.ErrNoRows                         -> booking.ErrNotFound
//	MySQL 1062, Postgres 23505            -> booking.ErrDuplicate
//	MySQL 1205/1213, Postgres 55P03/40P01/40001 -> booking.ErrLockTimeout
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return booking.ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062:
			return fmt.Errorf("%w: %v", booking.ErrDuplicate, err)
		case 1205, 1213:
			return fmt.Errorf("%w: %v", booking.ErrLockTimeout, err)
		}
		return err
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case "23505":
			return fmt.Errorf("%w: %v", booking.ErrDuplicate, err)
		case "55P03", "40P01", "40001":
			return fmt.Errorf("%w: %v", booking.ErrLockTimeout, err)
		}
	}
	return err
}
