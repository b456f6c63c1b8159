package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/study-space-booking/internal/model"
)

// UserRepo reads the parts of the users table the booking service needs.
// Accounts, credentials and roles are owned by the identity service.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo returns a UserRepo bound to db.
func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// FindContact returns the notification contact of a user.
func (r *UserRepo) FindContact(ctx context.Context, id uint64) (model.UserContact, error) {
	var u model.UserContact
	q := r.db.Rebind(`SELECT id AS user_id, email, full_name, email_verified, email_notifications
	                  FROM users WHERE id = ?`)
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		return model.UserContact{}, Classify(err)
	}
	return u, nil
}

// LockTx takes an exclusive lock on the user's row.  Creates for the same
// requester queue behind it, which serializes the quota count and the
// self-overlap check.
func (r *UserRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id uint64) error {
	var got uint64
	q := tx.Rebind(`SELECT id FROM users WHERE id = ? FOR UPDATE`)
	if err := tx.GetContext(ctx, &got, q, id); err != nil {
		return Classify(err)
	}
	return nil
}
