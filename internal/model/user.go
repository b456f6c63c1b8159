package model

// Role names carried in the access token's "role" claim.  Students book
// spaces for themselves; space managers and administrators may act on any
// reservation.
const (
	RoleStudent       = "Student"
	RoleSpaceManager  = "Space_Manager"
	RoleAdministrator = "Administrator"
)

// ElevatedRole reports whether role may act on reservations it does not own.
func ElevatedRole(role string) bool {
	return role == RoleSpaceManager || role == RoleAdministrator
}

// UserContact is the subset of the `users` table needed to decide whether
// and where to send booking notifications.
//
// Fields:
//
//	ID                 – primary key identifier of the user.
//	Email              – address notifications are delivered to.
//	FullName           – display name used in the greeting.
//	EmailVerified      – notifications are only sent to verified addresses.
//	EmailNotifications – user preference; false disables booking emails.
type UserContact struct {
	ID                 uint64 `db:"user_id"`
	Email              string `db:"email"`
	FullName           string `db:"full_name"`
	EmailVerified      bool   `db:"email_verified"`
	EmailNotifications bool   `db:"email_notifications"`
}

// WantsEmail reports whether a booking email should be sent to the user.
func (u UserContact) WantsEmail() bool {
	return u.EmailVerified && u.EmailNotifications && u.Email != ""
}
