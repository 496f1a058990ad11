package types

import "time"

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User represents a staff account.
// It identifies the actor behind inventory changes.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never rendered.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level (admin or member).
	Role Role `json:"role" db:"role"`

	// CreatedAt is the timestamp when the account was registered.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
