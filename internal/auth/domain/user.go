package domain

import "time"

// Platform roles. Role is carried in the access token claims so the HTTP
// layer can authorize without a database round trip.
const (
	RoleUser    = "user"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// User is an account holder. Creators are users with RoleCreator; they can
// additionally own plans and API credentials.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string // digestHex;salt=saltHex (argon2id)
	Role         string

	TOTPSecret  *string    // nil until 2FA enrollment starts
	TOTPEnabled *time.Time // nil until the first code is verified

	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TOTPActive reports whether login requires a second factor.
func (u User) TOTPActive() bool {
	return u.TOTPEnabled != nil && u.TOTPSecret != nil && *u.TOTPSecret != ""
}
