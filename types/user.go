package types

import "time"

// DefaultRole is assigned to every account created through registration.
const DefaultRole = "user"

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user, assigned by the store.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's unique email address, used to log in.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level or role
	// within the system (e.g., "admin", "user").
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt encoding of the user's password.
	// This field is never exposed in API responses.
	PasswordHash []byte `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Profile is the public view of a User returned to authenticated callers.
type Profile struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Profile projects the user onto its public fields.
func (u User) Profile() Profile {
	return Profile{
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}
