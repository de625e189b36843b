package types

import "time"

// User represents a registered account in the system.
// It contains identity, credential hashes, and audit metadata.
type User struct {
	// ID is the unique identifier of the user, generated at creation.
	ID string `json:"id" db:"id"`

	// Email is the user's email address. Unique across the system.
	Email string `json:"email" db:"email"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// PasswordHash stores the argon2id encoding of the user's password.
	// Plaintext never leaves the hashing boundary.
	PasswordHash string `json:"-" db:"password_hash"`

	// RefreshTokenHash stores the argon2id encoding of the most recently
	// issued refresh token. Empty means no active session.
	RefreshTokenHash string `json:"-" db:"refresh_token_hash"`

	// IsActive indicates whether the account may authenticate.
	IsActive bool `json:"is_active" db:"is_active"`

	// Roles are the authorization labels attached to the account
	// (e.g., "admin", "user"). Stored but only checked at route guards.
	Roles []string `json:"roles" db:"roles"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Profile is the outward-facing projection of a User. It carries no
// credential material, so handing one out can never leak or persist a
// secret by accident.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile projects the user into its public representation.
func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
