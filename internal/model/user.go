package model

import "time"

// User represents an application user record as stored in the
// `users` table.  A user can own listings and borrow listings owned by
// others.  Administrators are flagged with IsAdmin and may moderate
// listings and reviews as well as override reservation fields.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Name         – display name shown to counterparties.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	IsAdmin      – whether the user has administrative rights.
//	IsActive     – whether the account is active.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`         // users.id
	Name         string    `json:"name"`       // users.name
	Email        string    `json:"email"`      // users.email
	PasswordHash string    `json:"-"`          // users.password_hash
	IsAdmin      bool      `json:"is_admin"`   // users.is_admin
	IsActive     bool      `json:"is_active"`  // users.is_active
	CreatedAt    time.Time `json:"created_at"` // users.created_at
	UpdatedAt    time.Time `json:"updated_at"` // users.updated_at
}

// Role names carried in the access token "role" claim.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// RoleName returns the token role for the user.
func (u User) RoleName() string {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token handed to the client is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
