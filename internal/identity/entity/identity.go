package entity

import (
	"strings"
	"time"
)

// Role is the trust level of an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity represents a row in the `identities` table.
// Privilege is never stored; it is derived from Role on every read.
type Identity struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         Role      `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Version      int64     `db:"version" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Privileged reports whether the identity holds administrative rights.
func (i *Identity) Privileged() bool {
	return i != nil && i.Role == RoleAdmin
}

// DisplayName returns the full name, else the username, else user_<id>.
func (i *Identity) DisplayName() string {
	if n := strings.TrimSpace(i.FullName); n != "" {
		return n
	}
	if n := strings.TrimSpace(i.Username); n != "" {
		return n
	}
	return "user_" + i.ID
}
