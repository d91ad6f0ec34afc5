package account

import (
	"net/mail"
	"strings"
	"time"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
)

// User maps to the users table. Role is fixed at creation.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	FullName     string    `db:"full_name" json:"full_name"`
	PasswordHash string    `db:"hashed_password" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// NewUser is the account part of a registration body. Role is ignored by
// the patient and doctor registration flows, which assign their own.
type NewUser struct {
	Email    string    `json:"email"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role,omitempty"`
}

func (n *NewUser) normalize() {
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	n.Username = strings.TrimSpace(n.Username)
	n.FullName = strings.TrimSpace(n.FullName)
}

func (n *NewUser) Validate() error {
	n.normalize()
	if n.Email == "" {
		return apperr.Validation("email is required")
	}
	if addr, err := mail.ParseAddress(n.Email); err != nil || addr.Address != n.Email {
		return apperr.Validation("email is not a valid address")
	}
	if n.Username == "" {
		return apperr.Validation("username is required")
	}
	if n.FullName == "" {
		return apperr.Validation("full_name is required")
	}
	if len(n.Password) < auth.MinPasswordLength {
		return apperr.Validationf("password must be at least %d characters", auth.MinPasswordLength)
	}
	if !n.Role.Valid() {
		return apperr.Validationf("invalid role: %s", n.Role)
	}
	return nil
}
