package account

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

// ErrDuplicate is returned by Create when the email or username is taken.
var ErrDuplicate = errors.New("email or username already registered")

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	// FindByLogin matches either the email or the username.
	FindByLogin(ctx context.Context, login string) (*User, error)
	ExistsEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	// Profiles returns the patient and doctor profile ids linked to the
	// user, zero when absent.
	Profiles(ctx context.Context, userID int64) (patientID, doctorID int64, err error)
}
