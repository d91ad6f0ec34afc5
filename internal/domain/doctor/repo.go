package doctor

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("doctor not found")

var (
	// ErrDuplicateID is returned by Create when doctor_id is already taken.
	ErrDuplicateID = errors.New("doctor_id already allocated")
	// ErrDuplicateLicense is returned by Create when license_number is taken.
	ErrDuplicateLicense = errors.New("license number already registered")
)

// ListFilter narrows a doctor listing. Specialization is a case-insensitive
// substring match.
type ListFilter struct {
	Specialization string
	Limit          int
	Offset         int
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	// GetForUpdate reads and row-locks the profile for the current
	// transaction. Caching layers must pass it straight through.
	GetForUpdate(ctx context.Context, id int64) (*Doctor, error)
	GetByUserID(ctx context.Context, userID int64) (*Doctor, error)
	List(ctx context.Context, f ListFilter) ([]*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Exists(ctx context.Context, id int64) (bool, error)
}
