package patient

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("patient not found")

// ErrDuplicateID is returned by Create when patient_id is already taken.
var ErrDuplicateID = errors.New("patient_id already allocated")

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	// GetForUpdate reads and row-locks the profile for the current transaction.
	GetForUpdate(ctx context.Context, id int64) (*Patient, error)
	GetByUserID(ctx context.Context, userID int64) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, error)
	Update(ctx context.Context, p *Patient) error
}
