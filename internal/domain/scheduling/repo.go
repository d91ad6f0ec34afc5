package scheduling

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("appointment not found")
	ErrDuplicateNumber = errors.New("duplicate appointment number")
)

// ListFilter selects appointments. Zero PatientID, DoctorID and Status
// mean no restriction on that column.
type ListFilter struct {
	PatientID int64
	DoctorID  int64
	Status    Status
	Limit     int
	Offset    int
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	// GetForUpdate reads and row-locks the appointment until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Appointment, error)
	// List orders by appointment_date, newest first.
	List(ctx context.Context, f ListFilter) ([]*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id int64) error
}
