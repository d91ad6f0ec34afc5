package scheduling

import (
	"time"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/pkg/patch"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var statuses = map[Status]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

func (s Status) Valid() bool { return statuses[s] }

// ParseStatus validates a status supplied by a client. The empty string
// is an error.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", apperr.Validationf("invalid appointment status: %q", s)
	}
	return st, nil
}

// Appointment maps to the appointments table. PatientID and DoctorID are
// the internal profile keys, not the business identifiers.
type Appointment struct {
	ID                int64     `db:"id" json:"id"`
	AppointmentNumber string    `db:"appointment_number" json:"appointment_number"`
	PatientID         int64     `db:"patient_id" json:"patient_id"`
	DoctorID          int64     `db:"doctor_id" json:"doctor_id"`
	AppointmentDate   time.Time `db:"appointment_date" json:"appointment_date"`
	Status            Status    `db:"status" json:"status"`
	Reason            *string   `db:"reason" json:"reason"`
	Notes             *string   `db:"notes" json:"notes"`
	Prescription      *string   `db:"prescription" json:"prescription"`
	Diagnosis         *string   `db:"diagnosis" json:"diagnosis"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Booking is the body a patient submits. The patient is always the
// caller.
type Booking struct {
	DoctorID        int64     `json:"doctor_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	Reason          *string   `json:"reason"`
}

func (b *Booking) Validate() error {
	if b.DoctorID <= 0 {
		return apperr.Validation("doctor_id is required")
	}
	if b.AppointmentDate.IsZero() {
		return apperr.Validation("appointment_date is required")
	}
	return nil
}

// Update is a partial appointment update. It has no patient or doctor
// fields, so an appointment can never be moved between owners.
type Update struct {
	AppointmentDate patch.Field[time.Time] `json:"appointment_date"`
	Status          patch.Field[Status]    `json:"status"`
	Notes           patch.Field[string]    `json:"notes"`
	Prescription    patch.Field[string]    `json:"prescription"`
	Diagnosis       patch.Field[string]    `json:"diagnosis"`
}

// Validate checks the shape of the update, independent of the record.
func (u *Update) Validate() error {
	if u.AppointmentDate.Set && !u.AppointmentDate.Valid {
		return apperr.Validation("appointment_date cannot be cleared")
	}
	if u.Status.Set {
		if !u.Status.Valid {
			return apperr.Validation("status cannot be cleared")
		}
		if !u.Status.Value.Valid() {
			return apperr.Validationf("invalid appointment status: %q", u.Status.Value)
		}
	}
	return nil
}

// Fields names the JSON fields the update supplies, in declaration order.
func (u *Update) Fields() []string {
	var out []string
	if u.AppointmentDate.Set {
		out = append(out, "appointment_date")
	}
	if u.Status.Set {
		out = append(out, "status")
	}
	if u.Notes.Set {
		out = append(out, "notes")
	}
	if u.Prescription.Set {
		out = append(out, "prescription")
	}
	if u.Diagnosis.Set {
		out = append(out, "diagnosis")
	}
	return out
}

func (u *Update) applyTo(a *Appointment) {
	u.AppointmentDate.ApplyValue(&a.AppointmentDate)
	u.Status.ApplyValue(&a.Status)
	u.Notes.Apply(&a.Notes)
	u.Prescription.Apply(&a.Prescription)
	u.Diagnosis.Apply(&a.Diagnosis)
}
