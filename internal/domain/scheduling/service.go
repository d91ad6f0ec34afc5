package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/seqid"
)

// DoctorChecker confirms a booked doctor exists. *doctor.Service
// satisfies it.
type DoctorChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Recorder counts appointment events.
type Recorder interface {
	AppointmentCreated()
	StatusTransition(from, to string)
}

type Service struct {
	appointments AppointmentRepository
	doctors      DoctorChecker
	tx           db.TxRunner
	ids          *seqid.Allocator
	policy       *auth.Policy
	metrics      Recorder
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(appointments AppointmentRepository, doctors DoctorChecker, tx db.TxRunner,
	ids *seqid.Allocator, policy *auth.Policy, metrics Recorder, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appointments,
		doctors:      doctors,
		tx:           tx,
		ids:          ids,
		policy:       policy,
		metrics:      metrics,
		logger:       logger.With().Str("component", "scheduling").Logger(),
		now:          time.Now,
	}
}

// Book creates a pending appointment for the calling patient.
func (s *Service) Book(ctx context.Context, actor auth.Actor, in Booking) (*Appointment, error) {
	if err := s.policy.Authorize(actor, auth.ResourceAppointment, auth.ActionCreate, auth.Target{}); err != nil {
		return nil, err
	}
	if !actor.HasPatient() {
		return nil, apperr.NotFound("Patient profile not found")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ok, err := s.doctors.Exists(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("Doctor not found")
	}
	if err := CheckFuture(in.AppointmentDate, s.now()); err != nil {
		return nil, err
	}

	var created *Appointment
	err = s.ids.Retry(ctx, seqid.KindAppointment, func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			num, err := s.ids.Next(ctx, seqid.KindAppointment)
			if err != nil {
				return err
			}
			a := &Appointment{
				AppointmentNumber: num,
				PatientID:         actor.PatientID,
				DoctorID:          in.DoctorID,
				AppointmentDate:   in.AppointmentDate.UTC(),
				Status:            StatusPending,
				Reason:            in.Reason,
			}
			if err := s.appointments.Create(ctx, a); err != nil {
				if errors.Is(err, ErrDuplicateNumber) {
					return seqid.Collision(num, err)
				}
				return err
			}
			created = a
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AppointmentCreated()
	}
	s.logger.Info().Str("appointment_number", created.AppointmentNumber).
		Int64("patient_id", created.PatientID).Int64("doctor_id", created.DoctorID).
		Time("appointment_date", created.AppointmentDate).Msg("appointment booked")
	return created, nil
}

// List returns the appointments actor may see. Patients and doctors only
// ever see their own rows; status narrows further.
func (s *Service) List(ctx context.Context, actor auth.Actor, status string, limit, offset int) ([]*Appointment, error) {
	scope, err := s.policy.AppointmentScope(actor)
	if err != nil {
		return nil, err
	}
	f := ListFilter{PatientID: scope.PatientID, DoctorID: scope.DoctorID, Limit: limit, Offset: offset}
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}
	return s.appointments.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id int64) (*Appointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, auth.ResourceAppointment, auth.ActionRead, target(a)); err != nil {
		return nil, err
	}
	return a, nil
}

// Update applies a partial update after checking ownership, the fields
// the actor's role may touch and the status lifecycle.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id int64, upd Update) (*Appointment, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	var updated *Appointment
	var from Status
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		change := auth.AppointmentChange{Fields: upd.Fields()}
		if upd.Status.Set {
			change.Status = string(upd.Status.Value)
		}
		if err := s.policy.AppointmentUpdate(actor, target(a), change).Err(); err != nil {
			return err
		}
		if upd.Status.Set {
			if err := CheckTransition(a.Status, upd.Status.Value); err != nil {
				return err
			}
		}
		if upd.AppointmentDate.Set {
			if err := CheckFuture(upd.AppointmentDate.Value, s.now()); err != nil {
				return err
			}
			upd.AppointmentDate.Value = upd.AppointmentDate.Value.UTC()
		}

		from = a.Status
		upd.applyTo(a)
		if err := s.appointments.Update(ctx, a); err != nil {
			if errors.Is(err, ErrNotFound) {
				return apperr.NotFound("Appointment not found")
			}
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Status != from {
		if s.metrics != nil {
			s.metrics.StatusTransition(string(from), string(updated.Status))
		}
		s.logger.Info().Str("appointment_number", updated.AppointmentNumber).
			Str("from", string(from)).Str("to", string(updated.Status)).
			Int64("by_user", actor.UserID).Msg("appointment status changed")
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, auth.ResourceAppointment, auth.ActionDelete, target(a)); err != nil {
			return err
		}
		if err := s.appointments.Delete(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return apperr.NotFound("Appointment not found")
			}
			return err
		}
		s.logger.Info().Str("appointment_number", a.AppointmentNumber).
			Int64("by_user", actor.UserID).Msg("appointment deleted")
		return nil
	})
}

func (s *Service) load(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("Appointment not found")
	}
	return a, err
}

// lock is load for writers: the row stays locked until the transaction
// ends, so concurrent updates apply one after the other.
func (s *Service) lock(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.appointments.GetForUpdate(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("Appointment not found")
	}
	return a, err
}

func target(a *Appointment) auth.Target {
	return auth.Target{PatientID: a.PatientID, DoctorID: a.DoctorID}
}
