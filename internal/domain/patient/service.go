package patient

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/seqid"
	"github.com/hms/hms/pkg/phone"
)

// Accounts creates the user that owns a new profile.
type Accounts interface {
	Register(ctx context.Context, in account.NewUser) (*account.User, error)
}

// RegistrationRecorder counts new profiles.
type RegistrationRecorder interface {
	ProfileRegistered(kind string)
}

type Service struct {
	patients PatientRepository
	accounts Accounts
	tx       db.TxRunner
	ids      *seqid.Allocator
	policy   *auth.Policy
	phones   *phone.Normalizer
	metrics  RegistrationRecorder
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(patients PatientRepository, accounts Accounts, tx db.TxRunner, ids *seqid.Allocator,
	policy *auth.Policy, phones *phone.Normalizer, metrics RegistrationRecorder, logger zerolog.Logger) *Service {
	return &Service{
		patients: patients,
		accounts: accounts,
		tx:       tx,
		ids:      ids,
		policy:   policy,
		phones:   phones,
		metrics:  metrics,
		logger:   logger.With().Str("component", "patient").Logger(),
		now:      time.Now,
	}
}

// Register creates a patient account and its profile in one transaction.
// The account role is always patient.
func (s *Service) Register(ctx context.Context, in Registration) (*Patient, error) {
	if err := in.Validate(s.now()); err != nil {
		return nil, err
	}
	normalized, err := s.phones.Normalize(in.Phone)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	in.Phone = normalized
	in.User.Role = auth.RolePatient

	var created *Patient
	err = s.ids.Retry(ctx, seqid.KindPatient, func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			u, err := s.accounts.Register(ctx, in.User)
			if err != nil {
				return err
			}
			pid, err := s.ids.Next(ctx, seqid.KindPatient)
			if err != nil {
				return err
			}
			p := in.toPatient(u.ID, pid)
			if err := s.patients.Create(ctx, p); err != nil {
				if errors.Is(err, ErrDuplicateID) {
					return seqid.Collision(pid, err)
				}
				return err
			}
			p.User = u
			created = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ProfileRegistered("patient")
	}
	s.logger.Info().Int64("id", created.ID).Str("patient_id", created.PatientID).Msg("patient registered")
	return created, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, limit, offset int) ([]*Patient, error) {
	if err := s.policy.Authorize(actor, auth.ResourcePatient, auth.ActionList, auth.Target{}); err != nil {
		return nil, err
	}
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id int64) (*Patient, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, auth.ResourcePatient, auth.ActionRead, auth.Target{PatientID: p.ID}); err != nil {
		return nil, err
	}
	return p, nil
}

// Me returns the caller's own patient profile.
func (s *Service) Me(ctx context.Context, actor auth.Actor) (*Patient, error) {
	if err := s.policy.Authorize(actor, auth.ResourcePatient, auth.ActionReadOwn, auth.Target{}); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByUserID(ctx, actor.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("Patient profile not found")
	}
	return p, err
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, id int64, upd Update) (*Patient, error) {
	var p *Patient
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.patients.GetForUpdate(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("Patient not found")
		}
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, auth.ResourcePatient, auth.ActionUpdate, auth.Target{PatientID: p.ID}); err != nil {
			return err
		}
		if err := upd.Validate(); err != nil {
			return err
		}
		if upd.Phone.Set {
			normalized, err := s.phones.Normalize(upd.Phone.Value)
			if err != nil {
				return apperr.Validation(err.Error())
			}
			upd.Phone.Value = normalized
		}
		upd.applyTo(p)
		return s.patients.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("id", p.ID).Int64("by_user", actor.UserID).Msg("patient updated")
	return p, nil
}

func (s *Service) load(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("Patient not found")
	}
	return p, err
}

