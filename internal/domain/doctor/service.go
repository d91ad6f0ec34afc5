package doctor

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/seqid"
	"github.com/hms/hms/pkg/phone"
)

type Accounts interface {
	Register(ctx context.Context, in account.NewUser) (*account.User, error)
}

type RegistrationRecorder interface {
	ProfileRegistered(kind string)
}

type Service struct {
	doctors  DoctorRepository
	accounts Accounts
	tx       db.TxRunner
	ids      *seqid.Allocator
	policy   *auth.Policy
	phones   *phone.Normalizer
	metrics  RegistrationRecorder
	logger   zerolog.Logger
}

func NewService(doctors DoctorRepository, accounts Accounts, tx db.TxRunner, ids *seqid.Allocator,
	policy *auth.Policy, phones *phone.Normalizer, metrics RegistrationRecorder, logger zerolog.Logger) *Service {
	return &Service{
		doctors:  doctors,
		accounts: accounts,
		tx:       tx,
		ids:      ids,
		policy:   policy,
		phones:   phones,
		metrics:  metrics,
		logger:   logger.With().Str("component", "doctor").Logger(),
	}
}

// Register creates a doctor account and profile. Only admins may call it.
func (s *Service) Register(ctx context.Context, actor auth.Actor, in Registration) (*Doctor, error) {
	if err := s.policy.Authorize(actor, auth.ResourceDoctor, auth.ActionCreate, auth.Target{}); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	normalized, err := s.phones.Normalize(in.Phone)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	in.Phone = normalized
	in.User.Role = auth.RoleDoctor

	var created *Doctor
	err = s.ids.Retry(ctx, seqid.KindDoctor, func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			u, err := s.accounts.Register(ctx, in.User)
			if err != nil {
				return err
			}
			did, err := s.ids.Next(ctx, seqid.KindDoctor)
			if err != nil {
				return err
			}
			d := in.toDoctor(u.ID, did)
			switch err := s.doctors.Create(ctx, d); {
			case errors.Is(err, ErrDuplicateID):
				return seqid.Collision(did, err)
			case errors.Is(err, ErrDuplicateLicense):
				return apperr.Validation("License number already registered")
			case err != nil:
				return err
			}
			d.User = u
			created = d
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ProfileRegistered("doctor")
	}
	s.logger.Info().Int64("id", created.ID).Str("doctor_id", created.DoctorID).
		Int64("by_user", actor.UserID).Msg("doctor registered")
	return created, nil
}

// List is public.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Doctor, error) {
	return s.doctors.List(ctx, f)
}

// Get is public.
func (s *Service) Get(ctx context.Context, id int64) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("Doctor not found")
	}
	return d, err
}

func (s *Service) Me(ctx context.Context, actor auth.Actor) (*Doctor, error) {
	if err := s.policy.Authorize(actor, auth.ResourceDoctor, auth.ActionReadOwn, auth.Target{}); err != nil {
		return nil, err
	}
	d, err := s.doctors.GetByUserID(ctx, actor.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("Doctor profile not found")
	}
	return d, err
}

// Update reads the stored profile under a row lock, never from the cache,
// so each update starts from the latest committed version.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id int64, upd Update) (*Doctor, error) {
	var d *Doctor
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.doctors.GetForUpdate(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("Doctor not found")
		}
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, auth.ResourceDoctor, auth.ActionUpdate, auth.Target{DoctorID: d.ID}); err != nil {
			return err
		}
		if upd.Phone.Set && upd.Phone.Valid {
			normalized, err := s.phones.Normalize(upd.Phone.Value)
			if err != nil {
				return apperr.Validation(err.Error())
			}
			upd.Phone.Value = normalized
		}
		if err := upd.applyTo(d); err != nil {
			return err
		}
		return s.doctors.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("id", d.ID).Int64("by_user", actor.UserID).Msg("doctor updated")
	return d, nil
}

// Exists reports whether a doctor profile with this id exists. The
// appointment service uses it to validate bookings.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.doctors.Exists(ctx, id)
}
