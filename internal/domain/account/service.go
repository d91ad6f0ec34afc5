package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
)

const duplicateMessage = "Email or username already registered"

type Service struct {
	users       UserRepository
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
	logger      zerolog.Logger
}

func NewService(users UserRepository, tokens *auth.TokenIssuer, revocations auth.RevocationStore, logger zerolog.Logger) *Service {
	return &Service{users: users, tokens: tokens, revocations: revocations, logger: logger}
}

// Register creates an active account. Callers that create a profile
// alongside the user run this inside their transaction.
func (s *Service) Register(ctx context.Context, in NewUser) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	taken, err := s.users.ExistsEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if taken {
		return nil, apperr.Validation(duplicateMessage)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        in.Email,
		Username:     in.Username,
		FullName:     in.FullName,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, apperr.Validation(duplicateMessage)
		}
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("user registered")
	return u, nil
}

// Authenticate checks a login (email or username) and password pair.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperr.Unauthorized("Incorrect email or password")
	}
	u, err := s.users.FindByLogin(ctx, login)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Unauthorized("Incorrect email or password")
	}
	if err != nil {
		return nil, err
	}
	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return nil, apperr.Unauthorized("Incorrect email or password")
	}
	if !u.IsActive {
		return nil, apperr.Validation("Inactive user")
	}
	return u, nil
}

// Login authenticates and issues an access token.
func (s *Service) Login(ctx context.Context, login, password string) (*auth.Token, error) {
	u, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Msg("login")
	return tok, nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, id auth.Identity) error {
	if id.TokenID == "" {
		return apperr.Validation("token has no id")
	}
	if err := s.revocations.Revoke(ctx, id.TokenID, id.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	return u, err
}

// ResolveActor loads the user behind a verified token together with the
// ids of its patient and doctor profiles.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (auth.Actor, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return auth.Actor{}, apperr.Unauthorized("Could not validate credentials")
	}
	if err != nil {
		return auth.Actor{}, err
	}
	if !u.IsActive {
		return auth.Actor{}, apperr.Validation("Inactive user")
	}
	patientID, doctorID, err := s.users.Profiles(ctx, u.ID)
	if err != nil {
		return auth.Actor{}, fmt.Errorf("load profiles: %w", err)
	}
	return auth.Actor{UserID: u.ID, Role: u.Role, PatientID: patientID, DoctorID: doctorID}, nil
}

// EnsureAdmin creates the bootstrap administrator unless an account with
// that email or username already exists.
func (s *Service) EnsureAdmin(ctx context.Context, in NewUser) (bool, error) {
	in.Role = auth.RoleAdmin
	if in.FullName == "" {
		in.FullName = "System Administrator"
	}
	in.normalize()
	taken, err := s.users.ExistsEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return false, fmt.Errorf("check existing admin: %w", err)
	}
	if taken {
		return false, nil
	}
	if _, err := s.Register(ctx, in); err != nil {
		return false, err
	}
	return true, nil
}
