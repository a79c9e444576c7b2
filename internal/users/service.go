package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/pkg/config"
	"github.com/unicampus/campus-backend/pkg/db/models"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/security"
)

// Service serves the /me profile endpoints.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*UserDTO, error)
	SetCheckoutPIN(ctx context.Context, userID uuid.UUID, pin string) error
}

type profileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput, at time.Time) error
	SetCheckoutPIN(ctx context.Context, id uuid.UUID, hash string, at time.Time) error
}

type ServiceParams struct {
	Repo           profileRepository
	PasswordConfig config.PasswordConfig
}

type service struct {
	repo        profileRepository
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("users repository required")
	}
	return &service{
		repo:        params.Repo,
		passwordCfg: params.PasswordConfig,
		now:         time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*UserDTO, error) {
	in.FullName = trimmed(in.FullName)
	in.StudentNumber = trimmed(in.StudentNumber)
	in.Faculty = trimmed(in.Faculty)
	in.Phone = trimmed(in.Phone)
	if in.FullName != nil && *in.FullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full_name cannot be blank")
	}

	if err := s.repo.UpdateProfile(ctx, userID, in, s.now().UTC()); err != nil {
		return nil, mapLookupError(err)
	}
	return s.Get(ctx, userID)
}

func (s *service) SetCheckoutPIN(ctx context.Context, userID uuid.UUID, pin string) error {
	if !security.ValidPIN(pin) {
		return pkgerrors.New(pkgerrors.CodeValidation, "pin must be 4 to 6 digits")
	}
	hash, err := security.HashPassword(pin, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash pin")
	}
	if err := s.repo.SetCheckoutPIN(ctx, userID, hash, s.now().UTC()); err != nil {
		return mapLookupError(err)
	}
	return nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
