package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/internal/repo"
	"github.com/unicampus/campus-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail expects an already lower-cased address.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIdentityUID looks up the account linked to an identity-provider subject.
func (r *Repository) FindByIdentityUID(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("identity_uid = ?", uid).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// LinkIdentity sets identity_uid only when the account has none yet.
func (r *Repository) LinkIdentity(ctx context.Context, id uuid.UUID, uid string) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ? AND identity_uid IS NULL", id).
		UpdateColumn("identity_uid", uid).Error
}

// UpdateProfile applies the non-nil fields of the input.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput, at time.Time) error {
	updates := map[string]any{"updated_at": at}
	if in.FullName != nil {
		updates["full_name"] = *in.FullName
	}
	if in.StudentNumber != nil {
		updates["student_number"] = *in.StudentNumber
	}
	if in.Faculty != nil {
		updates["faculty"] = *in.Faculty
	}
	if in.Phone != nil {
		updates["phone"] = *in.Phone
	}
	return r.UpdateByID(ctx, &models.User{}, id, updates)
}

func (r *Repository) SetCheckoutPIN(ctx context.Context, id uuid.UUID, hash string, at time.Time) error {
	return r.UpdateByID(ctx, &models.User{}, id, map[string]any{
		"checkout_pin_hash": hash,
		"updated_at":        at,
	})
}
