package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
)

// UserDTO is the transport shape that omits credentials and the PIN hash.
type UserDTO struct {
	ID             uuid.UUID      `json:"id"`
	Email          string         `json:"email"`
	FullName       string         `json:"full_name"`
	StudentNumber  *string        `json:"student_number,omitempty"`
	Faculty        *string        `json:"faculty,omitempty"`
	Phone          *string        `json:"phone,omitempty"`
	Role           enums.UserRole `json:"role"`
	VendorID       *uuid.UUID     `json:"vendor_id,omitempty"`
	PointsBalance  int            `json:"points_balance"`
	HasCheckoutPIN bool           `json:"has_checkout_pin"`
	IsActive       bool           `json:"is_active"`
	LastLoginAt    *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email         string
	PasswordHash  string
	FullName      string
	StudentNumber *string
	Faculty       *string
	Phone         *string
	Role          enums.UserRole
	VendorID      *uuid.UUID
	IdentityUID   *string
}

// UpdateProfileInput carries the editable profile fields; nil leaves a field untouched.
type UpdateProfileInput struct {
	FullName      *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=120"`
	StudentNumber *string `json:"student_number,omitempty" validate:"omitempty,max=32"`
	Faculty       *string `json:"faculty,omitempty" validate:"omitempty,max=120"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// SetPINRequest is the body of PUT /me/checkout-pin.
type SetPINRequest struct {
	PIN string `json:"pin" validate:"required,numeric,min=4,max=6"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		StudentNumber:  u.StudentNumber,
		Faculty:        u.Faculty,
		Phone:          u.Phone,
		Role:           u.Role,
		VendorID:       u.VendorID,
		PointsBalance:  u.PointsBalance,
		HasCheckoutPIN: u.CheckoutPINHash != nil && *u.CheckoutPINHash != "",
		IsActive:       u.IsActive,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleStudent
	}
	return &models.User{
		ID:            uuid.New(),
		Email:         c.Email,
		PasswordHash:  c.PasswordHash,
		FullName:      c.FullName,
		StudentNumber: c.StudentNumber,
		Faculty:       c.Faculty,
		Phone:         c.Phone,
		Role:          role,
		VendorID:      c.VendorID,
		IdentityUID:   c.IdentityUID,
		IsActive:      true,
	}
}
