package auth

import (
	"github.com/unicampus/campus-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the session pair plus the signed-in user.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RegisterRequest creates a student account. IdentityUID is only set by the session bridge.
type RegisterRequest struct {
	Email         string  `json:"email" validate:"required,email"`
	Password      string  `json:"password" validate:"required,min=8,max=128"`
	FullName      string  `json:"full_name" validate:"required,max=120"`
	StudentNumber *string `json:"student_number,omitempty" validate:"omitempty,max=32"`
	Faculty       *string `json:"faculty,omitempty" validate:"omitempty,max=120"`
	IdentityUID   *string `json:"-"`
}
