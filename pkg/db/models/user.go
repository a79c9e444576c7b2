package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/unicampus/campus-backend/pkg/enums"
)

// User is a campus account: students, vendor staff, club admins and platform admins.
type User struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email           string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash    string         `gorm:"column:password_hash;not null"`
	FullName        string         `gorm:"column:full_name;not null"`
	StudentNumber   *string        `gorm:"column:student_number"`
	Faculty         *string        `gorm:"column:faculty"`
	Phone           *string        `gorm:"column:phone"`
	Role            enums.UserRole `gorm:"column:role;type:user_role;not null;default:'student'"`
	VendorID        *uuid.UUID     `gorm:"column:vendor_id;type:uuid"`
	PointsBalance   int            `gorm:"column:points_balance;not null;default:0"`
	CheckoutPINHash *string        `gorm:"column:checkout_pin_hash"`
	IdentityUID     *string        `gorm:"column:identity_uid"`
	IsActive        bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt     *time.Time     `gorm:"column:last_login_at"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
