package models

import (
	"time"

	"github.com/google/uuid"
)

// Voucher is a reward students buy with points. A nil Remaining means unlimited stock.
type Voucher struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID    *uuid.UUID `gorm:"column:vendor_id;type:uuid"`
	Title       string     `gorm:"column:title;not null"`
	Description *string    `gorm:"column:description"`
	PointsCost  int        `gorm:"column:points_cost;not null"`
	Remaining   *int       `gorm:"column:remaining"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

type VoucherRedemption struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	VoucherID   uuid.UUID `gorm:"column:voucher_id;type:uuid;not null"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Code        string    `gorm:"column:code;not null;uniqueIndex"`
	PointsSpent int       `gorm:"column:points_spent;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
