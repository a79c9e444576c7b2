package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is a campus food stall or shop.
type Vendor struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	Location    *string   `gorm:"column:location"`
	LogoURL     *string   `gorm:"column:logo_url"`
	IsOpen      bool      `gorm:"column:is_open;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// StoreCategory groups products across vendors.
type StoreCategory struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
}
