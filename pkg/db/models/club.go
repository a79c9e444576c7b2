package models

import (
	"time"

	"github.com/google/uuid"
)

// Club is a student organisation.
type Club struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	Category    *string   `gorm:"column:category"`
	LogoURL     *string   `gorm:"column:logo_url"`
	MaxMembers  int       `gorm:"column:max_members;not null;default:0"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

type ClubRole struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ClubID    uuid.UUID `gorm:"column:club_id;type:uuid;not null"`
	Name      string    `gorm:"column:name;not null"`
	IsAdmin   bool      `gorm:"column:is_admin;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// ClubMembership links a user to a club, optionally with a club role.
type ClubMembership struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ClubID   uuid.UUID  `gorm:"column:club_id;type:uuid;not null"`
	UserID   uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	RoleID   *uuid.UUID `gorm:"column:role_id;type:uuid"`
	JoinedAt time.Time  `gorm:"column:joined_at;autoCreateTime"`
}
