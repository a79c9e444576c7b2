package models

import (
	"time"

	"github.com/google/uuid"
)

// Engagement records a club activity worth points.
type Engagement struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	ClubID     *uuid.UUID `gorm:"column:club_id;type:uuid"`
	Activity   string     `gorm:"column:activity;not null"`
	Points     int        `gorm:"column:points;not null"`
	RecordedBy uuid.UUID  `gorm:"column:recorded_by;type:uuid;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Engagement) TableName() string { return "engagement" }

// ActivityPointsHistory is the append-only points ledger.
type ActivityPointsHistory struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	Delta         int        `gorm:"column:delta;not null"`
	Reason        string     `gorm:"column:reason;not null"`
	ReferenceType *string    `gorm:"column:reference_type"`
	ReferenceID   *uuid.UUID `gorm:"column:reference_id;type:uuid"`
	BalanceAfter  int        `gorm:"column:balance_after;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (ActivityPointsHistory) TableName() string { return "activity_points_history" }
