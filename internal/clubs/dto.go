package clubs

import (
	"time"

	"github.com/google/uuid"

	"github.com/unicampus/campus-backend/pkg/db/models"
)

// ClubDTO is the transport shape for a club with its current head count.
type ClubDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	LogoURL     *string   `json:"logo_url,omitempty"`
	MaxMembers  int       `json:"max_members"`
	MemberCount int64     `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// MembershipDTO is a raw membership record.
type MembershipDTO struct {
	ID       uuid.UUID  `json:"id"`
	ClubID   uuid.UUID  `json:"club_id"`
	UserID   uuid.UUID  `json:"user_id"`
	RoleID   *uuid.UUID `json:"role_id,omitempty"`
	JoinedAt time.Time  `json:"joined_at"`
}

// MembershipWithClub includes basic club metadata plus the member's role.
type MembershipWithClub struct {
	MembershipID uuid.UUID  `json:"membership_id"`
	ClubID       uuid.UUID  `json:"club_id"`
	ClubName     string     `json:"club_name"`
	RoleID       *uuid.UUID `json:"role_id,omitempty"`
	RoleName     *string    `json:"role_name,omitempty"`
	JoinedAt     time.Time  `json:"joined_at"`
}

// MemberDTO mixes membership metadata with the member's profile for club admins.
type MemberDTO struct {
	MembershipID  uuid.UUID  `json:"membership_id"`
	UserID        uuid.UUID  `json:"user_id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	StudentNumber *string    `json:"student_number,omitempty"`
	RoleID        *uuid.UUID `json:"role_id,omitempty"`
	RoleName      *string    `json:"role_name,omitempty"`
	IsAdmin       bool       `json:"is_admin"`
	JoinedAt      time.Time  `json:"joined_at"`
}

// SetRoleInput assigns a club role; a nil RoleID clears it.
type SetRoleInput struct {
	RoleID *uuid.UUID `json:"role_id"`
}

type clubRow struct {
	models.Club
	MemberCount int64 `gorm:"column:member_count"`
}

type membershipWithClubRow struct {
	ID       uuid.UUID  `gorm:"column:id"`
	ClubID   uuid.UUID  `gorm:"column:club_id"`
	ClubName string     `gorm:"column:club_name"`
	RoleID   *uuid.UUID `gorm:"column:role_id"`
	RoleName *string    `gorm:"column:role_name"`
	JoinedAt time.Time  `gorm:"column:joined_at"`
}

type memberRow struct {
	ID            uuid.UUID  `gorm:"column:id"`
	UserID        uuid.UUID  `gorm:"column:user_id"`
	Email         string     `gorm:"column:email"`
	FullName      string     `gorm:"column:full_name"`
	StudentNumber *string    `gorm:"column:student_number"`
	RoleID        *uuid.UUID `gorm:"column:role_id"`
	RoleName      *string    `gorm:"column:role_name"`
	IsAdmin       *bool      `gorm:"column:is_admin"`
	JoinedAt      time.Time  `gorm:"column:joined_at"`
}

func clubFromRow(row clubRow) ClubDTO {
	return ClubDTO{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Category:    row.Category,
		LogoURL:     row.LogoURL,
		MaxMembers:  row.MaxMembers,
		MemberCount: row.MemberCount,
		CreatedAt:   row.CreatedAt,
	}
}

// ToDTO converts a membership model to the external DTO.
func ToDTO(m *models.ClubMembership) *MembershipDTO {
	if m == nil {
		return nil
	}
	return &MembershipDTO{
		ID:       m.ID,
		ClubID:   m.ClubID,
		UserID:   m.UserID,
		RoleID:   copyUUIDPointer(m.RoleID),
		JoinedAt: m.JoinedAt,
	}
}

func membershipsFromRows(rows []membershipWithClubRow) []MembershipWithClub {
	out := make([]MembershipWithClub, 0, len(rows))
	for _, row := range rows {
		out = append(out, MembershipWithClub{
			MembershipID: row.ID,
			ClubID:       row.ClubID,
			ClubName:     row.ClubName,
			RoleID:       copyUUIDPointer(row.RoleID),
			RoleName:     row.RoleName,
			JoinedAt:     row.JoinedAt,
		})
	}
	return out
}

func membersFromRows(rows []memberRow) []MemberDTO {
	out := make([]MemberDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, MemberDTO{
			MembershipID:  row.ID,
			UserID:        row.UserID,
			Email:         row.Email,
			FullName:      row.FullName,
			StudentNumber: row.StudentNumber,
			RoleID:        copyUUIDPointer(row.RoleID),
			RoleName:      row.RoleName,
			IsAdmin:       row.IsAdmin != nil && *row.IsAdmin,
			JoinedAt:      row.JoinedAt,
		})
	}
	return out
}

func copyUUIDPointer(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}
