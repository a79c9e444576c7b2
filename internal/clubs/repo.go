package clubs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/unicampus/campus-backend/pkg/db/models"
)

const memberCountSelect = "clubs.*, (SELECT COUNT(*) FROM club_memberships cm WHERE cm.club_id = clubs.id) AS member_count"

// Repository exposes club and membership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListActive returns active clubs with their member counts.
func (r *Repository) ListActive(ctx context.Context) ([]ClubDTO, error) {
	var rows []clubRow
	err := r.db.WithContext(ctx).
		Model(&models.Club{}).
		Select(memberCountSelect).
		Where("clubs.is_active = ?", true).
		Order("clubs.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ClubDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, clubFromRow(row))
	}
	return out, nil
}

// FindWithCount returns gorm.ErrRecordNotFound when the club does not exist.
func (r *Repository) FindWithCount(ctx context.Context, clubID uuid.UUID) (*ClubDTO, error) {
	var rows []clubRow
	err := r.db.WithContext(ctx).
		Model(&models.Club{}).
		Select(memberCountSelect).
		Where("clubs.id = ?", clubID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	dto := clubFromRow(rows[0])
	return &dto, nil
}

// LockClub loads the club row FOR UPDATE so concurrent joins serialize on it.
func (r *Repository) LockClub(ctx context.Context, clubID uuid.UUID) (*models.Club, error) {
	var club models.Club
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", clubID).
		First(&club).Error
	if err != nil {
		return nil, err
	}
	return &club, nil
}

// LockUser serializes membership changes for one user.
func (r *Repository) LockUser(ctx context.Context, userID uuid.UUID) error {
	var user models.User
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", userID).
		First(&user).Error
}

func (r *Repository) CountClubMembers(ctx context.Context, clubID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ClubMembership{}).Where("club_id = ?", clubID).Count(&count).Error
	return count, err
}

func (r *Repository) CountUserMemberships(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ClubMembership{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// GetMembership retrieves a membership by user and club.
func (r *Repository) GetMembership(ctx context.Context, userID, clubID uuid.UUID) (*models.ClubMembership, error) {
	var membership models.ClubMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND club_id = ?", userID, clubID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *Repository) CreateMembership(ctx context.Context, membership *models.ClubMembership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

// DeleteMembership returns gorm.ErrRecordNotFound when the user was not a member.
func (r *Repository) DeleteMembership(ctx context.Context, userID, clubID uuid.UUID) (*models.ClubMembership, error) {
	membership, err := r.GetMembership(ctx, userID, clubID)
	if err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).Delete(&models.ClubMembership{}, "id = ?", membership.ID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return membership, nil
}

func (r *Repository) SetMembershipRole(ctx context.Context, membershipID uuid.UUID, roleID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ClubMembership{}).
		Where("id = ?", membershipID).
		Update("role_id", roleID).Error
}

func (r *Repository) FindRole(ctx context.Context, roleID uuid.UUID) (*models.ClubRole, error) {
	var role models.ClubRole
	if err := r.db.WithContext(ctx).First(&role, "id = ?", roleID).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// ListUserClubs returns the clubs a user belongs to along with the role name.
func (r *Repository) ListUserClubs(ctx context.Context, userID uuid.UUID) ([]MembershipWithClub, error) {
	var rows []membershipWithClubRow
	err := r.db.WithContext(ctx).
		Model(&models.ClubMembership{}).
		Select("club_memberships.id, club_memberships.club_id, clubs.name AS club_name, club_memberships.role_id, club_roles.name AS role_name, club_memberships.joined_at").
		Joins("JOIN clubs ON clubs.id = club_memberships.club_id").
		Joins("LEFT JOIN club_roles ON club_roles.id = club_memberships.role_id").
		Where("club_memberships.user_id = ?", userID).
		Order("clubs.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return membershipsFromRows(rows), nil
}

// ListMembers returns the club's memberships along with user metadata.
func (r *Repository) ListMembers(ctx context.Context, clubID uuid.UUID) ([]MemberDTO, error) {
	var rows []memberRow
	err := r.db.WithContext(ctx).
		Model(&models.ClubMembership{}).
		Select("club_memberships.id, club_memberships.user_id, users.email, users.full_name, users.student_number, club_memberships.role_id, club_roles.name AS role_name, club_roles.is_admin, club_memberships.joined_at").
		Joins("JOIN users ON users.id = club_memberships.user_id").
		Joins("LEFT JOIN club_roles ON club_roles.id = club_memberships.role_id").
		Where("club_memberships.club_id = ?", clubID).
		Order("club_memberships.joined_at").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return membersFromRows(rows), nil
}

// IsClubAdmin reports whether the user holds an admin role in the club.
func (r *Repository) IsClubAdmin(ctx context.Context, userID, clubID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ClubMembership{}).
		Joins("JOIN club_roles ON club_roles.id = club_memberships.role_id").
		Where("club_memberships.user_id = ? AND club_memberships.club_id = ? AND club_roles.is_admin = ?", userID, clubID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
