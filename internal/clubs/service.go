package clubs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/internal/feed"
	"github.com/unicampus/campus-backend/pkg/db"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor is the caller performing a club admin operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Service exposes club browsing, membership and role management.
type Service interface {
	List(ctx context.Context) ([]ClubDTO, error)
	Get(ctx context.Context, clubID uuid.UUID) (*ClubDTO, error)
	Join(ctx context.Context, userID, clubID uuid.UUID) (*MembershipDTO, error)
	Leave(ctx context.Context, userID, clubID uuid.UUID) error
	MyClubs(ctx context.Context, userID uuid.UUID) ([]MembershipWithClub, error)
	Members(ctx context.Context, actor Actor, clubID uuid.UUID) ([]MemberDTO, error)
	SetMemberRole(ctx context.Context, actor Actor, clubID, userID uuid.UUID, input SetRoleInput) (*MembershipDTO, error)
	CanManage(ctx context.Context, actor Actor, clubID uuid.UUID) (bool, error)
}

type ServiceParams struct {
	Repo           *Repository
	Tx             txRunner
	MaxMemberships int
	Feed           feed.Publisher
	Logger         *logger.Logger
}

type service struct {
	repo           *Repository
	tx             txRunner
	maxMemberships int
	feed           feed.Publisher
	logg           *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("clubs repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{
		repo:           params.Repo,
		tx:             params.Tx,
		maxMemberships: params.MaxMemberships,
		feed:           params.Feed,
		logg:           params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context) ([]ClubDTO, error) {
	clubs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list clubs")
	}
	return clubs, nil
}

func (s *service) Get(ctx context.Context, clubID uuid.UUID) (*ClubDTO, error) {
	club, err := s.repo.FindWithCount(ctx, clubID)
	if err != nil {
		return nil, mapLookupError(err, "club not found", "load club")
	}
	return club, nil
}

func (s *service) Join(ctx context.Context, userID, clubID uuid.UUID) (*MembershipDTO, error) {
	if userID == uuid.Nil || clubID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and club id required")
	}

	var created *models.ClubMembership
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		club, err := repo.LockClub(ctx, clubID)
		if err != nil {
			return mapLookupError(err, "club not found", "load club")
		}
		if !club.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
		}
		if err := repo.LockUser(ctx, userID); err != nil {
			return mapLookupError(err, "user not found", "load user")
		}

		if _, err := repo.GetMembership(ctx, userID, clubID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "already a member of this club")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load membership")
		}

		if s.maxMemberships > 0 {
			held, err := repo.CountUserMemberships(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count memberships")
			}
			if held >= int64(s.maxMemberships) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("students may join at most %d clubs", s.maxMemberships)).
					WithDetails(map[string]any{"limit": s.maxMemberships})
			}
		}
		if club.MaxMembers > 0 {
			members, err := repo.CountClubMembers(ctx, clubID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count members")
			}
			if members >= int64(club.MaxMembers) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "club is full")
			}
		}

		membership := &models.ClubMembership{ID: uuid.New(), ClubID: clubID, UserID: userID}
		if err := repo.CreateMembership(ctx, membership); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "already a member of this club")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create membership")
		}
		created = membership
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, feed.ActionInsert, created)
	return ToDTO(created), nil
}

func (s *service) Leave(ctx context.Context, userID, clubID uuid.UUID) error {
	removed, err := s.repo.DeleteMembership(ctx, userID, clubID)
	if err != nil {
		return mapLookupError(err, "membership not found", "delete membership")
	}
	s.publish(ctx, feed.ActionDelete, removed)
	return nil
}

func (s *service) MyClubs(ctx context.Context, userID uuid.UUID) ([]MembershipWithClub, error) {
	clubs, err := s.repo.ListUserClubs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list memberships")
	}
	return clubs, nil
}

func (s *service) Members(ctx context.Context, actor Actor, clubID uuid.UUID) ([]MemberDTO, error) {
	if err := s.requireManager(ctx, actor, clubID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, clubID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list members")
	}
	return members, nil
}

func (s *service) SetMemberRole(ctx context.Context, actor Actor, clubID, userID uuid.UUID, input SetRoleInput) (*MembershipDTO, error) {
	if err := s.requireManager(ctx, actor, clubID); err != nil {
		return nil, err
	}
	if input.RoleID != nil {
		role, err := s.repo.FindRole(ctx, *input.RoleID)
		if err != nil {
			return nil, mapLookupError(err, "role not found", "load role")
		}
		if role.ClubID != clubID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "role does not belong to this club")
		}
	}
	membership, err := s.repo.GetMembership(ctx, userID, clubID)
	if err != nil {
		return nil, mapLookupError(err, "membership not found", "load membership")
	}
	if err := s.repo.SetMembershipRole(ctx, membership.ID, input.RoleID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update membership role")
	}
	membership.RoleID = input.RoleID
	s.publish(ctx, feed.ActionUpdate, membership)
	return ToDTO(membership), nil
}

// CanManage reports whether the actor is a platform admin or holds an admin role in the club.
func (s *service) CanManage(ctx context.Context, actor Actor, clubID uuid.UUID) (bool, error) {
	if actor.Role == enums.UserRoleAdmin {
		return true, nil
	}
	if actor.Role != enums.UserRoleClubAdmin {
		return false, nil
	}
	ok, err := s.repo.IsClubAdmin(ctx, actor.UserID, clubID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check club admin")
	}
	return ok, nil
}

func (s *service) requireManager(ctx context.Context, actor Actor, clubID uuid.UUID) error {
	ok, err := s.CanManage(ctx, actor, clubID)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeForbidden, "club admin role required")
	}
	return nil
}

func (s *service) publish(ctx context.Context, action string, membership *models.ClubMembership) {
	userID := membership.UserID
	feed.PublishQuietly(ctx, s.feed, s.logg, feed.Change{
		Table:  feed.TableClubs,
		Action: action,
		RowID:  membership.ID,
		UserID: &userID,
	})
}

func mapLookupError(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
