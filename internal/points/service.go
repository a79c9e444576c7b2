package points

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/internal/clubs"
	"github.com/unicampus/campus-backend/internal/feed"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/logger"
	"github.com/unicampus/campus-backend/pkg/outbox"
	"github.com/unicampus/campus-backend/pkg/outbox/payloads"
	"github.com/unicampus/campus-backend/pkg/pagination"
)

// ReferenceEngagement tags history rows written for engagements.
const ReferenceEngagement = "engagement"

const maxPointsPerEngagement = 1000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type clubAuthorizer interface {
	CanManage(ctx context.Context, actor clubs.Actor, clubID uuid.UUID) (bool, error)
}

type EngagementInput struct {
	UserID   uuid.UUID  `json:"user_id" validate:"required"`
	ClubID   *uuid.UUID `json:"club_id,omitempty"`
	Activity string     `json:"activity" validate:"required,max=200"`
	Points   int        `json:"points" validate:"required,gt=0"`
}

type EngagementDTO struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	ClubID       *uuid.UUID `json:"club_id,omitempty"`
	Activity     string     `json:"activity"`
	Points       int        `json:"points"`
	BalanceAfter int        `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}

type HistoryEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	Delta         int        `json:"delta"`
	Reason        string     `json:"reason"`
	ReferenceType *string    `json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID `json:"reference_id,omitempty"`
	BalanceAfter  int        `json:"balance_after"`
	CreatedAt     time.Time  `json:"created_at"`
}

type HistoryPage struct {
	Entries    []HistoryEntryDTO `json:"entries"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type BalanceDTO struct {
	Balance int `json:"balance"`
}

// Service reads balances and records engagements.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID) (*BalanceDTO, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error)
	RecordEngagement(ctx context.Context, actor clubs.Actor, input EngagementInput) (*EngagementDTO, error)
}

type ServiceParams struct {
	Ledger Ledger
	Tx     txRunner
	Outbox outboxPublisher
	Clubs  clubAuthorizer
	Feed   feed.Publisher
	Logger *logger.Logger
}

type service struct {
	ledger Ledger
	tx     txRunner
	outbox outboxPublisher
	clubs  clubAuthorizer
	feed   feed.Publisher
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("points ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Clubs == nil {
		return nil, fmt.Errorf("club authorizer required")
	}
	return &service{
		ledger: params.Ledger,
		tx:     params.Tx,
		outbox: params.Outbox,
		clubs:  params.Clubs,
		feed:   params.Feed,
		logg:   params.Logger,
	}, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceDTO, error) {
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load points balance")
	}
	return &BalanceDTO{Balance: balance}, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if _, err := pagination.Decode(pagination.KindPoints, params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.ledger.History(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list points history")
	}
	page := &HistoryPage{Entries: make([]HistoryEntryDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		page.Entries = append(page.Entries, HistoryEntryDTO{
			ID:            row.ID,
			Delta:         row.Delta,
			Reason:        row.Reason,
			ReferenceType: row.ReferenceType,
			ReferenceID:   row.ReferenceID,
			BalanceAfter:  row.BalanceAfter,
			CreatedAt:     row.CreatedAt,
		})
	}
	return page, nil
}

func (s *service) RecordEngagement(ctx context.Context, actor clubs.Actor, input EngagementInput) (*EngagementDTO, error) {
	input.Activity = strings.TrimSpace(input.Activity)
	if input.UserID == uuid.Nil || input.Activity == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id and activity are required")
	}
	if input.Points <= 0 || input.Points > maxPointsPerEngagement {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("points must be between 1 and %d", maxPointsPerEngagement))
	}
	if err := s.authorize(ctx, actor, input.ClubID); err != nil {
		return nil, err
	}

	engagement := &models.Engagement{
		ID:         uuid.New(),
		UserID:     input.UserID,
		ClubID:     input.ClubID,
		Activity:   input.Activity,
		Points:     input.Points,
		RecordedBy: actor.UserID,
	}
	var (
		balance int
		entry   *models.ActivityPointsHistory
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		if err := ledger.CreateEngagement(ctx, engagement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert engagement")
		}
		var err error
		balance, err = ledger.Credit(ctx, input.UserID, input.Points)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "credit points")
		}

		refType := ReferenceEngagement
		refID := engagement.ID
		entry = &models.ActivityPointsHistory{
			ID:            uuid.New(),
			UserID:        input.UserID,
			Delta:         input.Points,
			Reason:        input.Activity,
			ReferenceType: &refType,
			ReferenceID:   &refID,
			BalanceAfter:  balance,
		}
		if err := ledger.Append(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append points history")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPointsAwarded,
			AggregateType: enums.AggregateEngagement,
			AggregateID:   engagement.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.PointsAwardedEvent{
				EngagementID: engagement.ID,
				UserID:       input.UserID,
				ClubID:       input.ClubID,
				Activity:     input.Activity,
				Points:       input.Points,
				BalanceAfter: balance,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit points awarded")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	userID := input.UserID
	feed.PublishQuietly(ctx, s.feed, s.logg, feed.Change{
		Table:  feed.TablePoints,
		Action: feed.ActionInsert,
		RowID:  entry.ID,
		UserID: &userID,
	})
	return &EngagementDTO{
		ID:           engagement.ID,
		UserID:       engagement.UserID,
		ClubID:       engagement.ClubID,
		Activity:     engagement.Activity,
		Points:       engagement.Points,
		BalanceAfter: balance,
		CreatedAt:    engagement.CreatedAt,
	}, nil
}

// authorize allows platform admins anywhere and club admins for their own club.
func (s *service) authorize(ctx context.Context, actor clubs.Actor, clubID *uuid.UUID) error {
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}
	if clubID == nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins may record engagements without a club")
	}
	ok, err := s.clubs.CanManage(ctx, actor, *clubID)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeForbidden, "club admin role required")
	}
	return nil
}
