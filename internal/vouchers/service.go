package vouchers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/internal/feed"
	"github.com/unicampus/campus-backend/internal/points"
	"github.com/unicampus/campus-backend/pkg/db"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/logger"
	"github.com/unicampus/campus-backend/pkg/outbox"
	"github.com/unicampus/campus-backend/pkg/outbox/payloads"
	"github.com/unicampus/campus-backend/pkg/security"
)

// ReferenceRedemption tags history rows written for redemptions.
const ReferenceRedemption = "voucher_redemption"

const (
	redemptionCodeLength = 10
	codeAttempts         = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type VoucherDTO struct {
	ID          uuid.UUID  `json:"id"`
	VendorID    *uuid.UUID `json:"vendor_id,omitempty"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	PointsCost  int        `json:"points_cost"`
	Remaining   *int       `json:"remaining,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type RedemptionDTO struct {
	ID           uuid.UUID  `json:"id"`
	VoucherID    uuid.UUID  `json:"voucher_id"`
	VendorID     *uuid.UUID `json:"vendor_id,omitempty"`
	Title        string     `json:"title"`
	Code         string     `json:"code"`
	PointsSpent  int        `json:"points_spent"`
	BalanceAfter *int       `json:"balance_after,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Service lists vouchers and redeems them against a student's points.
type Service interface {
	ListAvailable(ctx context.Context) ([]VoucherDTO, error)
	Redeem(ctx context.Context, userID, voucherID uuid.UUID) (*RedemptionDTO, error)
	MyRedemptions(ctx context.Context, userID uuid.UUID) ([]RedemptionDTO, error)
}

type ServiceParams struct {
	Repo   *Repository
	Ledger points.Ledger
	Tx     txRunner
	Outbox outboxPublisher
	Feed   feed.Publisher
	Logger *logger.Logger
}

type service struct {
	repo   *Repository
	ledger points.Ledger
	tx     txRunner
	outbox outboxPublisher
	feed   feed.Publisher
	logg   *logger.Logger
	now    func() time.Time
	code   func() (string, error)
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("vouchers repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("points ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   params.Repo,
		ledger: params.Ledger,
		tx:     params.Tx,
		outbox: params.Outbox,
		feed:   params.Feed,
		logg:   params.Logger,
		now:    time.Now,
		code:   func() (string, error) { return security.GenerateCode(redemptionCodeLength) },
	}, nil
}

func (s *service) ListAvailable(ctx context.Context) ([]VoucherDTO, error) {
	rows, err := s.repo.ListAvailable(ctx, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list vouchers")
	}
	out := make([]VoucherDTO, 0, len(rows))
	for _, v := range rows {
		out = append(out, VoucherDTO{
			ID:          v.ID,
			VendorID:    v.VendorID,
			Title:       v.Title,
			Description: v.Description,
			PointsCost:  v.PointsCost,
			Remaining:   v.Remaining,
			ExpiresAt:   v.ExpiresAt,
		})
	}
	return out, nil
}

func (s *service) MyRedemptions(ctx context.Context, userID uuid.UUID) ([]RedemptionDTO, error) {
	rows, err := s.repo.ListRedemptions(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list redemptions")
	}
	out := make([]RedemptionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, RedemptionDTO{
			ID:          row.ID,
			VoucherID:   row.VoucherID,
			VendorID:    row.VendorID,
			Title:       row.Title,
			Code:        row.Code,
			PointsSpent: row.PointsSpent,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

// Redeem takes stock, debits points and records the redemption in one
// transaction. Any failure rolls every step back.
func (s *service) Redeem(ctx context.Context, userID, voucherID uuid.UUID) (*RedemptionDTO, error) {
	if userID == uuid.Nil || voucherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and voucher id required")
	}

	var (
		redemption *models.VoucherRedemption
		voucher    *models.Voucher
		balance    int
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		var err error
		voucher, err = repo.FindByID(ctx, voucherID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load voucher")
		}
		if !voucher.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "voucher is not active")
		}
		if voucher.ExpiresAt != nil && !voucher.ExpiresAt.After(s.now()) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "voucher has expired")
		}

		taken, err := repo.TakeStock(ctx, voucher.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "take voucher stock")
		}
		if !taken {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "voucher is out of stock")
		}

		ok, after, err := ledger.Debit(ctx, userID, voucher.PointsCost)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "debit points")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient points")
		}
		balance = after

		redemption, err = s.insertRedemption(ctx, repo, voucher, userID)
		if err != nil {
			return err
		}

		refType := ReferenceRedemption
		refID := redemption.ID
		if err := ledger.Append(ctx, &models.ActivityPointsHistory{
			ID:            uuid.New(),
			UserID:        userID,
			Delta:         -voucher.PointsCost,
			Reason:        "Redeemed " + voucher.Title,
			ReferenceType: &refType,
			ReferenceID:   &refID,
			BalanceAfter:  balance,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append points history")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventVoucherRedeemed,
			AggregateType: enums.AggregateVoucherRedemption,
			AggregateID:   redemption.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleStudent)},
			Data: payloads.VoucherRedeemedEvent{
				RedemptionID: redemption.ID,
				VoucherID:    voucher.ID,
				VendorID:     voucher.VendorID,
				UserID:       userID,
				Title:        voucher.Title,
				Code:         redemption.Code,
				PointsSpent:  voucher.PointsCost,
				BalanceAfter: balance,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit voucher redeemed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	student := userID
	feed.PublishQuietly(ctx, s.feed, s.logg, feed.Change{
		Table:    feed.TableVouchers,
		Action:   feed.ActionInsert,
		RowID:    redemption.ID,
		UserID:   &student,
		VendorID: voucher.VendorID,
	})
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"voucher_id":    voucher.ID.String(),
			"redemption_id": redemption.ID.String(),
		}), "voucher.redeemed")
	}
	return &RedemptionDTO{
		ID:           redemption.ID,
		VoucherID:    voucher.ID,
		VendorID:     voucher.VendorID,
		Title:        voucher.Title,
		Code:         redemption.Code,
		PointsSpent:  redemption.PointsSpent,
		BalanceAfter: &balance,
		CreatedAt:    redemption.CreatedAt,
	}, nil
}

// insertRedemption retries on the rare code collision. Postgres aborts the
// transaction on a failed insert, so retries run inside a savepoint.
func (s *service) insertRedemption(ctx context.Context, repo *Repository, voucher *models.Voucher, userID uuid.UUID) (*models.VoucherRedemption, error) {
	for attempt := 1; attempt <= codeAttempts; attempt++ {
		code, err := s.code()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate redemption code")
		}
		redemption := &models.VoucherRedemption{
			ID:          uuid.New(),
			VoucherID:   voucher.ID,
			UserID:      userID,
			Code:        code,
			PointsSpent: voucher.PointsCost,
		}
		err = repo.db.Transaction(func(nested *gorm.DB) error {
			return repo.WithTx(nested).CreateRedemption(ctx, redemption)
		})
		if err == nil {
			return redemption, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert redemption")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique redemption code")
}
