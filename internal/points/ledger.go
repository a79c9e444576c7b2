package points

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/pagination"
)

// Ledger moves points balances and appends activity_points_history rows.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	// Credit returns gorm.ErrRecordNotFound when the user does not exist.
	Credit(ctx context.Context, userID uuid.UUID, amount int) (int, error)
	// Debit only succeeds when the balance covers amount; false means it did not.
	Debit(ctx context.Context, userID uuid.UUID, amount int) (bool, int, error)
	Append(ctx context.Context, entry *models.ActivityPointsHistory) error
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.ActivityPointsHistory, string, error)
	CreateEngagement(ctx context.Context, engagement *models.Engagement) error
}

type ledger struct {
	db *gorm.DB
}

// NewLedger returns a points ledger bound to the provided database.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{db: tx}
}

func (l *ledger) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var user models.User
	if err := l.db.WithContext(ctx).Select("id", "points_balance").First(&user, "id = ?", userID).Error; err != nil {
		return 0, err
	}
	return user.PointsBalance, nil
}

func (l *ledger) Credit(ctx context.Context, userID uuid.UUID, amount int) (int, error) {
	res := l.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("points_balance", gorm.Expr("points_balance + ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return l.Balance(ctx, userID)
}

func (l *ledger) Debit(ctx context.Context, userID uuid.UUID, amount int) (bool, int, error) {
	res := l.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND points_balance >= ?", userID, amount).
		Update("points_balance", gorm.Expr("points_balance - ?", amount))
	if res.Error != nil {
		return false, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return false, 0, nil
	}
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	return true, balance, nil
}

func (l *ledger) Append(ctx context.Context, entry *models.ActivityPointsHistory) error {
	return l.db.WithContext(ctx).Create(entry).Error
}

func (l *ledger) History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.ActivityPointsHistory, string, error) {
	cursor, err := pagination.Decode(pagination.KindPoints, params.Cursor)
	if err != nil {
		return nil, "", err
	}

	var rows []models.ActivityPointsHistory
	err = l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Scopes(pagination.Keyset(cursor, params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}
	rows, next := pagination.Trim(pagination.KindPoints, rows, params.Limit, func(h models.ActivityPointsHistory) (time.Time, uuid.UUID) {
		return h.CreatedAt, h.ID
	})
	return rows, next, nil
}

func (l *ledger) CreateEngagement(ctx context.Context, engagement *models.Engagement) error {
	return l.db.WithContext(ctx).Create(engagement).Error
}
