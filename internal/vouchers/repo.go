package vouchers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/pkg/db/models"
)

// Repository persists vouchers and redemptions.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListAvailable returns active vouchers that have not expired and still have stock.
func (r *Repository) ListAvailable(ctx context.Context, now time.Time) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("remaining IS NULL OR remaining > 0").
		Order("points_cost ASC, title ASC").
		Find(&vouchers).Error
	if err != nil {
		return nil, err
	}
	return vouchers, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.db.WithContext(ctx).First(&voucher, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// TakeStock decrements remaining when stock is left. Unlimited vouchers always succeed.
func (r *Repository) TakeStock(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND remaining IS NOT NULL AND remaining > 0", id).
		Update("remaining", gorm.Expr("remaining - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var unlimited int64
	err := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND remaining IS NULL", id).
		Count(&unlimited).Error
	if err != nil {
		return false, err
	}
	return unlimited == 1, nil
}

func (r *Repository) CreateRedemption(ctx context.Context, redemption *models.VoucherRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}

// RedemptionRow is a redemption joined with its voucher title.
type RedemptionRow struct {
	models.VoucherRedemption
	Title    string     `gorm:"column:title"`
	VendorID *uuid.UUID `gorm:"column:vendor_id"`
}

func (r *Repository) ListRedemptions(ctx context.Context, userID uuid.UUID) ([]RedemptionRow, error) {
	var rows []RedemptionRow
	err := r.db.WithContext(ctx).
		Model(&models.VoucherRedemption{}).
		Select("voucher_redemptions.*, vouchers.title, vouchers.vendor_id").
		Joins("JOIN vouchers ON vouchers.id = voucher_redemptions.voucher_id").
		Where("voucher_redemptions.user_id = ?", userID).
		Order("voucher_redemptions.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
