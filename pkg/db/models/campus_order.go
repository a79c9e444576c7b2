package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unicampus/campus-backend/pkg/enums"
)

// CampusOrder is one vendor's share of a student checkout.
type CampusOrder struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CheckoutID     uuid.UUID           `gorm:"column:checkout_id;type:uuid;not null"`
	StudentID      uuid.UUID           `gorm:"column:student_id;type:uuid;not null"`
	VendorID       uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ServiceFee     decimal.Decimal     `gorm:"column:service_fee;type:numeric(12,2);not null"`
	TotalPrice     decimal.Decimal     `gorm:"column:total_price;type:numeric(12,2);not null"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	QRCode         string              `gorm:"column:qr_code;not null;uniqueIndex"`
	Notes          *string             `gorm:"column:notes"`
	PickupDeadline time.Time           `gorm:"column:pickup_deadline;not null"`
	Status         enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'placed'"`
	CancelReason   *string             `gorm:"column:cancel_reason"`
	AcceptedAt     *time.Time          `gorm:"column:accepted_at"`
	ReadyAt        *time.Time          `gorm:"column:ready_at"`
	CompletedAt    *time.Time          `gorm:"column:completed_at"`
	CancelledAt    *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []CampusOrderItem `gorm:"foreignKey:OrderID;references:ID"`
}

// CampusOrderItem snapshots a cart line at checkout time.
type CampusOrderItem struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID          uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName        string          `gorm:"column:product_name;not null"`
	Quantity           int             `gorm:"column:quantity;not null"`
	UnitPrice          decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountPercentage decimal.Decimal `gorm:"column:discount_percentage;type:numeric(5,2);not null;default:0"`
	Subtotal           decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
}
