package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unicampus/campus-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once per vendor order written by checkout.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	CheckoutID     uuid.UUID           `json:"checkout_id"`
	StudentID      uuid.UUID           `json:"student_id"`
	VendorID       uuid.UUID           `json:"vendor_id"`
	TotalPrice     decimal.Decimal     `json:"total_price"`
	ItemCount      int                 `json:"item_count"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	PickupDeadline time.Time           `json:"pickup_deadline"`
}

// OrderStatusChangedEvent is emitted on every order state transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	StudentID uuid.UUID         `json:"student_id"`
	VendorID  uuid.UUID         `json:"vendor_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	Reason    string            `json:"reason,omitempty"`
	ChangedAt time.Time         `json:"changed_at"`
}

// PointsAwardedEvent follows a recorded engagement.
type PointsAwardedEvent struct {
	EngagementID uuid.UUID  `json:"engagement_id"`
	UserID       uuid.UUID  `json:"user_id"`
	ClubID       *uuid.UUID `json:"club_id,omitempty"`
	Activity     string     `json:"activity"`
	Points       int        `json:"points"`
	BalanceAfter int        `json:"balance_after"`
}

// VoucherRedeemedEvent follows a successful redemption.
type VoucherRedeemedEvent struct {
	RedemptionID uuid.UUID  `json:"redemption_id"`
	VoucherID    uuid.UUID  `json:"voucher_id"`
	VendorID     *uuid.UUID `json:"vendor_id,omitempty"`
	UserID       uuid.UUID  `json:"user_id"`
	Title        string     `json:"title"`
	Code         string     `json:"code"`
	PointsSpent  int        `json:"points_spent"`
	BalanceAfter int        `json:"balance_after"`
}
