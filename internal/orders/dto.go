package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
)

// ListFilter narrows order listings to a student or a vendor.
type ListFilter struct {
	StudentID *uuid.UUID
	VendorID  *uuid.UUID
	Status    *enums.OrderStatus
}

type OrderItemDTO struct {
	ID                 uuid.UUID       `json:"id"`
	ProductID          uuid.UUID       `json:"product_id"`
	ProductName        string          `json:"product_name"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Subtotal           decimal.Decimal `json:"subtotal"`
}

type OrderDTO struct {
	ID             uuid.UUID           `json:"id"`
	CheckoutID     uuid.UUID           `json:"checkout_id"`
	StudentID      uuid.UUID           `json:"student_id"`
	VendorID       uuid.UUID           `json:"vendor_id"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	ServiceFee     decimal.Decimal     `json:"service_fee"`
	TotalPrice     decimal.Decimal     `json:"total_price"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	QRCode         string              `json:"qr_code,omitempty"`
	Notes          *string             `json:"notes,omitempty"`
	PickupDeadline time.Time           `json:"pickup_deadline"`
	Status         enums.OrderStatus   `json:"status"`
	CancelReason   *string             `json:"cancel_reason,omitempty"`
	AcceptedAt     *time.Time          `json:"accepted_at,omitempty"`
	ReadyAt        *time.Time          `json:"ready_at,omitempty"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	CancelledAt    *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	Items          []OrderItemDTO      `json:"items"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// FromModel maps a row to its API shape. The QR code is only shown to the student who owns the order.
func FromModel(o models.CampusOrder, includeQR bool) OrderDTO {
	dto := OrderDTO{
		ID:             o.ID,
		CheckoutID:     o.CheckoutID,
		StudentID:      o.StudentID,
		VendorID:       o.VendorID,
		Subtotal:       o.Subtotal,
		ServiceFee:     o.ServiceFee,
		TotalPrice:     o.TotalPrice,
		PaymentMethod:  o.PaymentMethod,
		Notes:          o.Notes,
		PickupDeadline: o.PickupDeadline,
		Status:         o.Status,
		CancelReason:   o.CancelReason,
		AcceptedAt:     o.AcceptedAt,
		ReadyAt:        o.ReadyAt,
		CompletedAt:    o.CompletedAt,
		CancelledAt:    o.CancelledAt,
		CreatedAt:      o.CreatedAt,
		Items:          make([]OrderItemDTO, 0, len(o.Items)),
	}
	if includeQR {
		dto.QRCode = o.QRCode
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:                 item.ID,
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
			DiscountPercentage: item.DiscountPercentage,
			Subtotal:           item.Subtotal,
		})
	}
	return dto
}
