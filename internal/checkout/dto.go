package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unicampus/campus-backend/internal/orders"
	"github.com/unicampus/campus-backend/pkg/checkout"
	"github.com/unicampus/campus-backend/pkg/enums"
)

// CheckoutInput is the client-held cart submitted at checkout.
type CheckoutInput struct {
	Items         []checkout.Item     `json:"items" validate:"required,min=1"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"required"`
	Notes         *string             `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// QuoteInput previews a cart without persisting it.
type QuoteInput struct {
	Items []checkout.Item `json:"items" validate:"required,min=1"`
}

// VerifyPINInput unlocks checkout for a student with a PIN.
type VerifyPINInput struct {
	PIN string `json:"pin" validate:"required"`
}

// CheckoutResult lists the orders written for one checkout, in vendor order.
type CheckoutResult struct {
	CheckoutID uuid.UUID         `json:"checkout_id"`
	Orders     []orders.OrderDTO `json:"orders"`
	Subtotal   decimal.Decimal   `json:"subtotal"`
	ServiceFee decimal.Decimal   `json:"service_fee"`
	Total      decimal.Decimal   `json:"total"`
}
