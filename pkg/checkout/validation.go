package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
)

// ItemViolation explains why one cart line was rejected.
type ItemViolation struct {
	Index     int       `json:"index"`
	ProductID uuid.UUID `json:"product_id,omitempty"`
	Field     string    `json:"field"`
	Reason    string    `json:"reason"`
}

// NormalizeItems validates every line and drops zero-quantity ones. An empty
// result is a validation error.
func NormalizeItems(items []Item, maxItems int) ([]Item, error) {
	if maxItems > 0 && len(items) > maxItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart may contain at most %d items", maxItems))
	}

	var (
		violations []ItemViolation
		kept       = make([]Item, 0, len(items))
	)
	for i, item := range items {
		violation := func(field, reason string) {
			violations = append(violations, ItemViolation{Index: i, ProductID: item.ProductID, Field: field, Reason: reason})
		}
		switch {
		case item.ProductID == uuid.Nil:
			violation("product_id", "required")
		case item.VendorID == uuid.Nil:
			violation("vendor_id", "required")
		case item.Price.IsNegative():
			violation("price", "must be zero or greater")
		case item.DiscountPercentage.IsNegative() || item.DiscountPercentage.GreaterThan(hundred):
			violation("discount_percentage", "must be between 0 and 100")
		case item.Quantity < 0:
			violation("quantity", "must be zero or greater")
		case item.Quantity == 0:
			continue
		default:
			kept = append(kept, item)
		}
	}

	if len(violations) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%d cart item(s) are invalid", len(violations))).
			WithDetails(map[string]any{"violations": violations})
	}
	if len(kept) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	return kept, nil
}
