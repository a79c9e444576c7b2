package helpers

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unicampus/campus-backend/pkg/checkout"
	"github.com/unicampus/campus-backend/pkg/db/models"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
)

// Mismatch reasons reported per cart line.
const (
	ReasonMissing       = "product_not_found"
	ReasonUnavailable   = "product_unavailable"
	ReasonWrongVendor   = "vendor_mismatch"
	ReasonPriceChanged  = "price_changed"
	ReasonDiscountStale = "discount_changed"
)

// CatalogMismatch describes one cart line that disagrees with the catalog.
type CatalogMismatch struct {
	ProductID       uuid.UUID        `json:"product_id"`
	Reason          string           `json:"reason"`
	CurrentPrice    *decimal.Decimal `json:"current_price,omitempty"`
	CurrentDiscount *decimal.Decimal `json:"current_discount_percentage,omitempty"`
	CurrentVendorID *uuid.UUID       `json:"current_vendor_id,omitempty"`
}

// ProductIDs returns the distinct product ids of a cart.
func ProductIDs(items []checkout.Item) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// VerifyAgainstCatalog compares each cart line with the stored product and
// returns a CONFLICT error listing every mismatch.
func VerifyAgainstCatalog(items []checkout.Item, products map[uuid.UUID]models.Product) error {
	var mismatches []CatalogMismatch
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			mismatches = append(mismatches, CatalogMismatch{ProductID: item.ProductID, Reason: ReasonMissing})
			continue
		}
		switch {
		case product.VendorID != item.VendorID:
			vendorID := product.VendorID
			mismatches = append(mismatches, CatalogMismatch{ProductID: item.ProductID, Reason: ReasonWrongVendor, CurrentVendorID: &vendorID})
		case !product.IsAvailable:
			mismatches = append(mismatches, CatalogMismatch{ProductID: item.ProductID, Reason: ReasonUnavailable})
		case !product.Price.Equal(item.Price):
			price := product.Price
			mismatches = append(mismatches, CatalogMismatch{ProductID: item.ProductID, Reason: ReasonPriceChanged, CurrentPrice: &price})
		case !product.DiscountPercentage.Equal(item.DiscountPercentage):
			discount := product.DiscountPercentage
			mismatches = append(mismatches, CatalogMismatch{ProductID: item.ProductID, Reason: ReasonDiscountStale, CurrentDiscount: &discount})
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("%d cart item(s) no longer match the catalog", len(mismatches))).
		WithDetails(map[string]any{"items": mismatches})
}

// ApplyCatalogNames fills the line names from the catalog so order items
// snapshot the stored product name.
func ApplyCatalogNames(items []checkout.Item, products map[uuid.UUID]models.Product) {
	for i := range items {
		if product, ok := products[items[i].ProductID]; ok {
			items[i].Name = product.Name
		}
	}
}
