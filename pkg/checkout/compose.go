package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

// feeTier maps a cart subtotal lower bound to its flat service fee.
type feeTier struct {
	below decimal.Decimal
	fee   decimal.Decimal
}

var feeTiers = []feeTier{
	{below: decimal.NewFromInt(100), fee: decimal.NewFromInt(5)},
	{below: decimal.NewFromInt(300), fee: decimal.NewFromInt(8)},
	{below: decimal.NewFromInt(500), fee: decimal.NewFromInt(12)},
}

var topTierFee = decimal.NewFromInt(16)

// Item is one cart line as sent by the client.
type Item struct {
	ProductID          uuid.UUID       `json:"product_id"`
	VendorID           uuid.UUID       `json:"vendor_id"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Quantity           int             `json:"quantity"`
}

// Line is an item with its computed subtotal.
type Line struct {
	Item
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Group is one vendor's share of the cart.
type Group struct {
	VendorID   uuid.UUID       `json:"vendor_id"`
	Lines      []Line          `json:"lines"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	Total      decimal.Decimal `json:"total_price"`
}

// Composition is the whole cart split by vendor.
type Composition struct {
	Groups     []Group         `json:"groups"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	Total      decimal.Decimal `json:"total"`
}

// LineSubtotal is price x (1 - discount/100) x quantity, rounded half-up to cents.
func LineSubtotal(price, discount decimal.Decimal, quantity int) decimal.Decimal {
	return price.
		Mul(hundred.Sub(discount)).
		Mul(decimal.NewFromInt(int64(quantity))).
		Div(hundred).
		Round(2)
}

// ServiceFee returns the flat fee for a cart subtotal.
func ServiceFee(subtotal decimal.Decimal) decimal.Decimal {
	for _, tier := range feeTiers {
		if subtotal.LessThan(tier.below) {
			return tier.fee
		}
	}
	return topTierFee
}

// Apportion splits fee into n cent-exact parts. Leftover cents go to the first parts.
func Apportion(fee decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	cents := fee.Div(cent).Round(0).IntPart()
	base := cents / int64(n)
	remainder := cents % int64(n)

	parts := make([]decimal.Decimal, n)
	for i := range parts {
		share := base
		if int64(i) < remainder {
			share++
		}
		parts[i] = decimal.New(share, -2)
	}
	return parts
}

// GroupByVendor keeps vendors in order of first appearance.
func GroupByVendor(items []Item) [][]Item {
	index := map[uuid.UUID]int{}
	var groups [][]Item
	for _, item := range items {
		pos, ok := index[item.VendorID]
		if !ok {
			pos = len(groups)
			index[item.VendorID] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], item)
	}
	return groups
}

// Compose groups items by vendor, prices every line and spreads the service fee.
// Items must already be validated and free of zero quantities.
func Compose(items []Item) Composition {
	var comp Composition
	for _, vendorItems := range GroupByVendor(items) {
		group := Group{VendorID: vendorItems[0].VendorID, Subtotal: decimal.Zero}
		for _, item := range vendorItems {
			line := Line{Item: item, Subtotal: LineSubtotal(item.Price, item.DiscountPercentage, item.Quantity)}
			group.Lines = append(group.Lines, line)
			group.Subtotal = group.Subtotal.Add(line.Subtotal)
		}
		comp.Groups = append(comp.Groups, group)
		comp.Subtotal = comp.Subtotal.Add(group.Subtotal)
	}
	if len(comp.Groups) == 0 {
		return comp
	}

	comp.ServiceFee = ServiceFee(comp.Subtotal)
	shares := Apportion(comp.ServiceFee, len(comp.Groups))
	for i := range comp.Groups {
		comp.Groups[i].ServiceFee = shares[i]
		comp.Groups[i].Total = comp.Groups[i].Subtotal.Add(shares[i])
	}
	comp.Total = comp.Subtotal.Add(comp.ServiceFee)
	return comp
}
