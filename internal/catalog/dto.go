package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unicampus/campus-backend/pkg/db/models"
)

type VendorDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	LogoURL     *string   `json:"logo_url,omitempty"`
	IsOpen      bool      `json:"is_open"`
	CreatedAt   time.Time `json:"created_at"`
}

type CategoryDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	SortOrder int       `json:"sort_order"`
}

type ProductDTO struct {
	ID                 uuid.UUID       `json:"id"`
	VendorID           uuid.UUID       `json:"vendor_id"`
	CategoryID         *uuid.UUID      `json:"category_id,omitempty"`
	Name               string          `json:"name"`
	Description        *string         `json:"description,omitempty"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	FinalPrice         decimal.Decimal `json:"final_price"`
	ImageURL           *string         `json:"image_url,omitempty"`
	IsAvailable        bool            `json:"is_available"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ProductFilter narrows product listings. Zero values mean no filter.
type ProductFilter struct {
	VendorID      *uuid.UUID
	CategoryID    *uuid.UUID
	Query         string
	OnlyAvailable bool
}

// CreateProductInput is the vendor payload for a new menu item.
type CreateProductInput struct {
	CategoryID         *uuid.UUID       `json:"category_id,omitempty"`
	Name               string           `json:"name" validate:"required,max=120"`
	Description        *string          `json:"description,omitempty" validate:"omitempty,max=1000"`
	Price              decimal.Decimal  `json:"price"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	ImageURL           *string          `json:"image_url,omitempty" validate:"omitempty,url"`
	IsAvailable        *bool            `json:"is_available,omitempty"`
}

// UpdateProductInput patches a product; nil fields are left alone.
type UpdateProductInput struct {
	CategoryID         *uuid.UUID       `json:"category_id,omitempty"`
	Name               *string          `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Description        *string          `json:"description,omitempty" validate:"omitempty,max=1000"`
	Price              *decimal.Decimal `json:"price,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	ImageURL           *string          `json:"image_url,omitempty" validate:"omitempty,url"`
	IsAvailable        *bool            `json:"is_available,omitempty"`
}

type VendorStatusInput struct {
	IsOpen *bool `json:"is_open" validate:"required"`
}

var hundred = decimal.NewFromInt(100)

// FinalPrice applies the discount and rounds half-up to cents.
func FinalPrice(price, discount decimal.Decimal) decimal.Decimal {
	return price.Mul(hundred.Sub(discount)).Div(hundred).Round(2)
}

func vendorFromModel(v models.Vendor) VendorDTO {
	return VendorDTO{
		ID:          v.ID,
		Name:        v.Name,
		Description: v.Description,
		Location:    v.Location,
		LogoURL:     v.LogoURL,
		IsOpen:      v.IsOpen,
		CreatedAt:   v.CreatedAt,
	}
}

func categoryFromModel(c models.StoreCategory) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name, Slug: c.Slug, SortOrder: c.SortOrder}
}

func productFromModel(p models.Product) ProductDTO {
	return ProductDTO{
		ID:                 p.ID,
		VendorID:           p.VendorID,
		CategoryID:         p.CategoryID,
		Name:               p.Name,
		Description:        p.Description,
		Price:              p.Price,
		DiscountPercentage: p.DiscountPercentage,
		FinalPrice:         FinalPrice(p.Price, p.DiscountPercentage),
		ImageURL:           p.ImageURL,
		IsAvailable:        p.IsAvailable,
		UpdatedAt:          p.UpdatedAt,
	}
}
