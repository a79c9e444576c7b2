package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/pkg/db/models"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
)

// Service exposes the storefront read paths and vendor menu management.
type Service interface {
	ListVendors(ctx context.Context) ([]VendorDTO, error)
	GetVendor(ctx context.Context, vendorID uuid.UUID) (*VendorDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]ProductDTO, error)
	CreateProduct(ctx context.Context, vendorID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	SetVendorOpen(ctx context.Context, vendorID uuid.UUID, open bool) (*VendorDTO, error)
}

type service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) ListVendors(ctx context.Context) ([]VendorDTO, error) {
	vendors, err := s.repo.ListVendors(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list vendors")
	}
	out := make([]VendorDTO, 0, len(vendors))
	for _, v := range vendors {
		out = append(out, vendorFromModel(v))
	}
	return out, nil
}

func (s *service) GetVendor(ctx context.Context, vendorID uuid.UUID) (*VendorDTO, error) {
	vendor, err := s.repo.FindVendor(ctx, vendorID)
	if err != nil {
		return nil, notFoundOr(err, "vendor not found", "load vendor")
	}
	dto := vendorFromModel(*vendor)
	return &dto, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryFromModel(c))
	}
	return out, nil
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]ProductDTO, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, productFromModel(p))
	}
	return out, nil
}

func (s *service) CreateProduct(ctx context.Context, vendorID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	discount := decimal.Zero
	if input.DiscountPercentage != nil {
		discount = *input.DiscountPercentage
	}
	if err := validatePricing(input.Price, discount); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindVendor(ctx, vendorID); err != nil {
		return nil, notFoundOr(err, "vendor not found", "load vendor")
	}

	available := true
	if input.IsAvailable != nil {
		available = *input.IsAvailable
	}
	product := &models.Product{
		ID:                 uuid.New(),
		VendorID:           vendorID,
		CategoryID:         input.CategoryID,
		Name:               name,
		Description:        input.Description,
		Price:              input.Price.Round(2),
		DiscountPercentage: discount.Round(2),
		ImageURL:           input.ImageURL,
		IsAvailable:        available,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	dto := productFromModel(*product)
	return &dto, nil
}

func (s *service) UpdateProduct(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "load product")
	}
	// other vendors' products are invisible to this vendor
	if product.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		product.Name = name
	}
	if input.CategoryID != nil {
		product.CategoryID = input.CategoryID
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.ImageURL != nil {
		product.ImageURL = input.ImageURL
	}
	if input.IsAvailable != nil {
		product.IsAvailable = *input.IsAvailable
	}
	if input.Price != nil {
		product.Price = input.Price.Round(2)
	}
	if input.DiscountPercentage != nil {
		product.DiscountPercentage = input.DiscountPercentage.Round(2)
	}
	if err := validatePricing(product.Price, product.DiscountPercentage); err != nil {
		return nil, err
	}
	product.UpdatedAt = s.now().UTC()

	if err := s.repo.SaveProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	dto := productFromModel(*product)
	return &dto, nil
}

func (s *service) SetVendorOpen(ctx context.Context, vendorID uuid.UUID, open bool) (*VendorDTO, error) {
	if err := s.repo.SetVendorOpen(ctx, vendorID, open); err != nil {
		return nil, notFoundOr(err, "vendor not found", "update vendor status")
	}
	return s.GetVendor(ctx, vendorID)
}

func validatePricing(price, discount decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_percentage must be between 0 and 100")
	}
	return nil
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
