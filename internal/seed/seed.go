// Package seed loads catalog, club and voucher fixtures from YAML into the
// database. Rows get ids derived from their fixture keys so a file can be
// applied repeatedly without duplicating anything.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/unicampus/campus-backend/pkg/db/models"
)

var namespace = uuid.MustParse("6f1c4c1e-8a43-4f55-9f0e-2a8d0c1b7a90")

type Fixtures struct {
	Categories []CategoryFixture `yaml:"categories"`
	Vendors    []VendorFixture   `yaml:"vendors"`
	Clubs      []ClubFixture     `yaml:"clubs"`
	Vouchers   []VoucherFixture  `yaml:"vouchers"`
}

type CategoryFixture struct {
	Slug      string `yaml:"slug"`
	Name      string `yaml:"name"`
	SortOrder int    `yaml:"sort_order"`
}

type VendorFixture struct {
	Key         string           `yaml:"key"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Location    string           `yaml:"location"`
	Closed      bool             `yaml:"closed"`
	Products    []ProductFixture `yaml:"products"`
}

type ProductFixture struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Discount    string `yaml:"discount"`
	Unavailable bool   `yaml:"unavailable"`
}

type ClubFixture struct {
	Key         string        `yaml:"key"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Category    string        `yaml:"category"`
	MaxMembers  int           `yaml:"max_members"`
	Roles       []RoleFixture `yaml:"roles"`
}

type RoleFixture struct {
	Name  string `yaml:"name"`
	Admin bool   `yaml:"admin"`
}

type VoucherFixture struct {
	Key        string     `yaml:"key"`
	Title      string     `yaml:"title"`
	Vendor     string     `yaml:"vendor"`
	PointsCost int        `yaml:"points_cost"`
	Stock      *int       `yaml:"stock"`
	ExpiresAt  *time.Time `yaml:"expires_at"`
}

// Summary counts the rows written by Apply. Rows that already existed are not counted.
type Summary struct {
	Categories int
	Vendors    int
	Products   int
	Clubs      int
	ClubRoles  int
	Vouchers   int
}

func LoadFile(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a fixture document. Unknown keys are rejected.
func Load(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixtures
	if err := dec.Decode(&fx); err != nil {
		if err == io.EOF {
			return &fx, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixtures) validate() error {
	categories := map[string]struct{}{}
	for _, c := range fx.Categories {
		if c.Slug == "" || c.Name == "" {
			return fmt.Errorf("category requires slug and name")
		}
		if _, dup := categories[c.Slug]; dup {
			return fmt.Errorf("duplicate category %q", c.Slug)
		}
		categories[c.Slug] = struct{}{}
	}

	vendors := map[string]struct{}{}
	for _, v := range fx.Vendors {
		if v.Key == "" || v.Name == "" {
			return fmt.Errorf("vendor requires key and name")
		}
		if _, dup := vendors[v.Key]; dup {
			return fmt.Errorf("duplicate vendor %q", v.Key)
		}
		vendors[v.Key] = struct{}{}
		for _, p := range v.Products {
			if p.Name == "" {
				return fmt.Errorf("vendor %q: product requires a name", v.Key)
			}
			price, err := decimal.NewFromString(p.Price)
			if err != nil || price.IsNegative() {
				return fmt.Errorf("vendor %q product %q: invalid price %q", v.Key, p.Name, p.Price)
			}
			if p.Discount != "" {
				d, err := decimal.NewFromString(p.Discount)
				if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
					return fmt.Errorf("vendor %q product %q: invalid discount %q", v.Key, p.Name, p.Discount)
				}
			}
			if p.Category != "" {
				if _, ok := categories[p.Category]; !ok {
					return fmt.Errorf("vendor %q product %q: unknown category %q", v.Key, p.Name, p.Category)
				}
			}
		}
	}

	clubs := map[string]struct{}{}
	for _, c := range fx.Clubs {
		if c.Key == "" || c.Name == "" {
			return fmt.Errorf("club requires key and name")
		}
		if _, dup := clubs[c.Key]; dup {
			return fmt.Errorf("duplicate club %q", c.Key)
		}
		clubs[c.Key] = struct{}{}
	}

	for _, v := range fx.Vouchers {
		if v.Key == "" || v.Title == "" {
			return fmt.Errorf("voucher requires key and title")
		}
		if v.PointsCost <= 0 {
			return fmt.Errorf("voucher %q: points_cost must be positive", v.Key)
		}
		if v.Stock != nil && *v.Stock < 0 {
			return fmt.Errorf("voucher %q: stock cannot be negative", v.Key)
		}
		if v.Vendor != "" {
			if _, ok := vendors[v.Vendor]; !ok {
				return fmt.Errorf("voucher %q: unknown vendor %q", v.Key, v.Vendor)
			}
		}
	}
	return nil
}

// ID returns the stable row id for a fixture key within kind.
func ID(kind string, parts ...string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(kind+":"+strings.Join(parts, "/")))
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Apply writes every fixture inside a single transaction.
func Apply(ctx context.Context, runner txRunner, fx *Fixtures) (Summary, error) {
	var summary Summary
	err := runner.WithTx(ctx, func(tx *gorm.DB) error {
		summary = Summary{}
		tx = tx.WithContext(ctx)

		for _, c := range fx.Categories {
			n, err := insert(tx, &models.StoreCategory{
				ID:        ID("category", c.Slug),
				Name:      c.Name,
				Slug:      c.Slug,
				SortOrder: c.SortOrder,
			})
			if err != nil {
				return fmt.Errorf("category %q: %w", c.Slug, err)
			}
			summary.Categories += n
		}

		for _, v := range fx.Vendors {
			vendorID := ID("vendor", v.Key)
			n, err := insert(tx, &models.Vendor{
				ID:          vendorID,
				Name:        v.Name,
				Description: optional(v.Description),
				Location:    optional(v.Location),
				IsOpen:      true,
			})
			if err != nil {
				return fmt.Errorf("vendor %q: %w", v.Key, err)
			}
			summary.Vendors += n
			if v.Closed {
				if err := tx.Model(&models.Vendor{}).Where("id = ?", vendorID).Update("is_open", false).Error; err != nil {
					return fmt.Errorf("vendor %q: %w", v.Key, err)
				}
			}

			for _, p := range v.Products {
				n, err := insertProduct(tx, vendorID, v.Key, p)
				if err != nil {
					return fmt.Errorf("vendor %q product %q: %w", v.Key, p.Name, err)
				}
				summary.Products += n
			}
		}

		for _, c := range fx.Clubs {
			clubID := ID("club", c.Key)
			n, err := insert(tx, &models.Club{
				ID:          clubID,
				Name:        c.Name,
				Description: optional(c.Description),
				Category:    optional(c.Category),
				MaxMembers:  c.MaxMembers,
				IsActive:    true,
			})
			if err != nil {
				return fmt.Errorf("club %q: %w", c.Key, err)
			}
			summary.Clubs += n
			for _, role := range c.Roles {
				n, err := insert(tx, &models.ClubRole{
					ID:      ID("club_role", c.Key, role.Name),
					ClubID:  clubID,
					Name:    role.Name,
					IsAdmin: role.Admin,
				})
				if err != nil {
					return fmt.Errorf("club %q role %q: %w", c.Key, role.Name, err)
				}
				summary.ClubRoles += n
			}
		}

		for _, v := range fx.Vouchers {
			voucher := &models.Voucher{
				ID:         ID("voucher", v.Key),
				Title:      v.Title,
				PointsCost: v.PointsCost,
				Remaining:  v.Stock,
				IsActive:   true,
				ExpiresAt:  v.ExpiresAt,
			}
			if v.Vendor != "" {
				vendorID := ID("vendor", v.Vendor)
				voucher.VendorID = &vendorID
			}
			n, err := insert(tx, voucher)
			if err != nil {
				return fmt.Errorf("voucher %q: %w", v.Key, err)
			}
			summary.Vouchers += n
		}
		return nil
	})
	return summary, err
}

func insertProduct(tx *gorm.DB, vendorID uuid.UUID, vendorKey string, p ProductFixture) (int, error) {
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return 0, err
	}
	discount := decimal.Zero
	if p.Discount != "" {
		if discount, err = decimal.NewFromString(p.Discount); err != nil {
			return 0, err
		}
	}
	product := &models.Product{
		ID:                 ID("product", vendorKey, p.Name),
		VendorID:           vendorID,
		Name:               p.Name,
		Description:        optional(p.Description),
		Price:              price,
		DiscountPercentage: discount,
		IsAvailable:        true,
	}
	if p.Category != "" {
		categoryID := ID("category", p.Category)
		product.CategoryID = &categoryID
	}
	n, err := insert(tx, product)
	if err != nil {
		return 0, err
	}
	if p.Unavailable {
		err = tx.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_available", false).Error
	}
	return n, err
}

func insert(tx *gorm.DB, row any) (int, error) {
	res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).Create(row)
	return int(res.RowsAffected), res.Error
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
