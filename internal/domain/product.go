package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Category struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"size:120;not null"`
	Slug      string    `json:"slug" gorm:"size:140;not null;uniqueIndex"`
	ParentID  *uint     `json:"parentId,omitempty" gorm:"index"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

type Product struct {
	ID               uint             `json:"id" gorm:"primaryKey;autoIncrement"`
	VendorID         uint             `json:"vendorId" gorm:"not null;index"`
	CategoryID       *uint            `json:"categoryId,omitempty" gorm:"index"`
	Name             string           `json:"name" gorm:"size:200;not null"`
	Description      string           `json:"description" gorm:"type:text"`
	SKU              string           `json:"sku" gorm:"size:64;not null;uniqueIndex"`
	Price            decimal.Decimal  `json:"price" gorm:"type:decimal(18,2);not null"`
	StockQuantity    int              `json:"stockQuantity" gorm:"not null"`
	IsActive         bool             `json:"isActive" gorm:"not null"`
	RequiresShipping bool             `json:"requiresShipping" gorm:"not null"`
	TrackQuantity    bool             `json:"trackQuantity" gorm:"not null"`
	AllowBackorder   bool             `json:"allowBackorder" gorm:"not null"`
	Attributes       datatypes.JSON   `json:"attributes,omitempty"`
	Variants         []ProductVariant `json:"variants,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Images           []ProductImage   `json:"images,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt        time.Time        `json:"updatedAt" gorm:"autoUpdateTime"`
}

type ProductVariant struct {
	ID              uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID       uint            `json:"productId" gorm:"not null;index"`
	Name            string          `json:"name" gorm:"size:120;not null"`
	SKU             string          `json:"sku" gorm:"size:64;not null;uniqueIndex"`
	PriceAdjustment decimal.Decimal `json:"priceAdjustment" gorm:"type:decimal(18,2);not null"`
	IsActive        bool            `json:"isActive" gorm:"not null"`
	Options         datatypes.JSON  `json:"options,omitempty"`
}

type ProductImage struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID uint      `json:"productId" gorm:"not null;index"`
	URL       string    `json:"url" gorm:"size:512;not null"`
	AltText   string    `json:"altText" gorm:"size:200"`
	IsPrimary bool      `json:"isPrimary"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// Validate checks the catalog invariants of a product before it is written.
func (p *Product) Validate() error {
	verr := NewValidationError()
	if p.Name == "" {
		verr.Add("name is required")
	}
	if p.SKU == "" {
		verr.Add("sku is required")
	}
	if !p.Price.IsPositive() {
		verr.Add("price must be greater than zero")
	}
	if p.StockQuantity < 0 && !p.AllowBackorder {
		verr.Add("stockQuantity cannot be negative unless backorders are allowed")
	}
	return verr.OrNil()
}

// CanFulfil reports whether qty units can be sold from current stock.
func (p *Product) CanFulfil(qty int) bool {
	if !p.TrackQuantity || p.AllowBackorder {
		return true
	}
	return p.StockQuantity >= qty
}

// UnitPrice is the product price plus the adjustment of the chosen variant.
func (p *Product) UnitPrice(v *ProductVariant) decimal.Decimal {
	if v == nil {
		return p.Price
	}
	return p.Price.Add(v.PriceAdjustment)
}

func (p *Product) FindVariant(id uint) *ProductVariant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

func (p *Product) PrimaryImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.URL
		}
	}
	return p.Images[0].URL
}

type ProductFilter struct {
	CategoryID *uint
	VendorID   *uint
	Search     string
	ActiveOnly bool
	Page       int
	PageSize   int
}

// StockReservation is the per-product quantity a checkout removes from stock.
type StockReservation struct {
	ProductID     uint
	ProductName   string
	Quantity      int
	AllowOversell bool
}
