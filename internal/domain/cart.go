package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID        uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint            `json:"userId" gorm:"not null;index"`
	ProductID uint            `json:"productId" gorm:"not null;index"`
	VariantID *uint           `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Variant   *ProductVariant `json:"variant,omitempty" gorm:"foreignKey:VariantID"`
	CreatedAt time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

// UnitPrice resolves the live price; it is zero when the product is not loaded.
func (c CartItem) UnitPrice() decimal.Decimal {
	if c.Product == nil {
		return decimal.Zero
	}
	return c.Product.UnitPrice(c.Variant)
}

func (c CartItem) LineTotal() decimal.Decimal {
	return c.UnitPrice().Mul(decimal.NewFromInt(int64(c.Quantity)))
}

func (c CartItem) SameLine(productID uint, variantID *uint) bool {
	if c.ProductID != productID {
		return false
	}
	if c.VariantID == nil || variantID == nil {
		return c.VariantID == nil && variantID == nil
	}
	return *c.VariantID == *variantID
}

type CartSummary struct {
	Items       []CartItem      `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

func Summarize(items []CartItem) CartSummary {
	s := CartSummary{Items: items, TotalAmount: decimal.Zero}
	if s.Items == nil {
		s.Items = []CartItem{}
	}
	for _, it := range items {
		s.TotalItems += it.Quantity
		s.TotalAmount = s.TotalAmount.Add(it.LineTotal())
	}
	return s
}

type CartItemValidation struct {
	CartItemID  uint   `json:"cartItemId"`
	ProductID   uint   `json:"productId"`
	VariantID   *uint  `json:"variantId,omitempty"`
	ProductName string `json:"productName"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	IsValid     bool   `json:"isValid"`
	Reason      string `json:"reason,omitempty"`
}

type CartValidation struct {
	Items   []CartItemValidation `json:"items"`
	IsValid bool                 `json:"isValid"`
}

// Issues returns the invalid lines in checkout error form.
func (v CartValidation) Issues() []LineIssue {
	var out []LineIssue
	for _, it := range v.Items {
		if it.IsValid {
			continue
		}
		out = append(out, LineIssue{
			CartItemID:  it.CartItemID,
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			Requested:   it.Requested,
			Available:   it.Available,
			Reason:      it.Reason,
		})
	}
	return out
}

// ValidateCart checks every line against the live product data loaded on it.
// Stock is compared against the quantity requested across all lines of the
// same product, since variants share the product's stock.
func ValidateCart(items []CartItem) CartValidation {
	perProduct := make(map[uint]int)
	for _, it := range items {
		perProduct[it.ProductID] += it.Quantity
	}

	result := CartValidation{Items: make([]CartItemValidation, 0, len(items)), IsValid: true}
	for _, it := range items {
		v := CartItemValidation{
			CartItemID: it.ID,
			ProductID:  it.ProductID,
			VariantID:  it.VariantID,
			Requested:  it.Quantity,
			IsValid:    true,
		}
		switch {
		case it.Quantity < 1:
			v.IsValid, v.Reason = false, ReasonInvalidQuantity
		case it.Product == nil:
			v.IsValid, v.Reason = false, ReasonProductMissing
		default:
			v.ProductName = it.Product.Name
			v.Available = it.Product.StockQuantity
			switch {
			case !it.Product.IsActive:
				v.IsValid, v.Reason = false, ReasonProductInactive
			case it.VariantID != nil && (it.Variant == nil || it.Variant.ProductID != it.ProductID):
				v.IsValid, v.Reason = false, ReasonVariantMissing
			case it.Variant != nil && !it.Variant.IsActive:
				v.IsValid, v.Reason = false, ReasonVariantInactive
			case !it.Product.CanFulfil(perProduct[it.ProductID]):
				v.IsValid, v.Reason = false, ReasonInsufficientStock
			}
		}
		if !v.IsValid {
			result.IsValid = false
		}
		result.Items = append(result.Items, v)
	}
	return result
}
