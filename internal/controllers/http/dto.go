package http

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CreateProductRequest struct {
	CategoryID       *uint           `json:"categoryId"`
	Name             string          `json:"name" binding:"required"`
	Description      string          `json:"description"`
	SKU              string          `json:"sku" binding:"required"`
	Price            decimal.Decimal `json:"price"`
	StockQuantity    int             `json:"stockQuantity"`
	IsActive         *bool           `json:"isActive"`
	RequiresShipping *bool           `json:"requiresShipping"`
	TrackQuantity    *bool           `json:"trackQuantity"`
	AllowBackorder   bool            `json:"allowBackorder"`
	Attributes       datatypes.JSON  `json:"attributes"`
}

type UpdateProductRequest struct {
	CategoryID       *uint            `json:"categoryId"`
	Name             *string          `json:"name"`
	Description      *string          `json:"description"`
	Price            *decimal.Decimal `json:"price"`
	IsActive         *bool            `json:"isActive"`
	RequiresShipping *bool            `json:"requiresShipping"`
	TrackQuantity    *bool            `json:"trackQuantity"`
	AllowBackorder   *bool            `json:"allowBackorder"`
	Attributes       datatypes.JSON   `json:"attributes"`
}

type CreateVariantRequest struct {
	Name            string          `json:"name" binding:"required"`
	SKU             string          `json:"sku" binding:"required"`
	PriceAdjustment decimal.Decimal `json:"priceAdjustment"`
	IsActive        *bool           `json:"isActive"`
	Options         datatypes.JSON  `json:"options"`
}

type ReceiveStockRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type CreateCategoryRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID *uint  `json:"parentId"`
}

type AddCartItemRequest struct {
	ProductID uint  `json:"productId" binding:"required"`
	VariantID *uint `json:"variantId"`
	Quantity  int   `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type CheckoutItemRequest struct {
	ProductID uint  `json:"productId"`
	VariantID *uint `json:"variantId"`
	Quantity  int   `json:"quantity"`
}

type CheckoutRequest struct {
	Items            []CheckoutItemRequest `json:"items"`
	ShippingAddress  string                `json:"shippingAddress"`
	BillingAddress   string                `json:"billingAddress"`
	ShippingMethod   string                `json:"shippingMethod"`
	Notes            string                `json:"notes"`
	ExpectedSubtotal *decimal.Decimal      `json:"expectedSubtotal"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type UpdateOrderStatusRequest struct {
	Status         string `json:"status" binding:"required"`
	Notes          string `json:"notes"`
	TrackingNumber string `json:"trackingNumber"`
	Location       string `json:"location"`
}

type ProcessPaymentRequest struct {
	OrderID  uint   `json:"orderId"`
	Method   string `json:"method"`
	Provider string `json:"provider"`
}

type PaymentCallbackRequest struct {
	TransactionID string `json:"transactionId"`
	PaymentID     uint   `json:"paymentId"`
	Status        string `json:"status" binding:"required"`
	Reason        string `json:"reason"`
}

type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type CreateReviewRequest struct {
	ProductID uint   `json:"productId"`
	Rating    int    `json:"rating"`
	Title     string `json:"title"`
	Comment   string `json:"comment"`
}

type HelpfulVoteRequest struct {
	Helpful *bool `json:"helpful"`
}

type ModerateReviewRequest struct {
	Approved *bool  `json:"approved"`
	Notes    string `json:"notes"`
}
