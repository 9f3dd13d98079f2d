package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
	StatusReturned   OrderStatus = "returned"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusProcessing, StatusShipped, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusReturned},
	StatusDelivered:  {StatusReturned, StatusRefunded},
	StatusReturned:   {StatusRefunded},
	StatusCancelled:  {StatusRefunded},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded, StatusReturned:
		return true
	}
	return false
}

func (s OrderStatus) Cancellable() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusProcessing
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	ID                 uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber        string          `json:"orderNumber" gorm:"size:40;not null;uniqueIndex"`
	CustomerID         uint            `json:"customerId" gorm:"not null;index;uniqueIndex:idx_order_customer_idem,priority:1"`
	Status             OrderStatus     `json:"status" gorm:"size:20;not null;index"`
	Subtotal           decimal.Decimal `json:"subtotal" gorm:"type:decimal(18,2);not null"`
	ShippingCost       decimal.Decimal `json:"shippingCost" gorm:"type:decimal(18,2);not null"`
	TaxAmount          decimal.Decimal `json:"taxAmount" gorm:"type:decimal(18,2);not null"`
	DiscountAmount     decimal.Decimal `json:"discountAmount" gorm:"type:decimal(18,2);not null"`
	Total              decimal.Decimal `json:"total" gorm:"type:decimal(18,2);not null;index"`
	Currency           string          `json:"currency" gorm:"size:3;not null"`
	ShippingMethod     string          `json:"shippingMethod" gorm:"size:40"`
	ShippingAddress    string          `json:"shippingAddress" gorm:"type:text"`
	BillingAddress     string          `json:"billingAddress" gorm:"type:text"`
	Notes              string          `json:"notes,omitempty" gorm:"type:text"`
	TrackingNumber     string          `json:"trackingNumber,omitempty" gorm:"size:100"`
	IdempotencyKey     *string         `json:"-" gorm:"size:64;uniqueIndex:idx_order_customer_idem,priority:2"`
	ShippedDate        *time.Time      `json:"shippedDate,omitempty"`
	ActualDeliveryDate *time.Time      `json:"actualDeliveryDate,omitempty"`
	CancelledDate      *time.Time      `json:"cancelledDate,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty" gorm:"size:500"`
	Version            int             `json:"-" gorm:"not null"`
	Items              []OrderItem     `json:"items" gorm:"constraint:OnDelete:CASCADE"`
	Tracking           []OrderTracking `json:"tracking,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Payment            *Payment        `json:"payment,omitempty"`
	CreatedAt          time.Time       `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt          time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

// ProductSnapshot freezes the catalog data a line was sold with.
type ProductSnapshot struct {
	ProductName string `json:"productName" gorm:"size:200;not null"`
	ProductSKU  string `json:"productSku" gorm:"size:64"`
	VariantName string `json:"variantName,omitempty" gorm:"size:120"`
	ImageURL    string `json:"imageUrl,omitempty" gorm:"size:512"`
}

type OrderItem struct {
	ID         uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID    uint            `json:"orderId" gorm:"not null;index"`
	ProductID  uint            `json:"productId" gorm:"not null;index"`
	VendorID   uint            `json:"vendorId" gorm:"not null;index"`
	VariantID  *uint           `json:"variantId,omitempty"`
	Quantity   int             `json:"quantity" gorm:"not null"`
	UnitPrice  decimal.Decimal `json:"unitPrice" gorm:"type:decimal(18,2);not null"`
	TotalPrice decimal.Decimal `json:"totalPrice" gorm:"type:decimal(18,2);not null"`
	ProductSnapshot
	StockReserved bool `json:"-" gorm:"not null"`
}

// NewOrderItem snapshots a product line at its current price.
func NewOrderItem(p *Product, v *ProductVariant, qty int) OrderItem {
	unit := p.UnitPrice(v)
	item := OrderItem{
		ProductID:  p.ID,
		VendorID:   p.VendorID,
		Quantity:   qty,
		UnitPrice:  unit,
		TotalPrice: unit.Mul(decimal.NewFromInt(int64(qty))),
		ProductSnapshot: ProductSnapshot{
			ProductName: p.Name,
			ProductSKU:  p.SKU,
			ImageURL:    p.PrimaryImageURL(),
		},
		StockReserved: p.TrackQuantity,
	}
	if v != nil {
		id := v.ID
		item.VariantID = &id
		item.VariantName = v.Name
		if v.SKU != "" {
			item.ProductSKU = v.SKU
		}
	}
	return item
}

type OrderTracking struct {
	ID             uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID        uint        `json:"orderId" gorm:"not null;index"`
	Status         OrderStatus `json:"status" gorm:"size:20;not null"`
	Notes          string      `json:"notes,omitempty" gorm:"size:500"`
	Location       string      `json:"location,omitempty" gorm:"size:200"`
	TrackingNumber string      `json:"trackingNumber,omitempty" gorm:"size:100"`
	UpdatedBy      uint        `json:"updatedBy"`
	CreatedAt      time.Time   `json:"createdAt" gorm:"autoCreateTime"`
}

// Charges are the business-rule amounts applied on top of the subtotal.
type Charges struct {
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
}

func (o *Order) ItemsSubtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.TotalPrice)
	}
	return subtotal
}

// ApplyTotals recomputes every money field from the line items.
func (o *Order) ApplyTotals(ch Charges) error {
	subtotal := o.ItemsSubtotal()
	gross := subtotal.Add(ch.Shipping).Add(ch.Tax)
	if ch.Discount.GreaterThan(gross) {
		return ErrDiscountExceedsTotal
	}
	o.Subtotal = subtotal
	o.ShippingCost = ch.Shipping
	o.TaxAmount = ch.Tax
	o.DiscountAmount = ch.Discount
	o.Total = gross.Sub(ch.Discount)
	return nil
}

// Transition moves the order to the next status and stamps the matching date.
func (o *Order) Transition(to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", o.Status, to)
	}
	o.Status = to
	switch to {
	case StatusShipped:
		o.ShippedDate = &now
	case StatusDelivered:
		o.ActualDeliveryDate = &now
	case StatusCancelled:
		o.CancelledDate = &now
	}
	return nil
}

// Reservations aggregates the stock each reserved line took, per product.
func (o *Order) Reservations() []StockReservation {
	index := make(map[uint]int)
	var out []StockReservation
	for _, it := range o.Items {
		if !it.StockReserved {
			continue
		}
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, StockReservation{ProductID: it.ProductID, ProductName: it.ProductName, Quantity: it.Quantity})
	}
	return out
}

func (o *Order) HasVendor(vendorID uint) bool {
	for _, it := range o.Items {
		if it.VendorID == vendorID {
			return true
		}
	}
	return false
}

func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// GenerateOrderNumber returns KSW-YYYYMMDD-XXXXXXXX.
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("KSW-%s-%s", now.UTC().Format("20060102"), suffix)
}

// OrderStatusUpdate is a status write guarded by the version it was read at.
type OrderStatusUpdate struct {
	Order   *Order
	Version int
	Entry   OrderTracking
	Restock []StockReservation
}

// OrderSummary is the list projection returned by order search.
type OrderSummary struct {
	ID          uint            `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	CustomerID  uint            `json:"customerId"`
	Status      OrderStatus     `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	ItemCount   int             `json:"itemCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type OrderSortField string

const (
	SortByDate   OrderSortField = "date"
	SortByAmount OrderSortField = "amount"
	SortByStatus OrderSortField = "status"
)

type OrderFilter struct {
	OrderNumber string
	Status      OrderStatus
	CustomerID  *uint
	VendorID    *uint
	From        *time.Time
	To          *time.Time
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
	SortBy      OrderSortField
	SortDesc    bool
	Page        int
	PageSize    int
}

func (f *OrderFilter) Normalize() {
	f.Page, f.PageSize = NormalizePage(f.Page, f.PageSize)
	switch f.SortBy {
	case SortByDate, SortByAmount, SortByStatus:
	default:
		f.SortBy = SortByDate
		f.SortDesc = true
	}
}

type CheckoutLine struct {
	ProductID uint  `json:"productId"`
	VariantID *uint `json:"variantId,omitempty"`
	Quantity  int   `json:"quantity"`
}

type CheckoutRequest struct {
	Items            []CheckoutLine
	ShippingAddress  string
	BillingAddress   string
	ShippingMethod   string
	Notes            string
	IdempotencyKey   string
	ExpectedSubtotal *decimal.Decimal
}

func (r *CheckoutRequest) Validate() error {
	verr := NewValidationError()
	if strings.TrimSpace(r.ShippingAddress) == "" {
		verr.Add("shippingAddress is required")
	}
	if strings.TrimSpace(r.ShippingMethod) == "" {
		verr.Add("shippingMethod is required")
	}
	if len(r.IdempotencyKey) > 64 {
		verr.Add("idempotencyKey must be at most 64 characters")
	}
	for i, l := range r.Items {
		if l.Quantity < 1 {
			verr.Add("items[%d].quantity must be at least 1", i)
		}
		if l.ProductID == 0 {
			verr.Add("items[%d].productId is required", i)
		}
	}
	return verr.OrNil()
}
