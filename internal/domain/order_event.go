package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventPaymentCompleted   = "payment.completed"
	EventPaymentFailed      = "payment.failed"
	EventPaymentRefunded    = "payment.refunded"
	EventReviewModerated    = "review.moderated"
)

type OrderPlacedEvent struct {
	OrderID     uint            `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	CustomerID  uint            `json:"customerId"`
	VendorIDs   []uint          `json:"vendorIds"`
	ItemCount   int             `json:"itemCount"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	seen := make(map[uint]bool)
	var vendors []uint
	for _, it := range o.Items {
		if !seen[it.VendorID] {
			seen[it.VendorID] = true
			vendors = append(vendors, it.VendorID)
		}
	}
	return OrderPlacedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		VendorIDs:   vendors,
		ItemCount:   o.ItemCount(),
		Total:       o.Total,
		Currency:    o.Currency,
		CreatedAt:   o.CreatedAt,
	}
}

type OrderStatusChangedEvent struct {
	OrderID     uint        `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	CustomerID  uint        `json:"customerId"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
	ChangedBy   uint        `json:"changedBy"`
	Reason      string      `json:"reason,omitempty"`
	ChangedAt   time.Time   `json:"changedAt"`
}

type PaymentEvent struct {
	PaymentID     uint            `json:"paymentId"`
	OrderID       uint            `json:"orderId"`
	Status        PaymentStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	RefundAmount  decimal.Decimal `json:"refundAmount"`
	TransactionID string          `json:"transactionId,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	At            time.Time       `json:"at"`
}

func NewPaymentEvent(p *Payment, reason string, at time.Time) PaymentEvent {
	evt := PaymentEvent{
		PaymentID:    p.ID,
		OrderID:      p.OrderID,
		Status:       p.Status,
		Amount:       p.Amount,
		RefundAmount: p.RefundAmount,
		Reason:       reason,
		At:           at,
	}
	if p.TransactionID != nil {
		evt.TransactionID = *p.TransactionID
	}
	return evt
}

type ReviewModeratedEvent struct {
	ReviewID  uint      `json:"reviewId"`
	ProductID uint      `json:"productId"`
	Approved  bool      `json:"approved"`
	By        uint      `json:"by"`
	At        time.Time `json:"at"`
}
