package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentCompleted         PaymentStatus = "completed"
	PaymentFailed            PaymentStatus = "failed"
	PaymentCancelled         PaymentStatus = "cancelled"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentProcessing, PaymentCancelled},
	PaymentProcessing:        {PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentFailed:            {PaymentProcessing},
	PaymentCompleted:         {PaymentRefunded, PaymentPartiallyRefunded},
	PaymentPartiallyRefunded: {PaymentPartiallyRefunded, PaymentRefunded},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Settled reports whether money has been captured for the payment.
func (s PaymentStatus) Settled() bool {
	return s == PaymentCompleted || s == PaymentPartiallyRefunded || s == PaymentRefunded
}

type Payment struct {
	ID                  uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID             uint            `json:"orderId" gorm:"not null;uniqueIndex"`
	Method              string          `json:"method" gorm:"size:40;not null"`
	Provider            string          `json:"provider" gorm:"size:60;not null"`
	TransactionID       *string         `json:"transactionId,omitempty" gorm:"size:120;uniqueIndex"`
	Amount              decimal.Decimal `json:"amount" gorm:"type:decimal(18,2);not null"`
	Currency            string          `json:"currency" gorm:"size:3;not null"`
	Status              PaymentStatus   `json:"status" gorm:"size:20;not null;index"`
	FailureReason       string          `json:"failureReason,omitempty" gorm:"size:500"`
	Attempts            int             `json:"attempts" gorm:"not null"`
	ChargeReference     string          `json:"chargeReference,omitempty" gorm:"size:80"`
	ProcessedDate       *time.Time      `json:"processedDate,omitempty"`
	RefundAmount        decimal.Decimal `json:"refundAmount" gorm:"type:decimal(18,2);not null"`
	RefundDate          *time.Time      `json:"refundDate,omitempty"`
	RefundReason        string          `json:"refundReason,omitempty" gorm:"size:500"`
	RefundTransactionID string          `json:"refundTransactionId,omitempty" gorm:"size:120"`
	RefundPending       decimal.Decimal `json:"refundPending" gorm:"type:decimal(18,2);not null;default:0"`
	Version             int             `json:"-" gorm:"not null"`
	CreatedAt           time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt           time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (p *Payment) transition(to PaymentStatus) error {
	if !CanTransitionPayment(p.Status, to) {
		return errors.Wrapf(ErrInvalidTransition, "payment %s -> %s", p.Status, to)
	}
	p.Status = to
	return nil
}

// StartAttempt moves a pending or failed payment into processing. The charge
// reference survives failed attempts whose outcome is unknown so the provider
// can deduplicate the retry; it is only minted when none is held.
func (p *Payment) StartAttempt(orderNumber string) error {
	if err := p.transition(PaymentProcessing); err != nil {
		return err
	}
	p.Attempts++
	p.FailureReason = ""
	if p.ChargeReference == "" {
		p.ChargeReference = fmt.Sprintf("%s-%d", orderNumber, p.Attempts)
	}
	return nil
}

func (p *Payment) MarkCompleted(transactionID string, now time.Time) error {
	if err := p.transition(PaymentCompleted); err != nil {
		return err
	}
	if transactionID != "" {
		p.TransactionID = &transactionID
	}
	p.ProcessedDate = &now
	return nil
}

// MarkFailed records an attempt whose outcome at the provider is unknown,
// such as a timeout. The charge reference is kept for the retry.
func (p *Payment) MarkFailed(reason string) error {
	if err := p.transition(PaymentFailed); err != nil {
		return err
	}
	p.FailureReason = reason
	return nil
}

// MarkDeclined records a charge the provider refused. The next attempt is a
// new charge and gets a new reference.
func (p *Payment) MarkDeclined(reason string) error {
	if err := p.MarkFailed(reason); err != nil {
		return err
	}
	p.ChargeReference = ""
	return nil
}

func (p *Payment) RefundableAmount() decimal.Decimal {
	return p.Amount.Sub(p.RefundAmount)
}

// CheckRefund validates a refund request without changing the payment.
func (p *Payment) CheckRefund(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("amount must be greater than zero")
	}
	if p.Status != PaymentCompleted && p.Status != PaymentPartiallyRefunded {
		return ErrPaymentNotRefundable
	}
	if amount.GreaterThan(p.RefundableAmount()) {
		return errors.Wrapf(ErrRefundExceedsAmount, "requested %s, remaining %s", amount, p.RefundableAmount())
	}
	return nil
}

// ClaimRefund reserves amount for a refund about to be sent to the provider.
// A payment carries at most one refund in flight.
func (p *Payment) ClaimRefund(amount decimal.Decimal) error {
	if p.RefundPending.IsPositive() {
		return errors.Wrapf(ErrRefundInProgress, "payment %d", p.ID)
	}
	if err := p.CheckRefund(amount); err != nil {
		return err
	}
	p.RefundPending = amount
	return nil
}

func (p *Payment) ReleaseRefund() {
	p.RefundPending = decimal.Zero
}

// ApplyRefund accumulates a refund; the payment is fully refunded once the
// cumulative refund equals the captured amount.
func (p *Payment) ApplyRefund(amount decimal.Decimal, reason, refundTxID string, now time.Time) error {
	if err := p.CheckRefund(amount); err != nil {
		return err
	}
	total := p.RefundAmount.Add(amount)
	next := PaymentPartiallyRefunded
	if total.Equal(p.Amount) {
		next = PaymentRefunded
	}
	if err := p.transition(next); err != nil {
		return err
	}
	p.RefundAmount = total
	p.RefundPending = decimal.Zero
	p.RefundDate = &now
	p.RefundReason = reason
	p.RefundTransactionID = refundTxID
	return nil
}

// PaymentUpdate is a payment write guarded by its version, optionally paired
// with an order status change committed in the same transaction.
type PaymentUpdate struct {
	Payment *Payment
	Version int
	Order   *OrderStatusUpdate
}
