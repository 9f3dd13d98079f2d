package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrVariantNotFound  = errors.New("product variant not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrReviewNotFound   = errors.New("review not found")
)

var (
	ErrForbidden        = errors.New("not allowed to access this resource")
	ErrConcurrentUpdate = errors.New("resource was modified by another request")
	ErrDuplicateReview  = errors.New("customer has already reviewed this product")
)

var (
	ErrProductInactive        = errors.New("product is not available")
	ErrVariantInactive        = errors.New("product variant is not available")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrItemsUnavailable       = errors.New("one or more items are unavailable")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidTransition      = errors.New("status transition not allowed")
	ErrCancelNotAllowed       = errors.New("order can no longer be cancelled")
	ErrPriceChanged           = errors.New("prices changed since the cart was reviewed")
	ErrDiscountExceedsTotal   = errors.New("discount exceeds order total")
	ErrOrderNotPayable        = errors.New("order is not awaiting payment")
	ErrPaymentInProgress      = errors.New("a payment attempt is already in progress")
	ErrPaymentNotRefundable   = errors.New("payment cannot be refunded in its current status")
	ErrRefundExceedsAmount    = errors.New("refund exceeds remaining payment amount")
	ErrRefundInProgress       = errors.New("a refund is already in progress for this payment")
	ErrPaymentGateway         = errors.New("payment gateway request failed")
	ErrCannotVoteOwnReview    = errors.New("reviewers cannot vote on their own review")
	ErrImageStoreUnconfigured = errors.New("image uploads are not configured")
)

var notFoundErrors = []error{
	ErrProductNotFound, ErrVariantNotFound, ErrCategoryNotFound, ErrCartItemNotFound,
	ErrOrderNotFound, ErrPaymentNotFound, ErrReviewNotFound,
}

var businessRuleErrors = []error{
	ErrProductInactive, ErrVariantInactive, ErrInsufficientStock, ErrItemsUnavailable,
	ErrEmptyCart, ErrInvalidTransition, ErrCancelNotAllowed, ErrPriceChanged,
	ErrDiscountExceedsTotal, ErrOrderNotPayable, ErrPaymentInProgress,
	ErrPaymentNotRefundable, ErrRefundExceedsAmount, ErrRefundInProgress, ErrCannotVoteOwnReview,
	ErrImageStoreUnconfigured,
}

func IsNotFound(err error) bool {
	return matchesAny(err, notFoundErrors)
}

func IsBusinessRule(err error) bool {
	return matchesAny(err, businessRuleErrors)
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ValidationError carries field level messages for malformed input.
type ValidationError struct {
	Fields []string
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Add appends a message; callers check Empty before returning the error.
func (e *ValidationError) Add(format string, args ...any) {
	e.Fields = append(e.Fields, fmt.Sprintf(format, args...))
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// OrNil returns nil when no message was added.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// LineIssue describes why a single cart or checkout line cannot be fulfilled.
type LineIssue struct {
	CartItemID  uint   `json:"cartItemId,omitempty"`
	ProductID   uint   `json:"productId"`
	VariantID   *uint  `json:"variantId,omitempty"`
	ProductName string `json:"productName"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	Reason      string `json:"reason"`
}

func (l LineIssue) String() string {
	name := l.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", l.ProductID)
	}
	return fmt.Sprintf("%s: %s (requested %d, available %d)", name, l.Reason, l.Requested, l.Available)
}

// ItemsUnavailableError rejects a whole checkout and lists every offending line.
type ItemsUnavailableError struct {
	Lines []LineIssue
}

func (e *ItemsUnavailableError) Error() string {
	msgs := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		msgs = append(msgs, l.String())
	}
	return ErrItemsUnavailable.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ItemsUnavailableError) Is(target error) bool {
	if target == ErrItemsUnavailable {
		return true
	}
	if target == ErrInsufficientStock {
		for _, l := range e.Lines {
			if l.Reason == ReasonInsufficientStock {
				return true
			}
		}
	}
	return false
}

const (
	ReasonInsufficientStock = "insufficient stock"
	ReasonProductMissing    = "product no longer exists"
	ReasonProductInactive   = "product is not available"
	ReasonVariantMissing    = "variant no longer exists"
	ReasonVariantInactive   = "variant is not available"
	ReasonInvalidQuantity   = "quantity must be at least 1"
)
