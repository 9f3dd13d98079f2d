package services

import (
	"context"
	"strings"

	"kasuwa/internal/domain"

	"github.com/shopspring/decimal"
)

// ChargeCalculator supplies the shipping, tax and discount applied at checkout.
type ChargeCalculator interface {
	Charges(ctx context.Context, shippingMethod string, subtotal decimal.Decimal) (domain.Charges, error)
}

// FlatRateCharges prices shipping per method and taxes the subtotal at a fixed rate.
type FlatRateCharges struct {
	Rates   map[string]decimal.Decimal
	TaxRate decimal.Decimal
}

var _ ChargeCalculator = FlatRateCharges{}

func (f FlatRateCharges) Charges(_ context.Context, method string, subtotal decimal.Decimal) (domain.Charges, error) {
	shipping, ok := f.Rates[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		return domain.Charges{}, domain.NewValidationError("shippingMethod " + method + " is not supported")
	}
	return domain.Charges{
		Shipping: shipping,
		Tax:      subtotal.Mul(f.TaxRate).Round(2),
		Discount: decimal.Zero,
	}, nil
}
