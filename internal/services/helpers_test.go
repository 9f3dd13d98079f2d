package services

import (
	"context"

	"kasuwa/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	customer = domain.Actor{UserID: 100, Role: domain.RoleCustomer}
	stranger = domain.Actor{UserID: 101, Role: domain.RoleCustomer}
	vendor   = domain.Actor{UserID: 7, Role: domain.RoleVendor}
	admin    = domain.Actor{UserID: 1, Role: domain.RoleAdmin}
)

func naira(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func uintPtr(v uint) *uint { return &v }

func newProduct(id uint, price int64, stock int) *domain.Product {
	return &domain.Product{
		ID:               id,
		VendorID:         vendor.UserID,
		Name:             "Product",
		SKU:              "SKU",
		Price:            naira(price),
		StockQuantity:    stock,
		IsActive:         true,
		RequiresShipping: true,
		TrackQuantity:    true,
	}
}

// fixedCharges returns the same shipping and tax for every checkout.
type fixedCharges struct {
	shipping, tax decimal.Decimal
}

func (f fixedCharges) Charges(context.Context, string, decimal.Decimal) (domain.Charges, error) {
	return domain.Charges{Shipping: f.shipping, Tax: f.tax, Discount: decimal.Zero}, nil
}

func pendingOrder() *domain.Order {
	return &domain.Order{
		ID:          5,
		OrderNumber: "KSW-20250101-ABCDEF12",
		CustomerID:  customer.UserID,
		Status:      domain.StatusPending,
		Currency:    "NGN",
		Total:       naira(54350),
		Version:     2,
		Items: []domain.OrderItem{
			{ID: 1, ProductID: 1, VendorID: vendor.UserID, Quantity: 2, UnitPrice: naira(3500), TotalPrice: naira(7000), StockReserved: true},
			{ID: 2, ProductID: 2, VendorID: 8, Quantity: 1, UnitPrice: naira(45000), TotalPrice: naira(45000), StockReserved: true},
		},
	}
}
