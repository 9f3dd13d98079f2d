package mysql

import (
	"fmt"
	"testing"
	"time"

	"kasuwa/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedProduct(t *testing.T, db *gorm.DB, vendorID uint, name string, price int64, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		VendorID:         vendorID,
		Name:             name,
		SKU:              fmt.Sprintf("SKU-%s-%d", name, time.Now().UnixNano()),
		Price:            decimal.NewFromInt(price),
		StockQuantity:    stock,
		IsActive:         true,
		RequiresShipping: true,
		TrackQuantity:    true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func newOrder(customerID uint, p *domain.Product, qty int) *domain.Order {
	o := &domain.Order{
		OrderNumber: domain.GenerateOrderNumber(time.Now()),
		CustomerID:  customerID,
		Status:      domain.StatusPending,
		Currency:    "NGN",
		Items:       []domain.OrderItem{domain.NewOrderItem(p, nil, qty)},
		Tracking:    []domain.OrderTracking{{Status: domain.StatusPending, Notes: "Order placed", UpdatedBy: customerID}},
	}
	if err := o.ApplyTotals(domain.Charges{Shipping: decimal.NewFromInt(1500), Tax: decimal.Zero, Discount: decimal.Zero}); err != nil {
		panic(err)
	}
	return o
}

func stockOf(t *testing.T, db *gorm.DB, productID uint) int {
	t.Helper()
	var stock int
	require.NoError(t, db.Model(&domain.Product{}).Select("stock_quantity").Where("id = ?", productID).Scan(&stock).Error)
	return stock
}
