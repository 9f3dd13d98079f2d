package repository

import (
	"context"

	"kasuwa/internal/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	FindByID(ctx context.Context, id uint) (*domain.Product, error)
	FindByIDs(ctx context.Context, ids []uint) ([]domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error)
	CreateVariant(ctx context.Context, v *domain.ProductVariant) error
	AddImage(ctx context.Context, img *domain.ProductImage) error
	AdjustStock(ctx context.Context, productID uint, delta int) error
	CreateCategory(ctx context.Context, c *domain.Category) error
	FindCategory(ctx context.Context, id uint) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

type CartRepository interface {
	FindItems(ctx context.Context, userID uint) ([]domain.CartItem, error)
	FindItem(ctx context.Context, userID, itemID uint) (*domain.CartItem, error)
	Save(ctx context.Context, item *domain.CartItem) error
	Delete(ctx context.Context, userID, itemID uint) error
	Clear(ctx context.Context, userID uint) error
}

type OrderRepository interface {
	// PlaceOrder reserves stock, inserts the order with its items and first
	// tracking entry and removes the consumed cart lines in one transaction.
	PlaceOrder(ctx context.Context, order *domain.Order, reservations []domain.StockReservation, cartItemIDs []uint) error
	FindByID(ctx context.Context, id uint) (*domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, customerID uint, key string) (*domain.Order, error)
	Search(ctx context.Context, filter domain.OrderFilter) ([]domain.OrderSummary, int64, error)
	UpdateStatus(ctx context.Context, upd domain.OrderStatusUpdate) error
	HasDeliveredOrderWithProduct(ctx context.Context, customerID, productID uint) (bool, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	Update(ctx context.Context, upd domain.PaymentUpdate) error
	FindByID(ctx context.Context, id uint) (*domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID uint) (*domain.Payment, error)
	FindByTransactionID(ctx context.Context, txID string) (*domain.Payment, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, r *domain.Review) error
	Update(ctx context.Context, r *domain.Review) error
	FindByID(ctx context.Context, id uint) (*domain.Review, error)
	FindByProductAndCustomer(ctx context.Context, productID, customerID uint) (*domain.Review, error)
	List(ctx context.Context, productID *uint, approved bool, page, size int) ([]domain.Review, int64, error)
	ToggleVote(ctx context.Context, reviewID, userID uint, helpful bool) (*domain.Review, error)
}
