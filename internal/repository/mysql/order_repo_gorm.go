package mysql

import (
	"context"

	"kasuwa/internal/domain"
	"kasuwa/internal/repository"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) PlaceOrder(ctx context.Context, order *domain.Order, reservations []domain.StockReservation, cartItemIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, res := range reservations {
			if err := reserveStock(tx, res); err != nil {
				return err
			}
		}

		if err := tx.Omit("Payment").Create(order).Error; err != nil {
			return errors.Wrap(err, "insert order")
		}

		if len(cartItemIDs) > 0 {
			if err := tx.Where("user_id = ? AND id IN ?", order.CustomerID, cartItemIDs).
				Delete(&domain.CartItem{}).Error; err != nil {
				return errors.Wrap(err, "clear checked out cart items")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().Uint("order_id", order.ID).Str("order_number", order.OrderNumber).Msg("order placed")
	return nil
}

// reserveStock decrements stock only while enough remains, so two concurrent
// checkouts can never both take the last units.
func reserveStock(tx *gorm.DB, res domain.StockReservation) error {
	q := tx.Model(&domain.Product{}).Where("id = ?", res.ProductID)
	if !res.AllowOversell {
		q = q.Where("stock_quantity >= ?", res.Quantity)
	}
	result := q.Update("stock_quantity", gorm.Expr("stock_quantity - ?", res.Quantity))
	if result.Error != nil {
		return errors.Wrapf(result.Error, "reserve stock for product %d", res.ProductID)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var available int
	if err := tx.Model(&domain.Product{}).Select("stock_quantity").
		Where("id = ?", res.ProductID).Scan(&available).Error; err != nil {
		return errors.Wrapf(err, "read stock for product %d", res.ProductID)
	}
	return &domain.ItemsUnavailableError{Lines: []domain.LineIssue{{
		ProductID:   res.ProductID,
		ProductName: res.ProductName,
		Requested:   res.Quantity,
		Available:   available,
		Reason:      domain.ReasonInsufficientStock,
	}}}
}

func (r *orderRepo) FindByID(ctx context.Context, id uint) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Tracking", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Payment").
		First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Error().Err(err).Uint("order_id", id).Msg("find order")
		return nil, errors.Wrap(err, "find order")
	}
	return &o, nil
}

func (r *orderRepo) FindByIdempotencyKey(ctx context.Context, customerID uint, key string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Tracking").
		Where("customer_id = ? AND idempotency_key = ?", customerID, key).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find order by idempotency key")
	}
	return &o, nil
}

var orderSortColumns = map[domain.OrderSortField]string{
	domain.SortByDate:   "orders.created_at",
	domain.SortByAmount: "orders.total",
	domain.SortByStatus: "orders.status",
}

const itemCountColumn = "(SELECT COALESCE(SUM(order_items.quantity), 0) FROM order_items WHERE order_items.order_id = orders.id) AS item_count"

func (r *orderRepo) Search(ctx context.Context, f domain.OrderFilter) ([]domain.OrderSummary, int64, error) {
	f.Normalize()

	base := r.db.WithContext(ctx).Model(&domain.Order{})
	if f.OrderNumber != "" {
		base = base.Where("orders.order_number LIKE ?", "%"+f.OrderNumber+"%")
	}
	if f.Status != "" {
		base = base.Where("orders.status = ?", f.Status)
	}
	if f.CustomerID != nil {
		base = base.Where("orders.customer_id = ?", *f.CustomerID)
	}
	if f.VendorID != nil {
		base = base.Where("orders.id IN (SELECT order_items.order_id FROM order_items WHERE order_items.vendor_id = ?)", *f.VendorID)
	}
	if f.From != nil {
		base = base.Where("orders.created_at >= ?", *f.From)
	}
	if f.To != nil {
		base = base.Where("orders.created_at <= ?", *f.To)
	}
	if f.MinAmount != nil {
		base = base.Where("orders.total >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		base = base.Where("orders.total <= ?", *f.MaxAmount)
	}
	base = base.Session(&gorm.Session{})

	var (
		total int64
		out   []domain.OrderSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.Wrap(base.WithContext(gctx).Count(&total).Error, "count orders")
	})
	g.Go(func() error {
		err := base.WithContext(gctx).
			Select("orders.id, orders.order_number, orders.customer_id, orders.status, orders.total, orders.currency, orders.created_at, " + itemCountColumn).
			Order(clause.OrderByColumn{Column: clause.Column{Name: orderSortColumns[f.SortBy], Raw: true}, Desc: f.SortDesc}).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "orders.id", Raw: true}, Desc: f.SortDesc}).
			Offset(domain.Offset(f.Page, f.PageSize)).
			Limit(f.PageSize).
			Scan(&out).Error
		return errors.Wrap(err, "search orders")
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("order search")
		return nil, 0, err
	}
	return out, total, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, upd domain.OrderStatusUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyOrderStatus(tx, upd)
	})
}

// applyOrderStatus writes the status fields guarded by the version the order
// was read at, restores reserved stock and appends the tracking entry.
func applyOrderStatus(tx *gorm.DB, upd domain.OrderStatusUpdate) error {
	o := upd.Order
	result := tx.Model(&domain.Order{}).
		Where("id = ? AND version = ?", o.ID, upd.Version).
		Updates(map[string]any{
			"status":               o.Status,
			"tracking_number":      o.TrackingNumber,
			"shipped_date":         o.ShippedDate,
			"actual_delivery_date": o.ActualDeliveryDate,
			"cancelled_date":       o.CancelledDate,
			"cancellation_reason":  o.CancellationReason,
			"version":              upd.Version + 1,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "update order status")
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrConcurrentUpdate, "order %d", o.ID)
	}
	o.Version = upd.Version + 1

	for _, res := range upd.Restock {
		if err := tx.Model(&domain.Product{}).Where("id = ?", res.ProductID).
			Update("stock_quantity", gorm.Expr("stock_quantity + ?", res.Quantity)).Error; err != nil {
			return errors.Wrapf(err, "restock product %d", res.ProductID)
		}
	}

	entry := upd.Entry
	entry.OrderID = o.ID
	if err := tx.Create(&entry).Error; err != nil {
		return errors.Wrap(err, "append tracking entry")
	}
	o.Tracking = append(o.Tracking, entry)
	return nil
}

func (r *orderRepo) HasDeliveredOrderWithProduct(ctx context.Context, customerID, productID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.customer_id = ? AND orders.status = ? AND order_items.product_id = ?",
			customerID, domain.StatusDelivered, productID).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrapf(err, "check delivered orders for customer %d", customerID)
	}
	return n > 0, nil
}
