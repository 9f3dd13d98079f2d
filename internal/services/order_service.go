package services

import (
	"context"
	"strings"

	"kasuwa/internal/domain"
	rabbit "kasuwa/internal/infra/rabbitmq"
	"kasuwa/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type OrderOptions struct {
	Currency            string
	PriceDriftTolerance decimal.Decimal
}

type OrderService struct {
	orders      repository.OrderRepository
	carts       repository.CartRepository
	products    repository.ProductRepository
	charges     ChargeCalculator
	publisher   rabbit.PublisherInterface
	redisClient *redis.Client
	opts        OrderOptions
}

func NewOrderService(o repository.OrderRepository, c repository.CartRepository, p repository.ProductRepository,
	charges ChargeCalculator, pub rabbit.PublisherInterface, opts OrderOptions) *OrderService {
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	return &OrderService{
		orders:    o,
		carts:     c,
		products:  p,
		charges:   charges,
		publisher: pub,
		opts:      opts,
	}
}

func (s *OrderService) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

// Checkout converts the customer's cart, or the explicit lines of the
// request, into a pending order. Either every line is reserved and the order
// is stored, or nothing changes.
func (s *OrderService) Checkout(ctx context.Context, customerID uint, req domain.CheckoutRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.orders.FindByIdempotencyKey(ctx, customerID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	lines, cartItemIDs, err := s.resolveLines(ctx, customerID, req.Items)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if v := domain.ValidateCart(lines); !v.IsValid {
		return nil, &domain.ItemsUnavailableError{Lines: v.Issues()}
	}

	order := &domain.Order{
		CustomerID:      customerID,
		Status:          domain.StatusPending,
		Currency:        s.opts.Currency,
		ShippingMethod:  strings.ToLower(strings.TrimSpace(req.ShippingMethod)),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		BillingAddress:  strings.TrimSpace(req.BillingAddress),
		Notes:           req.Notes,
	}
	if order.BillingAddress == "" {
		order.BillingAddress = order.ShippingAddress
	}
	for _, l := range lines {
		order.Items = append(order.Items, domain.NewOrderItem(l.Product, l.Variant, l.Quantity))
	}

	charges, err := s.charges.Charges(ctx, order.ShippingMethod, order.ItemsSubtotal())
	if err != nil {
		return nil, err
	}
	if err := order.ApplyTotals(charges); err != nil {
		return nil, err
	}
	if req.ExpectedSubtotal != nil &&
		order.Subtotal.Sub(*req.ExpectedSubtotal).Abs().GreaterThan(s.opts.PriceDriftTolerance) {
		return nil, errors.Wrapf(domain.ErrPriceChanged, "expected subtotal %s, current subtotal %s",
			req.ExpectedSubtotal.StringFixed(2), order.Subtotal.StringFixed(2))
	}

	order.OrderNumber = domain.GenerateOrderNumber(utcNow())
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		order.IdempotencyKey = &key
	}
	order.Tracking = []domain.OrderTracking{{
		Status:    domain.StatusPending,
		Notes:     "Order placed",
		UpdatedBy: customerID,
	}}

	if err := s.orders.PlaceOrder(ctx, order, reservationsFor(lines), cartItemIDs); err != nil {
		var unavailable *domain.ItemsUnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		if req.IdempotencyKey != "" {
			// a concurrent request with the same key may have won the insert
			if existing, ferr := s.orders.FindByIdempotencyKey(ctx, customerID, req.IdempotencyKey); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		logger.Error().Err(err).Msgf("Error placing order for customer %d", customerID)
		return nil, err
	}

	invalidateProducts(ctx, s.redisClient, productIDs(lines)...)
	publish(ctx, s.publisher, domain.EventOrderPlaced, domain.NewOrderPlacedEvent(order))
	logger.Info().Msgf("Order %s placed by customer %d, total %s", order.OrderNumber, customerID, order.Total.StringFixed(2))

	return order, nil
}

// resolveLines loads live catalog data for the checkout lines. Cart lines
// also return their ids so the checkout transaction can consume them.
func (s *OrderService) resolveLines(ctx context.Context, customerID uint, explicit []domain.CheckoutLine) ([]domain.CartItem, []uint, error) {
	if len(explicit) == 0 {
		items, err := s.carts.FindItems(ctx, customerID)
		if err != nil {
			return nil, nil, err
		}
		ids := make([]uint, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		return items, ids, nil
	}

	ids := make([]uint, 0, len(explicit))
	for _, l := range explicit {
		ids = append(ids, l.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uint]*domain.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	lines := make([]domain.CartItem, 0, len(explicit))
	for _, l := range explicit {
		item := domain.CartItem{UserID: customerID, ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity}
		if p, ok := byID[l.ProductID]; ok {
			item.Product = p
			if l.VariantID != nil {
				item.Variant = p.FindVariant(*l.VariantID)
			}
		}
		lines = append(lines, item)
	}
	return lines, nil, nil
}

func reservationsFor(lines []domain.CartItem) []domain.StockReservation {
	index := make(map[uint]int)
	var out []domain.StockReservation
	for _, l := range lines {
		if !l.Product.TrackQuantity {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, domain.StockReservation{
			ProductID:     l.ProductID,
			ProductName:   l.Product.Name,
			Quantity:      l.Quantity,
			AllowOversell: l.Product.AllowBackorder,
		})
	}
	return out
}

func productIDs(lines []domain.CartItem) []uint {
	out := make([]uint, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.ProductID)
	}
	return out
}

func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, id uint) (*domain.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !canViewOrder(actor, o) {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

func canViewOrder(actor domain.Actor, o *domain.Order) bool {
	switch {
	case actor.IsAdmin():
		return true
	case o.CustomerID == actor.UserID:
		return true
	case actor.IsVendor():
		return o.HasVendor(actor.UserID)
	}
	return false
}

// Search pins customers to their own orders and vendors to orders that
// contain their products.
func (s *OrderService) Search(ctx context.Context, actor domain.Actor, f domain.OrderFilter) (domain.Page[domain.OrderSummary], error) {
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleVendor:
		uid := actor.UserID
		f.VendorID = &uid
	default:
		uid := actor.UserID
		f.CustomerID = &uid
	}
	if f.Status != "" && !f.Status.Valid() {
		return domain.Page[domain.OrderSummary]{}, domain.NewValidationError("status " + string(f.Status) + " is not valid")
	}

	f.Normalize()
	items, total, err := s.orders.Search(ctx, f)
	if err != nil {
		return domain.Page[domain.OrderSummary]{}, err
	}
	return domain.NewPage(items, total, f.Page, f.PageSize), nil
}

func (s *OrderService) Cancel(ctx context.Context, actor domain.Actor, id uint, reason string) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason is required")
	}

	o, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, actor, o, reason)
}

func (s *OrderService) cancel(ctx context.Context, actor domain.Actor, o *domain.Order, reason string) (*domain.Order, error) {
	if !o.Status.Cancellable() {
		return nil, errors.Wrapf(domain.ErrCancelNotAllowed, "order %s is %s", o.OrderNumber, o.Status)
	}

	from, version := o.Status, o.Version
	at := utcNow()
	if err := o.Transition(domain.StatusCancelled, at); err != nil {
		return nil, err
	}
	o.CancellationReason = reason

	restock := o.Reservations()
	err := s.orders.UpdateStatus(ctx, domain.OrderStatusUpdate{
		Order:   o,
		Version: version,
		Entry: domain.OrderTracking{
			Status:    domain.StatusCancelled,
			Notes:     reason,
			UpdatedBy: actor.UserID,
		},
		Restock: restock,
	})
	if err != nil {
		logger.Error().Err(err).Msgf("Error cancelling order %d", o.ID)
		return nil, err
	}

	ids := make([]uint, 0, len(restock))
	for _, r := range restock {
		ids = append(ids, r.ProductID)
	}
	invalidateProducts(ctx, s.redisClient, ids...)
	publish(ctx, s.publisher, domain.EventOrderCancelled, domain.OrderStatusChangedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		From:        from,
		To:          domain.StatusCancelled,
		ChangedBy:   actor.UserID,
		Reason:      reason,
		ChangedAt:   at,
	})
	return o, nil
}

type StatusUpdateInput struct {
	Status         domain.OrderStatus
	Notes          string
	TrackingNumber string
	Location       string
}

// UpdateStatus advances an order along the transition table for a vendor
// with lines in the order or an admin.
func (s *OrderService) UpdateStatus(ctx context.Context, actor domain.Actor, id uint, in StatusUpdateInput) (*domain.Order, error) {
	if !actor.IsAdmin() && !actor.IsVendor() {
		return nil, domain.ErrForbidden
	}
	if !in.Status.Valid() {
		return nil, domain.NewValidationError("status " + string(in.Status) + " is not valid")
	}

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	if actor.IsVendor() && !o.HasVendor(actor.UserID) {
		return nil, domain.ErrForbidden
	}

	if in.Status == domain.StatusCancelled {
		reason := strings.TrimSpace(in.Notes)
		if reason == "" {
			return nil, domain.NewValidationError("notes are required when cancelling an order")
		}
		return s.cancel(ctx, actor, o, reason)
	}

	from, version := o.Status, o.Version
	at := utcNow()
	if err := o.Transition(in.Status, at); err != nil {
		return nil, err
	}
	if in.TrackingNumber != "" {
		o.TrackingNumber = in.TrackingNumber
	}

	err = s.orders.UpdateStatus(ctx, domain.OrderStatusUpdate{
		Order:   o,
		Version: version,
		Entry: domain.OrderTracking{
			Status:         in.Status,
			Notes:          in.Notes,
			Location:       in.Location,
			TrackingNumber: in.TrackingNumber,
			UpdatedBy:      actor.UserID,
		},
	})
	if err != nil {
		logger.Error().Err(err).Msgf("Error updating order %d to %s", o.ID, in.Status)
		return nil, err
	}

	publish(ctx, s.publisher, domain.EventOrderStatusChanged, domain.OrderStatusChangedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		From:        from,
		To:          in.Status,
		ChangedBy:   actor.UserID,
		ChangedAt:   at,
	})
	return o, nil
}
