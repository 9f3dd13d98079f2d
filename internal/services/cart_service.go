package services

import (
	"context"

	"kasuwa/internal/domain"
	"kasuwa/internal/repository"
)

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
}

func NewCartService(c repository.CartRepository, p repository.ProductRepository) *CartService {
	return &CartService{carts: c, products: p}
}

type AddCartItemInput struct {
	ProductID uint
	VariantID *uint
	Quantity  int
}

// AddItem merges the quantity into an existing (product, variant) line or
// creates a new one.
func (s *CartService) AddItem(ctx context.Context, userID uint, in AddCartItemInput) (*domain.CartItem, error) {
	if in.Quantity < 1 {
		return nil, domain.NewValidationError(domain.ReasonInvalidQuantity)
	}

	p, err := s.products.FindByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	if !p.IsActive {
		return nil, domain.ErrProductInactive
	}

	var variant *domain.ProductVariant
	if in.VariantID != nil {
		variant = p.FindVariant(*in.VariantID)
		if variant == nil {
			return nil, domain.ErrVariantNotFound
		}
		if !variant.IsActive {
			return nil, domain.ErrVariantInactive
		}
	}

	items, err := s.carts.FindItems(ctx, userID)
	if err != nil {
		return nil, err
	}

	var line *domain.CartItem
	requested := in.Quantity
	for i := range items {
		if items[i].ProductID != in.ProductID {
			continue
		}
		requested += items[i].Quantity
		if items[i].SameLine(in.ProductID, in.VariantID) {
			line = &items[i]
		}
	}
	if !p.CanFulfil(requested) {
		return nil, stockIssue(p, in.VariantID, requested)
	}

	if line == nil {
		line = &domain.CartItem{UserID: userID, ProductID: in.ProductID, VariantID: in.VariantID}
	}
	line.Quantity += in.Quantity

	if err := s.carts.Save(ctx, line); err != nil {
		logger.Error().Err(err).Msgf("Error saving cart item for user %d", userID)
		return nil, err
	}
	line.Product, line.Variant = p, variant
	return line, nil
}

// UpdateItem sets a line's quantity; zero or less removes the line and
// returns a nil item.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID uint, quantity int) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, s.RemoveItem(ctx, userID, itemID)
	}

	item, err := s.carts.FindItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrCartItemNotFound
	}
	if item.Product == nil {
		return nil, domain.ErrProductNotFound
	}

	items, err := s.carts.FindItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	requested := quantity
	for _, other := range items {
		if other.ID != item.ID && other.ProductID == item.ProductID {
			requested += other.Quantity
		}
	}
	if !item.Product.CanFulfil(requested) {
		return nil, stockIssue(item.Product, item.VariantID, requested)
	}

	item.Quantity = quantity
	if err := s.carts.Save(ctx, item); err != nil {
		logger.Error().Err(err).Msgf("Error updating cart item %d", itemID)
		return nil, err
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) error {
	return s.carts.Delete(ctx, userID, itemID)
}

func (s *CartService) Clear(ctx context.Context, userID uint) error {
	return s.carts.Clear(ctx, userID)
}

func (s *CartService) Summary(ctx context.Context, userID uint) (domain.CartSummary, error) {
	items, err := s.carts.FindItems(ctx, userID)
	if err != nil {
		return domain.CartSummary{}, err
	}
	return domain.Summarize(items), nil
}

// Validate re-checks every line against live stock and availability.
func (s *CartService) Validate(ctx context.Context, userID uint) (domain.CartValidation, error) {
	items, err := s.carts.FindItems(ctx, userID)
	if err != nil {
		return domain.CartValidation{}, err
	}
	return domain.ValidateCart(items), nil
}

func stockIssue(p *domain.Product, variantID *uint, requested int) error {
	return &domain.ItemsUnavailableError{Lines: []domain.LineIssue{{
		ProductID:   p.ID,
		VariantID:   variantID,
		ProductName: p.Name,
		Requested:   requested,
		Available:   p.StockQuantity,
		Reason:      domain.ReasonInsufficientStock,
	}}}
}
