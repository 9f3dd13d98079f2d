package services

import (
	"context"
	"strings"

	"kasuwa/internal/domain"
	rabbit "kasuwa/internal/infra/rabbitmq"
	"kasuwa/internal/repository"

	"github.com/pkg/errors"
)

type ReviewService struct {
	reviews   repository.ReviewRepository
	products  repository.ProductRepository
	orders    repository.OrderRepository
	publisher rabbit.PublisherInterface
}

func NewReviewService(r repository.ReviewRepository, p repository.ProductRepository,
	o repository.OrderRepository, pub rabbit.PublisherInterface) *ReviewService {
	return &ReviewService{reviews: r, products: p, orders: o, publisher: pub}
}

type CreateReviewInput struct {
	ProductID uint
	Rating    int
	Title     string
	Comment   string
}

// Create stores an unapproved review. It counts as a verified purchase when
// the customer has a delivered order containing the product.
func (s *ReviewService) Create(ctx context.Context, actor domain.Actor, in CreateReviewInput) (*domain.Review, error) {
	rev := &domain.Review{
		ProductID:  in.ProductID,
		CustomerID: actor.UserID,
		Rating:     in.Rating,
		Title:      strings.TrimSpace(in.Title),
		Comment:    strings.TrimSpace(in.Comment),
	}
	if err := rev.Validate(); err != nil {
		return nil, err
	}

	p, err := s.products.FindByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}

	existing, err := s.reviews.FindByProductAndCustomer(ctx, in.ProductID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateReview
	}

	verified, err := s.orders.HasDeliveredOrderWithProduct(ctx, actor.UserID, in.ProductID)
	if err != nil {
		return nil, err
	}
	rev.IsVerifiedPurchase = verified
	rev.IsApproved = false

	if err := s.reviews.Create(ctx, rev); err != nil {
		if errors.Is(err, domain.ErrDuplicateReview) {
			return nil, err
		}
		logger.Error().Err(err).Msgf("Error creating review for product %d", in.ProductID)
		return nil, err
	}
	return rev, nil
}

func (s *ReviewService) Moderate(ctx context.Context, actor domain.Actor, id uint, approved bool, notes string) (*domain.Review, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	rev, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rev == nil {
		return nil, domain.ErrReviewNotFound
	}

	at := utcNow()
	rev.Moderate(approved, actor.UserID, strings.TrimSpace(notes), at)
	if err := s.reviews.Update(ctx, rev); err != nil {
		logger.Error().Err(err).Msgf("Error moderating review %d", id)
		return nil, err
	}

	publish(ctx, s.publisher, domain.EventReviewModerated, domain.ReviewModeratedEvent{
		ReviewID:  rev.ID,
		ProductID: rev.ProductID,
		Approved:  approved,
		By:        actor.UserID,
		At:        at,
	})
	return rev, nil
}

// ToggleHelpful records the user's vote, withdraws it when repeated, or
// flips it when the opposite vote is cast.
func (s *ReviewService) ToggleHelpful(ctx context.Context, actor domain.Actor, id uint, helpful bool) (*domain.Review, error) {
	rev, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rev == nil || !rev.IsApproved {
		return nil, domain.ErrReviewNotFound
	}
	if rev.CustomerID == actor.UserID {
		return nil, domain.ErrCannotVoteOwnReview
	}
	return s.reviews.ToggleVote(ctx, id, actor.UserID, helpful)
}

func (s *ReviewService) ListForProduct(ctx context.Context, productID uint, page, size int) (domain.Page[domain.Review], error) {
	page, size = domain.NormalizePage(page, size)
	items, total, err := s.reviews.List(ctx, &productID, true, page, size)
	if err != nil {
		return domain.Page[domain.Review]{}, err
	}
	return domain.NewPage(items, total, page, size), nil
}

func (s *ReviewService) ListPending(ctx context.Context, actor domain.Actor, page, size int) (domain.Page[domain.Review], error) {
	if !actor.IsAdmin() {
		return domain.Page[domain.Review]{}, domain.ErrForbidden
	}
	page, size = domain.NormalizePage(page, size)
	items, total, err := s.reviews.List(ctx, nil, false, page, size)
	if err != nil {
		return domain.Page[domain.Review]{}, err
	}
	return domain.NewPage(items, total, page, size), nil
}
