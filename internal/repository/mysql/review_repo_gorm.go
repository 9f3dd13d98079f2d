package mysql

import (
	"context"

	"kasuwa/internal/domain"
	"kasuwa/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type reviewRepo struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) repository.ReviewRepository {
	return &reviewRepo{db: db}
}

// Create relies on the (product, customer) unique index; a concurrent
// duplicate surfaces as ErrDuplicateReview.
func (r *reviewRepo) Create(ctx context.Context, rev *domain.Review) error {
	err := r.db.WithContext(ctx).Create(rev).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrapf(domain.ErrDuplicateReview, "product %d", rev.ProductID)
	}
	return errors.Wrap(err, "create review")
}

func (r *reviewRepo) Update(ctx context.Context, rev *domain.Review) error {
	err := r.db.WithContext(ctx).Model(rev).
		Select("is_approved", "moderated_by", "moderated_at", "moderation_notes").
		Updates(rev).Error
	return errors.Wrap(err, "update review")
}

func (r *reviewRepo) FindByID(ctx context.Context, id uint) (*domain.Review, error) {
	return r.findOne(r.db.WithContext(ctx), "id = ?", id)
}

func (r *reviewRepo) FindByProductAndCustomer(ctx context.Context, productID, customerID uint) (*domain.Review, error) {
	return r.findOne(r.db.WithContext(ctx), "product_id = ? AND customer_id = ?", productID, customerID)
}

func (r *reviewRepo) findOne(db *gorm.DB, query string, args ...any) (*domain.Review, error) {
	var rev domain.Review
	if err := db.Where(query, args...).First(&rev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find review")
	}
	return &rev, nil
}

// List returns approved reviews, or reviews still awaiting moderation when
// approved is false.
func (r *reviewRepo) List(ctx context.Context, productID *uint, approved bool, page, size int) ([]domain.Review, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Review{}).Where("is_approved = ?", approved)
	if !approved {
		q = q.Where("moderated_at IS NULL")
	}
	if productID != nil {
		q = q.Where("product_id = ?", *productID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count reviews")
	}

	var out []domain.Review
	err := q.Order("helpful_count DESC, created_at DESC, id DESC").
		Offset(domain.Offset(page, size)).
		Limit(size).
		Find(&out).Error
	return out, total, errors.Wrap(err, "list reviews")
}

// ToggleVote records, flips or withdraws a user's vote and recounts helpful
// votes in the same transaction.
func (r *reviewRepo) ToggleVote(ctx context.Context, reviewID, userID uint, helpful bool) (*domain.Review, error) {
	var out *domain.Review
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vote domain.ReviewVote
		err := tx.Where("review_id = ? AND user_id = ?", reviewID, userID).First(&vote).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote = domain.ReviewVote{ReviewID: reviewID, UserID: userID, IsHelpful: helpful}
			if err := tx.Create(&vote).Error; err != nil {
				return errors.Wrap(err, "create vote")
			}
		case err != nil:
			return errors.Wrap(err, "find vote")
		case vote.IsHelpful == helpful:
			if err := tx.Delete(&vote).Error; err != nil {
				return errors.Wrap(err, "withdraw vote")
			}
		default:
			if err := tx.Model(&vote).Update("is_helpful", helpful).Error; err != nil {
				return errors.Wrap(err, "flip vote")
			}
		}

		var count int64
		if err := tx.Model(&domain.ReviewVote{}).
			Where("review_id = ? AND is_helpful = ?", reviewID, true).
			Count(&count).Error; err != nil {
			return errors.Wrap(err, "count helpful votes")
		}
		if err := tx.Model(&domain.Review{}).Where("id = ?", reviewID).
			Update("helpful_count", count).Error; err != nil {
			return errors.Wrap(err, "update helpful count")
		}

		rev, err := r.findOne(tx, "id = ?", reviewID)
		if err != nil {
			return err
		}
		if rev == nil {
			return domain.ErrReviewNotFound
		}
		out = rev
		return nil
	})
	return out, err
}
