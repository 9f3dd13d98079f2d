package mysql

import (
	"context"

	"kasuwa/internal/domain"
	"kasuwa/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cartRepo struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) repository.CartRepository {
	return &cartRepo{db: db}
}

func (r *cartRepo) FindItems(ctx context.Context, userID uint) ([]domain.CartItem, error) {
	var out []domain.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Product.Images").
		Preload("Variant").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&out).Error
	return out, errors.Wrap(err, "find cart items")
}

func (r *cartRepo) FindItem(ctx context.Context, userID, itemID uint) (*domain.CartItem, error) {
	var it domain.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Variant").
		Where("user_id = ? AND id = ?", userID, itemID).
		First(&it).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find cart item")
	}
	return &it, nil
}

func (r *cartRepo) Save(ctx context.Context, item *domain.CartItem) error {
	return errors.Wrap(r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error, "save cart item")
}

func (r *cartRepo) Delete(ctx context.Context, userID, itemID uint) error {
	result := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, itemID).Delete(&domain.CartItem{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "delete cart item")
	}
	if result.RowsAffected == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (r *cartRepo) Clear(ctx context.Context, userID uint) error {
	return errors.Wrap(r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.CartItem{}).Error, "clear cart")
}
