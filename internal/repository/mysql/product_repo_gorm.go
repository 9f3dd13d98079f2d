package mysql

import (
	"context"

	"kasuwa/internal/domain"
	"kasuwa/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type productRepo struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) repository.ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, p *domain.Product) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(p).Error, "create product")
}

// Update writes catalog fields only; stock moves through AdjustStock and
// checkout so a price edit cannot overwrite a concurrent reservation.
func (r *productRepo) Update(ctx context.Context, p *domain.Product) error {
	err := r.db.WithContext(ctx).Model(p).
		Select("name", "description", "price", "category_id", "is_active",
			"requires_shipping", "track_quantity", "allow_backorder", "attributes").
		Updates(p).Error
	return errors.Wrap(err, "update product")
}

func (r *productRepo) FindByID(ctx context.Context, id uint) (*domain.Product, error) {
	var p domain.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find product")
	}
	return &p, nil
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []uint) ([]domain.Product, error) {
	var out []domain.Product
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Preload("Images").
		Where("id IN ?", ids).
		Find(&out).Error
	return out, errors.Wrap(err, "find products")
}

func (r *productRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	page, size := domain.NormalizePage(f.Page, f.PageSize)

	q := r.db.WithContext(ctx).Model(&domain.Product{})
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.VendorID != nil {
		q = q.Where("vendor_id = ?", *f.VendorID)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR sku LIKE ?", like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count products")
	}

	var out []domain.Product
	err := q.Preload("Images").
		Order("created_at DESC, id DESC").
		Offset(domain.Offset(page, size)).
		Limit(size).
		Find(&out).Error
	return out, total, errors.Wrap(err, "list products")
}

func (r *productRepo) CreateVariant(ctx context.Context, v *domain.ProductVariant) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(v).Error, "create variant")
}

func (r *productRepo) AddImage(ctx context.Context, img *domain.ProductImage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if img.IsPrimary {
			if err := tx.Model(&domain.ProductImage{}).
				Where("product_id = ?", img.ProductID).
				Update("is_primary", false).Error; err != nil {
				return errors.Wrap(err, "reset primary image")
			}
		}
		return errors.Wrap(tx.Create(img).Error, "add image")
	})
}

func (r *productRepo) AdjustStock(ctx context.Context, productID uint, delta int) error {
	result := r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("id = ?", productID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if result.Error != nil {
		return errors.Wrap(result.Error, "adjust stock")
	}
	if result.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *productRepo) CreateCategory(ctx context.Context, c *domain.Category) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(c).Error, "create category")
}

func (r *productRepo) FindCategory(ctx context.Context, id uint) (*domain.Category, error) {
	var c domain.Category
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find category")
	}
	return &c, nil
}

func (r *productRepo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := r.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "name"}}).Find(&out).Error
	return out, errors.Wrap(err, "list categories")
}
