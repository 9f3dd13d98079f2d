package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"kasuwa/internal/domain"
	"kasuwa/internal/infra"
	"kasuwa/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CatalogService struct {
	products    repository.ProductRepository
	images      infra.ImageStoreInterface
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewCatalogService(p repository.ProductRepository, images infra.ImageStoreInterface) *CatalogService {
	return &CatalogService{
		products: p,
		images:   images,
		cacheTTL: 5 * time.Minute,
	}
}

func (s *CatalogService) SetRedisClient(client *redis.Client, ttl time.Duration) {
	s.redisClient = client
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

type ProductInput struct {
	CategoryID       *uint
	Name             string
	Description      string
	SKU              string
	Price            decimal.Decimal
	StockQuantity    int
	IsActive         *bool
	RequiresShipping *bool
	TrackQuantity    *bool
	AllowBackorder   bool
	Attributes       datatypes.JSON
}

type ProductUpdate struct {
	CategoryID       *uint
	Name             *string
	Description      *string
	Price            *decimal.Decimal
	IsActive         *bool
	RequiresShipping *bool
	TrackQuantity    *bool
	AllowBackorder   *bool
	Attributes       datatypes.JSON
}

type VariantInput struct {
	Name            string
	SKU             string
	PriceAdjustment decimal.Decimal
	IsActive        *bool
	Options         datatypes.JSON
}

type ImageUpload struct {
	Filename    string
	ContentType string
	AltText     string
	IsPrimary   bool
	SortOrder   int
	Body        io.Reader
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (s *CatalogService) CreateProduct(ctx context.Context, actor domain.Actor, in ProductInput) (*domain.Product, error) {
	if !actor.IsVendor() && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	p := &domain.Product{
		VendorID:         actor.UserID,
		CategoryID:       in.CategoryID,
		Name:             strings.TrimSpace(in.Name),
		Description:      in.Description,
		SKU:              strings.TrimSpace(in.SKU),
		Price:            in.Price,
		StockQuantity:    in.StockQuantity,
		IsActive:         boolOr(in.IsActive, true),
		RequiresShipping: boolOr(in.RequiresShipping, true),
		TrackQuantity:    boolOr(in.TrackQuantity, true),
		AllowBackorder:   in.AllowBackorder,
		Attributes:       in.Attributes,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		logger.Error().Err(err).Msgf("Error creating product %s", p.SKU)
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, actor domain.Actor, id uint, in ProductUpdate) (*domain.Product, error) {
	p, err := s.ownedProduct(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	if in.CategoryID != nil {
		p.CategoryID = in.CategoryID
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	p.IsActive = boolOr(in.IsActive, p.IsActive)
	p.RequiresShipping = boolOr(in.RequiresShipping, p.RequiresShipping)
	p.TrackQuantity = boolOr(in.TrackQuantity, p.TrackQuantity)
	p.AllowBackorder = boolOr(in.AllowBackorder, p.AllowBackorder)
	if in.Attributes != nil {
		p.Attributes = in.Attributes
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.products.Update(ctx, p); err != nil {
		logger.Error().Err(err).Msgf("Error updating product %d", id)
		return nil, err
	}
	invalidateProducts(ctx, s.redisClient, id)
	return p, nil
}

// GetProduct serves product detail through the redis cache when one is set.
func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*domain.Product, error) {
	cacheKey := productCacheKey(id)

	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var p domain.Product
			if err := json.Unmarshal([]byte(cached), &p); err == nil {
				return &p, nil
			}
			logger.Warn().Msgf("Discarding unreadable cache entry for product %d", id)
		} else if err != redis.Nil {
			logger.Warn().Err(err).Msgf("Error reading product %d from cache", id)
		}
	}

	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}

	if s.redisClient != nil {
		if data, err := json.Marshal(p); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, f domain.ProductFilter) (domain.Page[domain.Product], error) {
	f.Page, f.PageSize = domain.NormalizePage(f.Page, f.PageSize)
	items, total, err := s.products.List(ctx, f)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return domain.NewPage(items, total, f.Page, f.PageSize), nil
}

func (s *CatalogService) AddVariant(ctx context.Context, actor domain.Actor, productID uint, in VariantInput) (*domain.ProductVariant, error) {
	p, err := s.ownedProduct(ctx, actor, productID)
	if err != nil {
		return nil, err
	}

	verr := domain.NewValidationError()
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name is required")
	}
	if strings.TrimSpace(in.SKU) == "" {
		verr.Add("sku is required")
	}
	if !p.Price.Add(in.PriceAdjustment).IsPositive() {
		verr.Add("priceAdjustment would make the variant price zero or negative")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	v := &domain.ProductVariant{
		ProductID:       productID,
		Name:            strings.TrimSpace(in.Name),
		SKU:             strings.TrimSpace(in.SKU),
		PriceAdjustment: in.PriceAdjustment,
		IsActive:        boolOr(in.IsActive, true),
		Options:         in.Options,
	}
	if err := s.products.CreateVariant(ctx, v); err != nil {
		logger.Error().Err(err).Msgf("Error adding variant to product %d", productID)
		return nil, err
	}
	invalidateProducts(ctx, s.redisClient, productID)
	return v, nil
}

// ReceiveStock adds delivered units to a product's stock.
func (s *CatalogService) ReceiveStock(ctx context.Context, actor domain.Actor, productID uint, quantity int) (*domain.Product, error) {
	if quantity < 1 {
		return nil, domain.NewValidationError("quantity must be at least 1")
	}
	if _, err := s.ownedProduct(ctx, actor, productID); err != nil {
		return nil, err
	}
	if err := s.products.AdjustStock(ctx, productID, quantity); err != nil {
		return nil, err
	}
	invalidateProducts(ctx, s.redisClient, productID)

	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func (s *CatalogService) UploadImage(ctx context.Context, actor domain.Actor, productID uint, up ImageUpload) (*domain.ProductImage, error) {
	if s.images == nil {
		return nil, domain.ErrImageStoreUnconfigured
	}
	ext, ok := allowedImageTypes[up.ContentType]
	if !ok {
		return nil, domain.NewValidationError("image must be jpeg, png or webp")
	}
	if _, err := s.ownedProduct(ctx, actor, productID); err != nil {
		return nil, err
	}

	if e := path.Ext(up.Filename); e != "" {
		ext = strings.ToLower(e)
	}
	key := fmt.Sprintf("products/%d/%s%s", productID, uuid.NewString(), ext)
	url, err := s.images.Upload(ctx, key, up.ContentType, up.Body)
	if err != nil {
		logger.Error().Err(err).Msgf("Error uploading image for product %d", productID)
		return nil, err
	}

	img := &domain.ProductImage{
		ProductID: productID,
		URL:       url,
		AltText:   up.AltText,
		IsPrimary: up.IsPrimary,
		SortOrder: up.SortOrder,
	}
	if err := s.products.AddImage(ctx, img); err != nil {
		return nil, err
	}
	invalidateProducts(ctx, s.redisClient, productID)
	return img, nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(name string) string {
	return strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func (s *CatalogService) CreateCategory(ctx context.Context, actor domain.Actor, name string, parentID *uint) (*domain.Category, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	slug := Slugify(name)
	if slug == "" {
		return nil, domain.NewValidationError("name is required")
	}
	if err := s.checkCategory(ctx, parentID); err != nil {
		return nil, err
	}

	c := &domain.Category{Name: strings.TrimSpace(name), Slug: slug, ParentID: parentID}
	if err := s.products.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.products.ListCategories(ctx)
}

func (s *CatalogService) checkCategory(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	c, err := s.products.FindCategory(ctx, *id)
	if err != nil {
		return err
	}
	if c == nil {
		return errors.Wrapf(domain.ErrCategoryNotFound, "category %d", *id)
	}
	return nil
}

func (s *CatalogService) ownedProduct(ctx context.Context, actor domain.Actor, id uint) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	if !actor.IsAdmin() && !(actor.IsVendor() && p.VendorID == actor.UserID) {
		return nil, domain.ErrForbidden
	}
	return p, nil
}
