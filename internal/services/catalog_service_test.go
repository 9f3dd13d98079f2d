package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"kasuwa/internal/domain"
	"kasuwa/internal/mocks"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_CreateProduct(t *testing.T) {
	valid := ProductInput{Name: " Ankara fabric ", SKU: "ANK-001", Price: naira(3500), StockQuantity: 10}

	tests := []struct {
		name          string
		actor         domain.Actor
		input         ProductInput
		setupMocks    func(products *mocks.MockProductRepository)
		expectedError error
		validation    bool
	}{
		{
			name:  "vendor creates product",
			actor: vendor,
			input: valid,
			setupMocks: func(products *mocks.MockProductRepository) {
				products.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
					return p.VendorID == vendor.UserID && p.Name == "Ankara fabric" && p.IsActive && p.TrackQuantity && p.RequiresShipping
				})).Return(nil)
			},
		},
		{
			name:  "customers cannot sell",
			actor: customer,
			input: valid,
			setupMocks: func(products *mocks.MockProductRepository) {
			},
			expectedError: domain.ErrForbidden,
		},
		{
			name:       "missing fields",
			actor:      vendor,
			input:      ProductInput{Price: naira(0)},
			setupMocks: func(products *mocks.MockProductRepository) {},
			validation: true,
		},
		{
			name:       "negative stock without backorder",
			actor:      vendor,
			input:      ProductInput{Name: "Rice", SKU: "R-1", Price: naira(100), StockQuantity: -1},
			setupMocks: func(products *mocks.MockProductRepository) {},
			validation: true,
		},
		{
			name:  "unknown category",
			actor: admin,
			input: ProductInput{Name: "Rice", SKU: "R-1", Price: naira(100), CategoryID: uintPtr(9)},
			setupMocks: func(products *mocks.MockProductRepository) {
				products.On("FindCategory", mock.Anything, uint(9)).Return(nil, nil)
			},
			expectedError: domain.ErrCategoryNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := new(mocks.MockProductRepository)
			tt.setupMocks(products)
			svc := NewCatalogService(products, nil)

			p, err := svc.CreateProduct(context.Background(), tt.actor, tt.input)
			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
				products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			case tt.validation:
				var verr *domain.ValidationError
				assert.ErrorAs(t, err, &verr)
				products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			default:
				require.NoError(t, err)
				assert.Equal(t, "ANK-001", p.SKU)
			}
			products.AssertExpectations(t)
		})
	}
}

func TestCatalogService_UpdateProduct(t *testing.T) {
	price := naira(4000)
	inactive := false

	t.Run("owner updates", func(t *testing.T) {
		products := new(mocks.MockProductRepository)
		products.On("FindByID", mock.Anything, uint(1)).Return(newProduct(1, 3500, 10), nil)
		products.On("Update", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
			return p.Price.Equal(price) && !p.IsActive && p.StockQuantity == 10
		})).Return(nil)

		p, err := NewCatalogService(products, nil).UpdateProduct(context.Background(), vendor, 1,
			ProductUpdate{Price: &price, IsActive: &inactive})
		require.NoError(t, err)
		assert.False(t, p.IsActive)
		products.AssertExpectations(t)
	})

	t.Run("another vendor", func(t *testing.T) {
		products := new(mocks.MockProductRepository)
		products.On("FindByID", mock.Anything, uint(1)).Return(newProduct(1, 3500, 10), nil)

		_, err := NewCatalogService(products, nil).UpdateProduct(context.Background(),
			domain.Actor{UserID: 8, Role: domain.RoleVendor}, 1, ProductUpdate{Price: &price})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("admin may edit any product", func(t *testing.T) {
		products := new(mocks.MockProductRepository)
		products.On("FindByID", mock.Anything, uint(1)).Return(newProduct(1, 3500, 10), nil)
		products.On("Update", mock.Anything, mock.Anything).Return(nil)

		_, err := NewCatalogService(products, nil).UpdateProduct(context.Background(), admin, 1, ProductUpdate{Price: &price})
		assert.NoError(t, err)
	})

	t.Run("price cannot drop to zero", func(t *testing.T) {
		products := new(mocks.MockProductRepository)
		products.On("FindByID", mock.Anything, uint(1)).Return(newProduct(1, 3500, 10), nil)
		zero := naira(0)

		_, err := NewCatalogService(products, nil).UpdateProduct(context.Background(), vendor, 1, ProductUpdate{Price: &zero})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestCatalogService_AddVariant(t *testing.T) {
	products := new(mocks.MockProductRepository)
	products.On("FindByID", mock.Anything, uint(1)).Return(newProduct(1, 3500, 10), nil)
	products.On("CreateVariant", mock.Anything, mock.MatchedBy(func(v *domain.ProductVariant) bool {
		return v.ProductID == 1 && v.IsActive && v.PriceAdjustment.Equal(naira(500))
	})).Return(nil)
	svc := NewCatalogService(products, nil)

	v, err := svc.AddVariant(context.Background(), vendor, 1, VariantInput{Name: "XL", SKU: "ANK-001-XL", PriceAdjustment: naira(500)})
	require.NoError(t, err)
	assert.Equal(t, "XL", v.Name)

	_, err = svc.AddVariant(context.Background(), vendor, 1, VariantInput{Name: "Free", SKU: "ANK-FREE", PriceAdjustment: naira(-3500)})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCatalogService_ReceiveStock(t *testing.T) {
	products := new(mocks.MockProductRepository)
	products.On("FindByID", mock.Anything, uint(1)).Return(newProduct(1, 3500, 10), nil).Once()
	products.On("AdjustStock", mock.Anything, uint(1), 15).Return(nil)
	products.On("FindByID", mock.Anything, uint(1)).Return(newProduct(1, 3500, 25), nil).Once()
	svc := NewCatalogService(products, nil)

	p, err := svc.ReceiveStock(context.Background(), vendor, 1, 15)
	require.NoError(t, err)
	assert.Equal(t, 25, p.StockQuantity)
	products.AssertExpectations(t)

	_, err = svc.ReceiveStock(context.Background(), vendor, 1, 0)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCatalogService_UploadImage(t *testing.T) {
	upload := func() ImageUpload {
		return ImageUpload{Filename: "front.PNG", ContentType: "image/png", AltText: "front", IsPrimary: true, Body: strings.NewReader("png")}
	}

	t.Run("stores the object and records the image", func(t *testing.T) {
		products := new(mocks.MockProductRepository)
		store := new(mocks.MockImageStore)
		products.On("FindByID", mock.Anything, uint(1)).Return(newProduct(1, 3500, 10), nil)
		store.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "products/1/") && strings.HasSuffix(key, ".png")
		}), "image/png", mock.Anything).Return("https://cdn.kasuwa.ng/products/1/a.png", nil)
		products.On("AddImage", mock.Anything, mock.MatchedBy(func(img *domain.ProductImage) bool {
			return img.ProductID == 1 && img.IsPrimary && img.URL == "https://cdn.kasuwa.ng/products/1/a.png"
		})).Return(nil)

		img, err := NewCatalogService(products, store).UploadImage(context.Background(), vendor, 1, upload())
		require.NoError(t, err)
		assert.Equal(t, "front", img.AltText)
		products.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("unsupported type", func(t *testing.T) {
		store := new(mocks.MockImageStore)
		up := upload()
		up.ContentType = "image/gif"

		_, err := NewCatalogService(new(mocks.MockProductRepository), store).UploadImage(context.Background(), vendor, 1, up)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
		store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no store configured", func(t *testing.T) {
		_, err := NewCatalogService(new(mocks.MockProductRepository), nil).UploadImage(context.Background(), vendor, 1, upload())
		assert.ErrorIs(t, err, domain.ErrImageStoreUnconfigured)
	})
}

func TestCatalogService_GetProduct(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		products := new(mocks.MockProductRepository)
		products.On("FindByID", mock.Anything, uint(3)).Return(nil, nil)

		_, err := NewCatalogService(products, nil).GetProduct(context.Background(), 3)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("unreachable cache falls back to the database", func(t *testing.T) {
		products := new(mocks.MockProductRepository)
		products.On("FindByID", mock.Anything, uint(1)).Return(newProduct(1, 3500, 10), nil)
		svc := NewCatalogService(products, nil)
		rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
		defer rdb.Close()
		svc.SetRedisClient(rdb, time.Minute)

		p, err := svc.GetProduct(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, uint(1), p.ID)
		products.AssertExpectations(t)
	})
}

func TestCatalogService_ListProducts(t *testing.T) {
	products := new(mocks.MockProductRepository)
	products.On("List", mock.Anything, mock.MatchedBy(func(f domain.ProductFilter) bool {
		return f.Page == 1 && f.PageSize == domain.DefaultPageSize && f.ActiveOnly
	})).Return([]domain.Product{*newProduct(1, 3500, 10)}, int64(1), nil)

	page, err := NewCatalogService(products, nil).ListProducts(context.Background(), domain.ProductFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalCount)
	assert.Len(t, page.Data, 1)
}

func TestCatalogService_CreateCategory(t *testing.T) {
	products := new(mocks.MockProductRepository)
	products.On("CreateCategory", mock.Anything, mock.MatchedBy(func(c *domain.Category) bool {
		return c.Slug == "phones-tablets" && c.Name == "Phones & Tablets"
	})).Return(nil)
	svc := NewCatalogService(products, nil)

	c, err := svc.CreateCategory(context.Background(), admin, " Phones & Tablets ", nil)
	require.NoError(t, err)
	assert.Equal(t, "phones-tablets", c.Slug)

	_, err = svc.CreateCategory(context.Background(), vendor, "Phones", nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.CreateCategory(context.Background(), admin, "  !!", nil)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Home & Kitchen":       "home-kitchen",
		"  Men's Fashion  ":    "men-s-fashion",
		"Phones--and--Tablets": "phones-and-tablets",
		"ÀÉ":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}
