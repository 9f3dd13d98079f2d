package http

import (
	"net/http"

	"kasuwa/internal/domain"
	"kasuwa/internal/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	catalog        *services.CatalogService
	cart           *services.CartService
	orders         *services.OrderService
	payments       *services.PaymentService
	reviews        *services.ReviewService
	jwtSecret      []byte
	callbackSecret string
}

type Services struct {
	Catalog  *services.CatalogService
	Cart     *services.CartService
	Orders   *services.OrderService
	Payments *services.PaymentService
	Reviews  *services.ReviewService
}

func NewHandler(s Services, jwtSecret, callbackSecret string) *Handler {
	return &Handler{
		catalog:        s.Catalog,
		cart:           s.Cart,
		orders:         s.Orders,
		payments:       s.Payments,
		reviews:        s.Reviews,
		jwtSecret:      []byte(jwtSecret),
		callbackSecret: callbackSecret,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	r.GET("/products", h.ListProducts)
	r.GET("/products/:id", h.GetProduct)
	r.GET("/products/:id/reviews", h.ListProductReviews)
	r.GET("/categories", h.ListCategories)
	r.POST("/payments/callback", h.PaymentCallback)

	auth := r.Group("/", Authenticate(h.jwtSecret))

	sellers := auth.Group("/", RequireRole(domain.RoleVendor, domain.RoleAdmin))
	sellers.POST("/products", h.CreateProduct)
	sellers.PUT("/products/:id", h.UpdateProduct)
	sellers.POST("/products/:id/variants", h.AddVariant)
	sellers.POST("/products/:id/stock", h.ReceiveStock)
	sellers.POST("/products/:id/images", h.UploadImage)
	sellers.PUT("/orders/:id/status", h.UpdateOrderStatus)

	admins := auth.Group("/", RequireRole(domain.RoleAdmin))
	admins.POST("/categories", h.CreateCategory)
	admins.POST("/payments/:id/refund", h.RefundPayment)
	admins.GET("/reviews/pending", h.ListPendingReviews)
	admins.POST("/reviews/:id/approve", h.ModerateReview)

	auth.GET("/cart", h.GetCart)
	auth.GET("/cart/validate", h.ValidateCart)
	auth.POST("/cart/items", h.AddCartItem)
	auth.PUT("/cart/items/:id", h.UpdateCartItem)
	auth.DELETE("/cart/items/:id", h.RemoveCartItem)
	auth.DELETE("/cart", h.ClearCart)

	auth.POST("/orders", h.Checkout)
	auth.GET("/orders", h.SearchOrders)
	auth.GET("/orders/:id", h.GetOrder)
	auth.POST("/orders/:id/cancel", h.CancelOrder)

	auth.POST("/payments/process", h.ProcessPayment)
	auth.GET("/payments/:id", h.GetPayment)

	auth.POST("/reviews", h.CreateReview)
	auth.POST("/reviews/:id/helpful", h.VoteHelpful)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
