package http

import (
	"net/http"
	"strings"
	"time"

	"kasuwa/internal/domain"
	"kasuwa/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	in := domain.CheckoutRequest{
		ShippingAddress:  req.ShippingAddress,
		BillingAddress:   req.BillingAddress,
		ShippingMethod:   req.ShippingMethod,
		Notes:            req.Notes,
		IdempotencyKey:   strings.TrimSpace(c.GetHeader("Idempotency-Key")),
		ExpectedSubtotal: req.ExpectedSubtotal,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, domain.CheckoutLine{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}

	order, err := h.orders.Checkout(c.Request.Context(), actor(c).UserID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Order placed", order)
}

// parseOrderFilter reads the search query; dates accept RFC3339 or YYYY-MM-DD.
func parseOrderFilter(c *gin.Context) (domain.OrderFilter, error) {
	verr := domain.NewValidationError()
	f := domain.OrderFilter{
		OrderNumber: strings.TrimSpace(c.Query("orderNumber")),
		Status:      domain.OrderStatus(strings.ToLower(c.Query("status"))),
		SortBy:      domain.OrderSortField(strings.ToLower(c.Query("sortBy"))),
		SortDesc:    !strings.EqualFold(c.Query("sortDir"), "asc"),
		Page:        intQuery(c, "page", 1),
		PageSize:    intQuery(c, "pageSize", domain.DefaultPageSize),
	}

	parseTime := func(name string, endOfDay bool) *time.Time {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return &t
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			verr.Add("%s must be a date", name)
			return nil
		}
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t
	}
	parseAmount := func(name string) *decimal.Decimal {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			verr.Add("%s must be a number", name)
			return nil
		}
		return &d
	}

	f.From = parseTime("from", false)
	f.To = parseTime("to", true)
	f.MinAmount = parseAmount("minAmount")
	f.MaxAmount = parseAmount("maxAmount")
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		verr.Add("from must not be after to")
	}
	return f, verr.OrNil()
}

func (h *Handler) SearchOrders(c *gin.Context) {
	f, err := parseOrderFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := h.orders.Search(c.Request.Context(), actor(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", o)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req CancelOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.orders.Cancel(c.Request.Context(), actor(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Order cancelled", o)
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), actor(c), id, services.StatusUpdateInput{
		Status:         domain.OrderStatus(strings.ToLower(req.Status)),
		Notes:          req.Notes,
		TrackingNumber: req.TrackingNumber,
		Location:       req.Location,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Order status updated", o)
}
