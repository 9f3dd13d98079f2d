package http

import (
	"net/http"

	"kasuwa/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetCart(c *gin.Context) {
	summary, err := h.cart.Summary(c.Request.Context(), actor(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", summary)
}

func (h *Handler) ValidateCart(c *gin.Context) {
	v, err := h.cart.Validate(c.Request.Context(), actor(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", v)
}

func (h *Handler) AddCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.cart.AddItem(c.Request.Context(), actor(c).UserID, services.AddCartItemInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Item added to cart", item)
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.cart.UpdateItem(c.Request.Context(), actor(c).UserID, id, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	if item == nil {
		respond(c, http.StatusOK, "Item removed from cart", nil)
		return
	}
	respond(c, http.StatusOK, "Cart item updated", item)
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.cart.RemoveItem(c.Request.Context(), actor(c).UserID, id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Item removed from cart", nil)
}

func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.cart.Clear(c.Request.Context(), actor(c).UserID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Cart cleared", nil)
}
