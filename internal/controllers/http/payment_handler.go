package http

import (
	"crypto/subtle"
	"net/http"

	"kasuwa/internal/domain"
	"kasuwa/internal/services"

	"github.com/gin-gonic/gin"
)

// ProcessPayment answers 200 for a completed charge, 202 while the provider
// is still deciding and 402 with the recorded payment when it failed.
func (h *Handler) ProcessPayment(c *gin.Context) {
	var req ProcessPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.Process(c.Request.Context(), actor(c), services.ProcessPaymentInput{
		OrderID:  req.OrderID,
		Method:   req.Method,
		Provider: req.Provider,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	switch p.Status {
	case domain.PaymentFailed:
		c.JSON(http.StatusPaymentRequired, Response{Success: false, Message: "Payment failed", Data: p, Errors: []string{p.FailureReason}})
	case domain.PaymentProcessing:
		respond(c, http.StatusAccepted, "Payment is being processed", p)
	default:
		respond(c, http.StatusOK, "Payment completed", p)
	}
}

func (h *Handler) PaymentCallback(c *gin.Context) {
	got := c.GetHeader("X-Callback-Secret")
	if h.callbackSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackSecret)) != 1 {
		fail(c, http.StatusUnauthorized, "Invalid callback signature")
		return
	}
	var req PaymentCallbackRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.HandleCallback(c.Request.Context(), services.CallbackInput{
		TransactionID: req.TransactionID,
		PaymentID:     req.PaymentID,
		Status:        req.Status,
		Reason:        req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Callback applied", p)
}

func (h *Handler) GetPayment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.GetPayment(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", p)
}

func (h *Handler) RefundPayment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req RefundRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.Refund(c.Request.Context(), actor(c), id, services.RefundInput{
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Refund recorded", p)
}
