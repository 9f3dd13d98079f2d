package http

import (
	"net/http"

	"kasuwa/internal/domain"
	"kasuwa/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListProductReviews(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, err := h.reviews.ListForProduct(c.Request.Context(), id,
		intQuery(c, "page", 1), intQuery(c, "pageSize", domain.DefaultPageSize))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

func (h *Handler) ListPendingReviews(c *gin.Context) {
	page, err := h.reviews.ListPending(c.Request.Context(), actor(c),
		intQuery(c, "page", 1), intQuery(c, "pageSize", domain.DefaultPageSize))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

func (h *Handler) CreateReview(c *gin.Context) {
	var req CreateReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	rev, err := h.reviews.Create(c.Request.Context(), actor(c), services.CreateReviewInput{
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Review submitted for moderation", rev)
}

// VoteHelpful defaults to a helpful vote when the body omits it.
func (h *Handler) VoteHelpful(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req HelpfulVoteRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	helpful := true
	if req.Helpful != nil {
		helpful = *req.Helpful
	}
	rev, err := h.reviews.ToggleHelpful(c.Request.Context(), actor(c), id, helpful)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Vote recorded", rev)
}

func (h *Handler) ModerateReview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ModerateReviewRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	approved := true
	if req.Approved != nil {
		approved = *req.Approved
	}
	rev, err := h.reviews.Moderate(c.Request.Context(), actor(c), id, approved, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Review moderated", rev)
}
