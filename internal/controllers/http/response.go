package http

import (
	"net/http"
	"strconv"

	"kasuwa/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

type PagedResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message,omitempty"`
	Data            any    `json:"data"`
	TotalCount      int64  `json:"totalCount"`
	PageSize        int    `json:"pageSize"`
	CurrentPage     int    `json:"currentPage"`
	TotalPages      int    `json:"totalPages"`
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func respondPage[T any](c *gin.Context, page domain.Page[T]) {
	c.JSON(http.StatusOK, PagedResponse{
		Success:         true,
		Data:            page.Data,
		TotalCount:      page.TotalCount,
		PageSize:        page.PageSize,
		CurrentPage:     page.CurrentPage,
		TotalPages:      page.TotalPages,
		HasNextPage:     page.HasNextPage,
		HasPreviousPage: page.HasPreviousPage,
	})
}

func fail(c *gin.Context, status int, message string, errs ...string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message, Errors: errs})
}

// respondError maps service errors onto status codes. Unknown errors are
// logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	var unavailable *domain.ItemsUnavailableError

	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, "Invalid request", verr.Fields...)
	case errors.As(err, &unavailable):
		lines := make([]string, 0, len(unavailable.Lines))
		for _, l := range unavailable.Lines {
			lines = append(lines, l.String())
		}
		fail(c, http.StatusUnprocessableEntity, domain.ErrItemsUnavailable.Error(), lines...)
	case domain.IsNotFound(err):
		fail(c, http.StatusNotFound, rootMessage(err))
	case errors.Is(err, domain.ErrForbidden):
		fail(c, http.StatusForbidden, domain.ErrForbidden.Error())
	case errors.Is(err, domain.ErrConcurrentUpdate), errors.Is(err, domain.ErrDuplicateReview):
		fail(c, http.StatusConflict, rootMessage(err))
	case errors.Is(err, domain.ErrPaymentGateway):
		fail(c, http.StatusBadGateway, domain.ErrPaymentGateway.Error(), err.Error())
	case domain.IsBusinessRule(err):
		fail(c, http.StatusUnprocessableEntity, rootMessage(err), err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled error")
		fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func rootMessage(err error) string {
	return errors.Cause(err).Error()
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "Invalid request", name+" must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return false
	}
	return true
}
