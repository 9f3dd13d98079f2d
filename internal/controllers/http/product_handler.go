package http

import (
	"net/http"
	"strconv"

	"kasuwa/internal/domain"
	"kasuwa/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListProducts(c *gin.Context) {
	f := domain.ProductFilter{
		Search:     c.Query("search"),
		ActiveOnly: c.Query("includeInactive") != "true",
		Page:       intQuery(c, "page", 1),
		PageSize:   intQuery(c, "pageSize", domain.DefaultPageSize),
	}
	if v, err := strconv.ParseUint(c.Query("categoryId"), 10, 64); err == nil {
		id := uint(v)
		f.CategoryID = &id
	}
	if v, err := strconv.ParseUint(c.Query("vendorId"), 10, 64); err == nil {
		id := uint(v)
		f.VendorID = &id
	}

	page, err := h.catalog.ListProducts(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", p)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.catalog.CreateProduct(c.Request.Context(), actor(c), services.ProductInput{
		CategoryID:       req.CategoryID,
		Name:             req.Name,
		Description:      req.Description,
		SKU:              req.SKU,
		Price:            req.Price,
		StockQuantity:    req.StockQuantity,
		IsActive:         req.IsActive,
		RequiresShipping: req.RequiresShipping,
		TrackQuantity:    req.TrackQuantity,
		AllowBackorder:   req.AllowBackorder,
		Attributes:       req.Attributes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Product created", p)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.catalog.UpdateProduct(c.Request.Context(), actor(c), id, services.ProductUpdate{
		CategoryID:       req.CategoryID,
		Name:             req.Name,
		Description:      req.Description,
		Price:            req.Price,
		IsActive:         req.IsActive,
		RequiresShipping: req.RequiresShipping,
		TrackQuantity:    req.TrackQuantity,
		AllowBackorder:   req.AllowBackorder,
		Attributes:       req.Attributes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Product updated", p)
}

func (h *Handler) AddVariant(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req CreateVariantRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.catalog.AddVariant(c.Request.Context(), actor(c), id, services.VariantInput{
		Name:            req.Name,
		SKU:             req.SKU,
		PriceAdjustment: req.PriceAdjustment,
		IsActive:        req.IsActive,
		Options:         req.Options,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Variant added", v)
}

func (h *Handler) ReceiveStock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ReceiveStockRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.catalog.ReceiveStock(c.Request.Context(), actor(c), id, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Stock updated", p)
}

const maxImageSize = 5 << 20

func (h *Handler) UploadImage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", "image file is required")
		return
	}
	if fh.Size > maxImageSize {
		fail(c, http.StatusBadRequest, "Invalid request", "image must be at most 5MB")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	sortOrder, _ := strconv.Atoi(c.PostForm("sortOrder"))
	img, err := h.catalog.UploadImage(c.Request.Context(), actor(c), id, services.ImageUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		AltText:     c.PostForm("altText"),
		IsPrimary:   c.PostForm("isPrimary") == "true",
		SortOrder:   sortOrder,
		Body:        f,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Image uploaded", img)
}

func (h *Handler) ListCategories(c *gin.Context) {
	cats, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	respond(c, http.StatusOK, "", cats)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := h.catalog.CreateCategory(c.Request.Context(), actor(c), req.Name, req.ParentID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Category created", cat)
}
