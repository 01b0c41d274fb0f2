package controller

import (
	goerrors "errors"
	"net/http"
	"strconv"

	"github.com/dmills/storefront-backend/internal/app/model"
	"github.com/dmills/storefront-backend/internal/app/service"
	"github.com/dmills/storefront-backend/internal/errors"
	"github.com/dmills/storefront-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ProductController struct {
	productService service.ProductService
}

func NewProductController(productService service.ProductService) *ProductController {
	return &ProductController{
		productService: productService,
	}
}

type CreateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	Description string `json:"description"`
	Price       string `json:"price" binding:"required"`
	Category    string `json:"category"`
	Stock       int    `json:"stock" binding:"gte=0"`
	ImageURL    string `json:"image_url"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
	Category    *string `json:"category"`
	Stock       *int    `json:"stock"`
	ImageURL    *string `json:"image_url"`
}

// ListProducts returns products with filtering and pagination
// GET /api/v1/products
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	opts := service.ProductListOptions{
		Search: c.Query("search"),
		Limit:  20,
	}
	if category := c.Query("category"); category != "" {
		cat := model.ProductCategory(category)
		opts.Category = &cat
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			opts.Limit = limit
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			opts.Offset = offset
		}
	}

	products, err := ctrl.productService.ListProducts(opts)
	if err != nil {
		log.Error("Failed to list products", err, nil)
		errors.InternalError(c, "Failed to fetch products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"products": products,
		"count":    len(products),
	})
}

// GetProduct returns a single product. The path parameter is a numeric ID
// or a slug.
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	idOrSlug := c.Param("id")

	var product *model.Product
	var err error
	if id, parseErr := strconv.ParseUint(idOrSlug, 10, 32); parseErr == nil {
		product, err = ctrl.productService.GetProductByID(uint(id))
	} else {
		product, err = ctrl.productService.GetProductBySlug(idOrSlug)
	}

	if err != nil {
		if goerrors.Is(err, service.ErrProductNotFound) {
			log.Warn("Product not found", map[string]interface{}{
				"id_or_slug": idOrSlug,
			})
			errors.NotFound(c, errors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to fetch product", err, map[string]interface{}{
			"id_or_slug": idOrSlug,
		})
		errors.InternalError(c, "Failed to fetch product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"product": product,
	})
}

// CreateProduct creates a new product (admin only)
// POST /api/v1/products
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid create product request", map[string]interface{}{
			"error": err.Error(),
		})
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid request data")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		log.Warn("Invalid product price", map[string]interface{}{
			"price": req.Price,
		})
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid product price")
		return
	}

	product := &model.Product{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Price:       price,
		Category:    model.ProductCategory(req.Category),
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	}

	if err := ctrl.productService.CreateProduct(product); err != nil {
		if goerrors.Is(err, service.ErrProductSlugExists) {
			log.Warn("Product slug already exists", map[string]interface{}{
				"slug": req.Slug,
			})
			errors.Conflict(c, errors.ProductSlugExists, "A product with this slug already exists")
			return
		}
		log.Error("Failed to create product", err, map[string]interface{}{
			"slug": req.Slug,
		})
		errors.InternalError(c, "Failed to create product")
		return
	}

	log.Info("Product created successfully", map[string]interface{}{
		"product_id": product.ID,
		"slug":       product.Slug,
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"product": product,
	})
}

// UpdateProduct updates an existing product (admin only)
// PUT /api/v1/products/:id
func (ctrl *ProductController) UpdateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		errors.BadRequest(c, errors.ValidationInvalidID, "Invalid product ID")
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid update product request", map[string]interface{}{
			"product_id": id,
			"error":      err.Error(),
		})
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid request data")
		return
	}

	product, err := ctrl.productService.GetProductByID(uint(id))
	if err != nil {
		if goerrors.Is(err, service.ErrProductNotFound) {
			errors.NotFound(c, errors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to fetch product for update", err, map[string]interface{}{
			"product_id": id,
		})
		errors.InternalError(c, "Failed to update product")
		return
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		price, perr := decimal.NewFromString(*req.Price)
		if perr != nil || price.IsNegative() {
			errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid product price")
			return
		}
		product.Price = price
	}
	if req.Category != nil {
		product.Category = model.ProductCategory(*req.Category)
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			errors.BadRequest(c, errors.ValidationInvalidInput, "Stock cannot be negative")
			return
		}
		product.Stock = *req.Stock
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}

	if err := ctrl.productService.UpdateProduct(product); err != nil {
		log.Error("Failed to update product", err, map[string]interface{}{
			"product_id": id,
		})
		errors.InternalError(c, "Failed to update product")
		return
	}

	log.Info("Product updated successfully", map[string]interface{}{
		"product_id": product.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"product": product,
	})
}

// DeleteProduct soft-deletes a product (admin only)
// DELETE /api/v1/products/:id
func (ctrl *ProductController) DeleteProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		errors.BadRequest(c, errors.ValidationInvalidID, "Invalid product ID")
		return
	}

	if err := ctrl.productService.DeleteProduct(uint(id)); err != nil {
		if goerrors.Is(err, service.ErrProductNotFound) {
			errors.NotFound(c, errors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to delete product", err, map[string]interface{}{
			"product_id": id,
		})
		errors.InternalError(c, "Failed to delete product")
		return
	}

	log.Info("Product deleted successfully", map[string]interface{}{
		"product_id": id,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product deleted successfully",
	})
}
