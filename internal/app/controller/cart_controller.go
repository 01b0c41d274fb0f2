package controller

import (
	goerrors "errors"
	"net/http"
	"strconv"

	"github.com/dmills/storefront-backend/internal/app/service"
	"github.com/dmills/storefront-backend/internal/errors"
	"github.com/dmills/storefront-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
}

// identityFromContext assembles the caller's cart identity from whatever the
// auth and session middleware put in the request context. Either or both of
// the fields may be present.
func identityFromContext(c *gin.Context) service.Identity {
	var ident service.Identity
	if userID, ok := middleware.GetUserID(c); ok {
		ident.UserID = &userID
	}
	if token, ok := middleware.GetSessionToken(c); ok {
		ident.SessionToken = &token
	}
	return ident
}

// GetCart returns the caller's current cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	ident := identityFromContext(c)
	cart := ctrl.cartService.GetCurrentCart(ident)

	if cart == nil {
		log.Debug("No cart for current identity", nil)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"cart":    nil,
		})
		return
	}

	log.Info("Cart fetched successfully", map[string]interface{}{
		"cart_id": cart.ID,
		"count":   len(cart.Items),
		"total":   cart.TotalPrice,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cart":    cart,
	})
}

// AddItemToCart adds one unit of a product to the caller's cart
// POST /api/v1/cart/items
func (ctrl *CartController) AddItemToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid request data")
		return
	}

	ident := identityFromContext(c)

	log.Debug("Adding item to cart", map[string]interface{}{
		"product_id": req.ProductID,
	})

	change, err := ctrl.cartService.AddItemToCart(ident, req.ProductID)
	if err != nil {
		ctrl.respondCartError(c, err, req.ProductID, "add item to cart")
		return
	}

	log.Info("Item added to cart successfully", map[string]interface{}{
		"cart_id":    change.Cart.ID,
		"product_id": req.ProductID,
		"total":      change.Cart.TotalPrice,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": change.Message,
		"cart":    change.Cart,
	})
}

// RemoveItemFromCart removes one unit of a product from the caller's cart
// DELETE /api/v1/cart/items/:productId
func (ctrl *CartController) RemoveItemFromCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	idStr := c.Param("productId")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		log.Warn("Invalid product ID format", map[string]interface{}{
			"product_id": idStr,
			"error":      err.Error(),
		})
		errors.BadRequest(c, errors.ValidationInvalidID, "Invalid product ID")
		return
	}

	ident := identityFromContext(c)

	log.Debug("Removing item from cart", map[string]interface{}{
		"product_id": id,
	})

	change, err := ctrl.cartService.RemoveItemFromCart(ident, uint(id))
	if err != nil {
		ctrl.respondCartError(c, err, uint(id), "remove item from cart")
		return
	}

	log.Info("Item removed from cart successfully", map[string]interface{}{
		"cart_id":    change.Cart.ID,
		"product_id": id,
		"total":      change.Cart.TotalPrice,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": change.Message,
		"cart":    change.Cart,
	})
}

func (ctrl *CartController) respondCartError(c *gin.Context, err error, productID uint, action string) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case goerrors.Is(err, service.ErrProductNotFound):
		log.Warn("Product not found for cart", map[string]interface{}{
			"product_id": productID,
		})
		errors.NotFound(c, errors.ProductNotFound, "Product not found")
	case goerrors.Is(err, service.ErrInsufficientStock):
		log.Warn("Insufficient stock for cart item", map[string]interface{}{
			"product_id": productID,
		})
		errors.BadRequest(c, errors.ProductInsufficientStock, "Insufficient stock")
	case goerrors.Is(err, service.ErrCartNotFound):
		log.Warn("Cart not found", map[string]interface{}{
			"product_id": productID,
		})
		errors.NotFound(c, errors.CartNotFound, "Cart not found")
	case goerrors.Is(err, service.ErrCartItemNotFound):
		log.Warn("Cart item not found", map[string]interface{}{
			"product_id": productID,
		})
		errors.NotFound(c, errors.CartItemNotFound, "Item is not in the cart")
	case goerrors.Is(err, service.ErrNoSession):
		log.Warn("Cart request without user or session identity", nil)
		errors.BadRequest(c, errors.SessionRequired, "A session is required to use the cart")
	case goerrors.Is(err, service.ErrCartConflict):
		log.Warn("Cart version conflict persisted after retries", map[string]interface{}{
			"product_id": productID,
		})
		errors.Conflict(c, errors.CartConflict, "Cart was modified concurrently, please retry")
	default:
		log.Error("Failed to "+action, err, map[string]interface{}{
			"product_id": productID,
		})
		errors.InternalError(c, "Failed to "+action)
	}
}
