package router

import (
	"github.com/dmills/storefront-backend/config"
	"github.com/dmills/storefront-backend/internal/app/controller"
	"github.com/dmills/storefront-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Router struct {
	authController         *controller.AuthController
	productController      *controller.ProductController
	cartController         *controller.CartController
	invalidationController *controller.InvalidationController
	authMiddleware         *middleware.AuthMiddleware
	sessionMiddleware      *middleware.SessionMiddleware
	config                 *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	cartController *controller.CartController,
	invalidationController *controller.InvalidationController,
	authMiddleware *middleware.AuthMiddleware,
	sessionMiddleware *middleware.SessionMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:         authController,
		productController:      productController,
		cartController:         cartController,
		invalidationController: invalidationController,
		authMiddleware:         authMiddleware,
		sessionMiddleware:      sessionMiddleware,
		config:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "Storefront API is running",
		})
	})

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.Me)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/:id", r.productController.GetProduct)

			products.POST("",
				r.authMiddleware.Authenticate(),
				r.authMiddleware.RequireRole("admin"),
				r.productController.CreateProduct,
			)
			products.PUT("/:id",
				r.authMiddleware.Authenticate(),
				r.authMiddleware.RequireRole("admin"),
				r.productController.UpdateProduct,
			)
			products.DELETE("/:id",
				r.authMiddleware.Authenticate(),
				r.authMiddleware.RequireRole("admin"),
				r.productController.DeleteProduct,
			)
		}

		// Cart routes accept both authenticated users and anonymous
		// visitors. OptionalAuthenticate resolves the user if a token is
		// present; EnsureCartSession guarantees a session cookie either way.
		cart := v1.Group("/cart",
			r.authMiddleware.OptionalAuthenticate(),
			r.sessionMiddleware.EnsureCartSession(),
		)
		{
			cart.GET("", r.cartController.GetCart)
			cart.POST("/items", r.cartController.AddItemToCart)
			cart.DELETE("/items/:productId", r.cartController.RemoveItemFromCart)
		}

		v1.GET("/ws/invalidations", r.invalidationController.Connect)
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
