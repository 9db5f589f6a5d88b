package routes

import (
	"net/http"

	"storefront-backend/gallery"
	"storefront-backend/handlers"
	"storefront-backend/lock"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/storage"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	DB         *gorm.DB
	Store      storage.Backend
	Locker     lock.Locker
	Log        *logger.Logger
	Mailer     handlers.Notifier
	Metrics    *metrics.GalleryMetrics
	Gatherer   prometheus.Gatherer
	Reconciler *gallery.Reconciler
	Pricing    handlers.Pricing
	ThumbWidth int

	// UploadDir and UploadURL are set when files live on local disk and are
	// served by this process.
	UploadDir string
	UploadURL string

	// AuthLimiter throttles the login and registration endpoints when set.
	AuthLimiter *middleware.RateLimiter
}

func SetupRoutes(r *gin.Engine, d Deps) {
	utils.RegisterValidators()
	r.Use(middleware.RequestID(d.Log), middleware.Logging(d.Log), middleware.Recoverer(d.Log))

	// Initialize handlers
	authHandler := &handlers.AuthHandler{DB: d.DB, Mailer: d.Mailer}
	categoryHandler := &handlers.CategoryHandler{DB: d.DB}
	brandHandler := &handlers.BrandHandler{DB: d.DB}
	sizeHandler := &handlers.SizeHandler{DB: d.DB}
	promoter := gallery.NewPromoter(d.DB, d.Store, d.Locker, d.Log, d.Metrics)
	productHandler := handlers.NewProductHandler(d.DB, d.Store, promoter, d.Log)
	storefrontHandler := &handlers.StorefrontHandler{DB: d.DB, Store: d.Store}
	tempImageHandler := &handlers.TempImageHandler{DB: d.DB, Store: d.Store, Log: d.Log, ThumbWidth: d.ThumbWidth}
	cartHandler := &handlers.CartHandler{DB: d.DB, Store: d.Store, Pricing: d.Pricing}
	orderHandler := &handlers.OrderHandler{DB: d.DB, Pricing: d.Pricing, Mailer: d.Mailer, Log: d.Log}
	galleryHandler := &handlers.GalleryHandler{Sweeper: d.Reconciler, Log: d.Log}

	api := r.Group("/api")

	// Auth routes
	auth := api.Group("")
	if d.AuthLimiter != nil {
		auth.Use(d.AuthLimiter.Middleware())
	}
	{
		auth.POST("/admin/login", authHandler.AdminLogin)
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// Public routes; an admin token widens some listings
	public := api.Group("")
	public.Use(middleware.OptionalAuth())
	{
		public.GET("/categories", categoryHandler.GetCategories)
		public.GET("/brands", brandHandler.GetBrands)
		public.GET("/sizes", sizeHandler.GetSizes)
		public.GET("/products", productHandler.GetProducts)
		public.GET("/products/:id", productHandler.GetProduct)

		// Storefront
		public.GET("/latest-products", storefrontHandler.LatestProducts)
		public.GET("/featured-products", storefrontHandler.FeaturedProducts)
		public.GET("/get-category/:id", storefrontHandler.ProductsByCategory)
		public.GET("/get-brand/:id", storefrontHandler.ProductsByBrand)
		public.GET("/get-product/:id", storefrontHandler.GetProduct)
		public.GET("/filter-products", storefrontHandler.FilterProducts)
		public.GET("/public-products", storefrontHandler.AllProducts)

		public.POST("/temp-images", tempImageHandler.Upload)
		public.POST("/cart/quote", cartHandler.Quote)
	}

	// Customer routes
	customer := api.Group("")
	customer.Use(middleware.AuthMiddleware(), middleware.CustomerMiddleware())
	{
		customer.POST("/save-order", orderHandler.SaveOrder)
		customer.GET("/order/:id", orderHandler.GetOrder)
		customer.GET("/user/orders", orderHandler.GetUserOrders)
		customer.GET("/get-order-details/:id", orderHandler.GetOrder)
	}

	api.GET("/user", middleware.AuthMiddleware(), authHandler.GetProfile)

	// Admin routes (require admin role)
	admin := api.Group("")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("/categories", categoryHandler.CreateCategory)
		admin.GET("/categories/:id", categoryHandler.GetCategory)
		admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
		admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)

		admin.POST("/brands", brandHandler.CreateBrand)
		admin.GET("/brands/:id", brandHandler.GetBrand)
		admin.PUT("/brands/:id", brandHandler.UpdateBrand)
		admin.DELETE("/brands/:id", brandHandler.DeleteBrand)

		admin.POST("/sizes", sizeHandler.CreateSize)
		admin.GET("/sizes/:id", sizeHandler.GetSize)
		admin.PUT("/sizes/:id", sizeHandler.UpdateSize)
		admin.DELETE("/sizes/:id", sizeHandler.DeleteSize)

		// Product management
		admin.GET("/admin/products", productHandler.GetAdminProducts)
		admin.POST("/products", productHandler.CreateProduct)
		admin.PUT("/products/:id", productHandler.UpdateProduct)
		admin.DELETE("/products/:id", productHandler.DeleteProduct)
		admin.DELETE("/products/:id/images/:imageId", productHandler.DeleteProductImage)

		// Order management
		admin.GET("/admin/orders", orderHandler.GetAdminOrders)
		admin.GET("/admin/orders/transitions", orderHandler.GetOrderTransitions)
		admin.GET("/admin/orders/:id", orderHandler.GetAdminOrder)
		admin.PUT("/admin/orders/:id/status", orderHandler.UpdateOrderStatus)

		admin.POST("/admin/gallery/reconcile", galleryHandler.Reconcile)
	}

	if d.UploadDir != "" && d.UploadURL != "" {
		r.Static(d.UploadURL, d.UploadDir)
	}

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
