package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-backend/config"
	"storefront-backend/database"
	"storefront-backend/gallery"
	"storefront-backend/handlers"
	"storefront-backend/lock"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/routes"
	"storefront-backend/storage"
	"storefront-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "storefront-backend"

func main() {
	ctx := context.Background()

	// Load environment variables
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Error loading .env file:", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Environment validation failed:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	fatal := func(msg string, err error) {
		log.Error(ctx, msg, err)
		os.Exit(1)
	}
	for _, w := range cfg.Warnings() {
		log.Warn(ctx, w)
	}

	utils.JWTSecret = cfg.JWT.Secret
	utils.TokenTTL = cfg.JWT.TTL

	// Initialize database
	db, err := database.Connect(cfg.DB.URL)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	if err := database.Migrate(db); err != nil {
		fatal("failed to run migrations", err)
	}
	if err := database.CreateDefaultAdmin(ctx, db, log, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Error(ctx, "could not create default admin", err)
	}

	store, closeStore, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		fatal("failed to open storage", err)
	}
	defer closeStore.Close()

	locker, err := openLocker(ctx, cfg.Redis)
	if err != nil {
		fatal("failed to set up promotion lock", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	galleryMetrics := metrics.NewGalleryMetrics(reg)

	mailer := utils.NewMailer(utils.EmailConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, log)

	// Background work stops with the server.
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	reconciler := gallery.NewReconciler(db, store, locker, log, galleryMetrics, cfg.Gallery.PendingGrace, cfg.Gallery.TempImageTTL)
	go reconciler.Run(bgCtx, cfg.Gallery.SweepInterval)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Limit multipart form memory to 10MB
	r.MaxMultipartMemory = 10 << 20

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
		AllowCredentials: true,
	}))

	deps := routes.Deps{
		DB:          db,
		Store:       store,
		Locker:      locker,
		Log:         log,
		Mailer:      mailer,
		Metrics:     galleryMetrics,
		Gatherer:    reg,
		Reconciler:  reconciler,
		Pricing:     handlers.Pricing{ShippingFee: cfg.Checkout.ShippingFee, FreeShippingMin: cfg.Checkout.FreeShippingMin},
		ThumbWidth:  cfg.Gallery.ThumbnailWidth,
		AuthLimiter: middleware.NewRateLimiter(bgCtx, 10, time.Minute),
	}
	if local, ok := store.(*storage.Local); ok {
		deps.UploadDir = local.Root
		deps.UploadURL = cfg.Storage.PublicURL
	}
	routes.SetupRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in a goroutine
	go func() {
		log.Info(log.WithField(ctx, "port", cfg.App.Port), "server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info(ctx, "shutting down server")
	stopBackground()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server forced to shutdown", err)
	}

	// Close database connection
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error(ctx, "error closing database connection", err)
		}
	}

	log.Info(ctx, "server exited gracefully")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStorage selects the file backend named by STORAGE_DRIVER.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Backend, io.Closer, error) {
	switch cfg.Driver {
	case config.StorageDriverGCS:
		gcs, err := storage.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentials)
		if err != nil {
			return nil, nil, err
		}
		return gcs, gcs, nil
	case config.StorageDriverS3:
		s3, err := storage.NewS3(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3, nopCloser{}, nil
	default:
		local, err := storage.NewLocal(cfg.UploadDir, cfg.PublicURL)
		if err != nil {
			return nil, nil, err
		}
		return local, nopCloser{}, nil
	}
}

// openLocker uses Redis when configured so promotions are serialized across
// instances, and an in-process lock otherwise.
func openLocker(ctx context.Context, cfg config.RedisConfig) (lock.Locker, error) {
	if cfg.URL == "" {
		return lock.NewMemory(), nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	locker, err := lock.NewRedis(client, cfg.LockTTL)
	if err != nil {
		client.Close()
		return nil, err
	}
	return locker, nil
}
