package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// EnvPrefix namespaces the envconfig keys. Every field also carries an explicit
// envconfig tag, which is what deployments actually set.
const EnvPrefix = "STOREFRONT"

const (
	StorageDriverLocal = "local"
	StorageDriverGCS   = "gcs"
	StorageDriverS3    = "s3"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Gallery  GalleryConfig
	Checkout CheckoutConfig
	SMTP     SMTPConfig
	Admin    AdminConfig
}

type AppConfig struct {
	Port        string `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	FrontendURL string `envconfig:"FRONTEND_URL"`
	AdminURL    string `envconfig:"ADMIN_URL"`
}

type DBConfig struct {
	URL string `envconfig:"DATABASE_URL" required:"true"`
}

type JWTConfig struct {
	Secret string        `envconfig:"JWT_SECRET" required:"true"`
	TTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type StorageConfig struct {
	Driver    string `envconfig:"STORAGE_DRIVER" default:"local"`
	UploadDir string `envconfig:"UPLOAD_DIR" default:"public/upload"`
	PublicURL string `envconfig:"UPLOAD_PUBLIC_URL" default:"/upload"`

	GCSBucket      string `envconfig:"GCS_BUCKET"`
	GCSCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`

	S3Bucket          string `envconfig:"S3_BUCKET"`
	S3Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`

	// S3PublicURL serves gallery images from a CDN or bucket website instead of the bucket host.
	S3PublicURL string `envconfig:"S3_PUBLIC_URL"`
}

type RedisConfig struct {
	URL     string        `envconfig:"REDIS_URL"`
	LockTTL time.Duration `envconfig:"PROMOTION_LOCK_TTL" default:"2m"`
}

type GalleryConfig struct {
	SweepInterval  time.Duration `envconfig:"GALLERY_SWEEP_INTERVAL" default:"15m"`
	PendingGrace   time.Duration `envconfig:"GALLERY_PENDING_GRACE" default:"10m"`
	TempImageTTL   time.Duration `envconfig:"TEMP_IMAGE_TTL" default:"72h"`
	ThumbnailWidth int           `envconfig:"THUMBNAIL_WIDTH" default:"400"`
}

type CheckoutConfig struct {
	ShippingFee     decimal.Decimal `envconfig:"SHIPPING_FEE" default:"5.00"`
	FreeShippingMin decimal.Decimal `envconfig:"FREE_SHIPPING_MIN" default:"100.00"`
}

type SMTPConfig struct {
	Host     string `envconfig:"SMTP_HOST"`
	Port     string `envconfig:"SMTP_PORT"`
	Username string `envconfig:"SMTP_USERNAME"`
	Password string `envconfig:"SMTP_PASSWORD"`
	From     string `envconfig:"SMTP_FROM"`
}

type AdminConfig struct {
	Email    string `envconfig:"ADMIN_EMAIL" default:"admin@storefront.local"`
	Password string `envconfig:"ADMIN_PASSWORD" default:"admin123"`
}

func LoadEnv() error {
	// A missing .env is normal outside local development; the variables
	// are then expected in the process environment.
	if err := godotenv.Load(); err != nil {
		return nil
	}
	return nil
}

// Load reads the process environment into a Config. Missing critical
// variables (JWT_SECRET, DATABASE_URL) are reported as an error.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if strings.TrimSpace(cfg.DB.URL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch cfg.Storage.Driver {
	case StorageDriverLocal, StorageDriverGCS, StorageDriverS3:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == StorageDriverGCS && cfg.Storage.GCSBucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is required when STORAGE_DRIVER=gcs")
	}
	if cfg.Storage.Driver == StorageDriverS3 && cfg.Storage.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
	}

	return &cfg, nil
}

// Warnings lists non-critical settings that are unset. The application
// starts anyway but the related feature is degraded.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.App.FrontendURL == "" {
		warnings = append(warnings, "FRONTEND_URL not set - CORS may not work correctly")
	}
	if c.App.AdminURL == "" {
		warnings = append(warnings, "ADMIN_URL not set")
	}
	if c.Redis.URL == "" {
		warnings = append(warnings, "REDIS_URL not set - gallery promotion locks are process-local")
	}
	if c.SMTP.Host == "" || c.SMTP.Port == "" || c.SMTP.From == "" {
		warnings = append(warnings, "SMTP_HOST/SMTP_PORT/SMTP_FROM not set - email notifications will not work")
	}
	return warnings
}

// CORSOrigins returns the configured frontend origins, falling back to the
// local React dev server.
func (c *Config) CORSOrigins() []string {
	var origins []string
	for _, o := range []string{c.App.FrontendURL, c.App.AdminURL} {
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
