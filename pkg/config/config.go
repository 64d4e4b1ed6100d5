package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds every runtime setting of the site backend.
type Config struct {
	// Environment
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Port        string `envconfig:"PORT" default:"3000"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	SiteURL     string `envconfig:"SITE_URL" default:"http://localhost:5173"`

	// CORS
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Sessions
	JWTSecret  string        `envconfig:"JWT_SECRET" default:"your-secret-key-change-in-production"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	// Content store
	UseLocalDB   bool   `envconfig:"USE_LOCAL_DB" default:"true"`
	LocalDataDir string `envconfig:"LOCAL_DATA_DIR" default:"./data"`
	PostgresDSN  string `envconfig:"POSTGRES_DSN"`

	// Interactions may live in DynamoDB instead of the primary store.
	InteractionsBackend     string        `envconfig:"INTERACTIONS_BACKEND" default:"primary"`
	DynamoInteractionsTable string        `envconfig:"DYNAMODB_INTERACTIONS_TABLE" default:"story_interactions"`
	AWSRegion               string        `envconfig:"AWS_REGION" default:"us-east-1"`
	MediaBucket             string        `envconfig:"MEDIA_BUCKET"`
	MediaPublicBaseURL      string        `envconfig:"MEDIA_PUBLIC_BASE_URL"`
	MediaUploadURLValidity  time.Duration `envconfig:"MEDIA_UPLOAD_URL_VALIDITY" default:"15m"`

	// Payment gateway
	StripeSecretKey         string `envconfig:"STRIPE_SECRET_KEY"`
	StripePublishableKey    string `envconfig:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret     string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeMembershipPriceID string `envconfig:"STRIPE_MEMBERSHIP_PRICE_ID"`
	DonationLinkURL         string `envconfig:"DONATION_LINK_URL"`
	MembershipLinkURL       string `envconfig:"MEMBERSHIP_LINK_URL"`

	// Email
	ContactEmail string `envconfig:"CONTACT_EMAIL" default:"info@betiharisociety.org"`
	EmailFrom    string `envconfig:"EMAIL_FROM" default:"Beti Hari Society <no-reply@betiharisociety.org>"`
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`

	// Default administrator created on first start
	DefaultAdminEmail     string `envconfig:"DEFAULT_ADMIN_EMAIL" default:"admin@betiharisociety.org"`
	DefaultAdminPassword  string `envconfig:"DEFAULT_ADMIN_PASSWORD"`
	DefaultAdminFirstName string `envconfig:"DEFAULT_ADMIN_FIRST_NAME" default:"Site"`
	DefaultAdminLastName  string `envconfig:"DEFAULT_ADMIN_LAST_NAME" default:"Administrator"`

	// Fetch timeout applied to one-shot content reads
	FetchTimeout       time.Duration `envconfig:"FETCH_TIMEOUT" default:"5s"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
}

// LoadConfig loads .env files for the current environment and binds the
// process environment onto a Config.
func LoadConfig() (*Config, error) {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// Existing variables win over file values.
	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.normalize()

	if cfg.IsProduction() {
		if cfg.PostgresDSN != "" {
			cfg.UseLocalDB = false
		} else {
			log.Warn("production environment is using the local file store, configure POSTGRES_DSN")
		}
		cfg.Debug = false
	}

	return cfg, nil
}

// normalize trims values that commonly arrive with stray whitespace from env sources.
func (c *Config) normalize() {
	c.PostgresDSN = strings.TrimSpace(c.PostgresDSN)
	c.SiteURL = strings.TrimRight(strings.TrimSpace(c.SiteURL), "/")
	c.StripeSecretKey = strings.TrimSpace(c.StripeSecretKey)
	c.StripePublishableKey = strings.TrimSpace(c.StripePublishableKey)
	c.DonationLinkURL = strings.TrimSpace(c.DonationLinkURL)
	c.MembershipLinkURL = strings.TrimSpace(c.MembershipLinkURL)
	c.InteractionsBackend = strings.ToLower(strings.TrimSpace(c.InteractionsBackend))
	c.DefaultAdminEmail = strings.ToLower(strings.TrimSpace(c.DefaultAdminEmail))

	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c.AllowedOrigins = origins
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	cachedErr    error
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless platforms it initializes once per cold start and is reused
// across warm invocations.
func GetCached() (*Config, error) {
	configOnce.Do(func() {
		cachedConfig, cachedErr = LoadConfig()
	})
	return cachedConfig, cachedErr
}

// Validate checks the settings that would make the server unusable or unsafe.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		log.Warn("using the default JWT secret, not suitable for production")
	}

	if !c.UseLocalDB && c.PostgresDSN == "" {
		return fmt.Errorf("database configuration incomplete: set POSTGRES_DSN or USE_LOCAL_DB=true")
	}

	switch c.InteractionsBackend {
	case "primary", "":
	case "dynamodb":
		if c.DynamoInteractionsTable == "" {
			return fmt.Errorf("DYNAMODB_INTERACTIONS_TABLE is required when INTERACTIONS_BACKEND=dynamodb")
		}
	default:
		return fmt.Errorf("unknown INTERACTIONS_BACKEND %q", c.InteractionsBackend)
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment reports whether the server runs in development.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// MailerConfigured reports whether outbound email can be sent.
func (c *Config) MailerConfigured() bool {
	return c.SMTPHost != "" && c.EmailFrom != ""
}

// MediaConfigured reports whether presigned media uploads are available.
func (c *Config) MediaConfigured() bool {
	return c.MediaBucket != ""
}

// loadEnvFile loads a .env file into the environment without overriding existing values.
func loadEnvFile(filename string) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return
	}
	if err := godotenv.Load(filename); err != nil {
		log.WithError(err).WithField("file", filename).Warn("failed to load env file")
	}
}
