package config

import (
	"fmt"
	"os"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

const (
	defaultJWTSecret  = "change-this-to-a-secure-secret"
	defaultConfigFile = "config/config.env"
)

// Supported DATABASE_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Supported MAIL_DRIVER values.
const (
	MailKafka = "kafka"
	MailLog   = "log"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort      int    `env:"HTTP_PORT" envDefault:"4000"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:4000"`

	// Storage
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`

	PostgresHost          string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort          int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser          string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass          string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB            string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL           string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32  `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int    `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int    `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`
	SlowQueryThresholdMs  int    `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"storefront"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Mail
	MailDriver string `env:"MAIL_DRIVER" envDefault:"kafka"`
	MailFrom   string `env:"MAIL_FROM" envDefault:"no-reply@storefront.local"`

	// Sessions
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTExpire        time.Duration `env:"JWT_EXPIRE" envDefault:"120h"`
	CookieExpireDays int           `env:"COOKIE_EXPIRE" envDefault:"5"`
	CookieSecure     bool          `env:"COOKIE_SECURE" envDefault:"false"`
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"10"`

	// Domain tuning
	ReviewWriteRetries  int `env:"REVIEW_WRITE_RETRIES" envDefault:"3"`
	ProductsPerPage     int `env:"PRODUCTS_PER_PAGE" envDefault:"8"`
	AuthRateLimitPerMin int `env:"AUTH_RATE_LIMIT_PER_MIN" envDefault:"10"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads the optional dotenv file named by CONFIG_FILE (default
// config/config.env), then parses and validates environment variables.
// Variables already present in the environment win over the file.
func Load() (*Config, error) {
	file := os.Getenv("CONFIG_FILE")
	if file == "" {
		file = defaultConfigFile
	}
	if err := pkgconfig.LoadDotEnv(file); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations that env tags cannot express.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.DatabaseDriver {
	case DriverPostgres, DriverMongo:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMongo, c.DatabaseDriver)
	}
	switch c.MailDriver {
	case MailKafka, MailLog:
	default:
		return fmt.Errorf("MAIL_DRIVER must be %q or %q, got %q", MailKafka, MailLog, c.MailDriver)
	}
	if c.JWTExpire <= 0 {
		return fmt.Errorf("JWT_EXPIRE must be positive, got %s", c.JWTExpire)
	}
	if c.CookieExpireDays <= 0 {
		return fmt.Errorf("COOKIE_EXPIRE must be positive, got %d", c.CookieExpireDays)
	}
	if c.ReviewWriteRetries < 1 {
		return fmt.Errorf("REVIEW_WRITE_RETRIES must be at least 1, got %d", c.ReviewWriteRetries)
	}
	if c.ProductsPerPage < 1 {
		return fmt.Errorf("PRODUCTS_PER_PAGE must be at least 1, got %d", c.ProductsPerPage)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}

	// Outside development an explicitly set, strong JWT secret is required.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}

// CookieTTL is the lifetime of the session cookie.
func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.CookieExpireDays) * 24 * time.Hour
}
