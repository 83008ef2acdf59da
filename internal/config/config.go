package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"go-stock-ledger/internal/service"
)

// Config holds runtime configuration read from the environment (and an optional .env file).
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`
	Port   string `envconfig:"PORT" default:"3000"`

	DatabaseURL    string `envconfig:"DATABASE_URL"`
	DBHost         string `envconfig:"DB_HOST" default:"localhost"`
	DBUser         string `envconfig:"DB_USER" default:"postgres"`
	DBPassword     string `envconfig:"DB_PASSWORD"`
	DBName         string `envconfig:"DB_NAME" default:"stock_ledger"`
	DBPort         string `envconfig:"DB_PORT" default:"5432"`
	DBTimeZone     string `envconfig:"DB_TIMEZONE" default:"UTC"`
	DBMaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
	DBMaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	DBLogQueries   bool   `envconfig:"DB_LOG_QUERIES" default:"false"`

	JWTSecret string        `envconfig:"JWT_SECRET"`
	JWTExpiry time.Duration `envconfig:"JWT_EXPIRY" default:"24h"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin123"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	RedisURL      string `envconfig:"REDIS_URL"`
	EventsChannel string `envconfig:"EVENTS_CHANNEL" default:"stock-events"`

	BatchWorkers          int           `envconfig:"LEDGER_BATCH_WORKERS" default:"8"`
	BatchTimeout          time.Duration `envconfig:"LEDGER_BATCH_TIMEOUT" default:"30s"`
	BatchFailureLimit     int           `envconfig:"LEDGER_BATCH_FAILURE_LIMIT" default:"200"`
	HistoryBatchThreshold int           `envconfig:"LEDGER_HISTORY_BATCH_THRESHOLD" default:"500"`
	AllowNegativeReversal bool          `envconfig:"LEDGER_ALLOW_NEGATIVE_REVERSAL" default:"false"`

	LowStockThreshold int           `envconfig:"LOW_STOCK_THRESHOLD" default:"10"`
	StatsCacheTTL     time.Duration `envconfig:"STATS_CACHE_TTL" default:"30s"`
	CORSOrigins       string        `envconfig:"CORS_ORIGINS" default:"*"`
}

// Load reads .env when present and then processes the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set in production")
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("config: LEDGER_BATCH_WORKERS must be >= 1, got %d", c.BatchWorkers)
	}
	if c.BatchTimeout <= 0 {
		return errors.New("config: LEDGER_BATCH_TIMEOUT must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.AppEnv, "production")
}

// DSN returns DATABASE_URL or a postgres keyword DSN assembled from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBTimeZone,
	)
}

// Secret falls back to a development-only key when JWT_SECRET is unset.
func (c *Config) Secret() []byte {
	if c.JWTSecret == "" {
		return []byte("dev-only-secret-change-me")
	}
	return []byte(c.JWTSecret)
}

// LedgerConfig returns the ledger tuning knobs.
func (c *Config) LedgerConfig() service.LedgerConfig {
	return service.LedgerConfig{
		BatchWorkers:          c.BatchWorkers,
		BatchTimeout:          c.BatchTimeout,
		BatchFailureLimit:     c.BatchFailureLimit,
		HistoryBatchThreshold: c.HistoryBatchThreshold,
		AllowNegativeReversal: c.AllowNegativeReversal,
	}
}
