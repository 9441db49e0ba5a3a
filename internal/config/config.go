package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Supported flash stores.
const (
	FlashCookie = "cookie"
	FlashRedis  = "redis"
)

// Config holds the runtime configuration of the contacts service. The values are taken from the
// system's environment variables.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"`
	Port       int    `envconfig:"PORT" default:"8080"`
	GinLogging string `envconfig:"GIN_LOGGING" default:"on"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	DBDriver   string `envconfig:"DBDRIVER" default:"mysql"`
	DBHost     string `envconfig:"DBHOST" default:"localhost:3306"`
	DBUser     string `envconfig:"DBUSER"`
	DBPassword string `envconfig:"DBPWD"`
	DBName     string `envconfig:"DBNAME" default:"test"`
	// DBDSN replaces the DSN built from the other DB settings when set.
	DBDSN string `envconfig:"DBDSN"`

	FlashStore string        `envconfig:"FLASH_STORE" default:"cookie"`
	RedisAddr  string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	FlashTTL   time.Duration `envconfig:"FLASH_TTL" default:"5m"`

	// RateLimit is the number of requests per minute and client IP. Zero turns limiting off.
	RateLimit int `envconfig:"RATE_LIMIT" default:"0"`
}

// Load reads an optional .env file from the working directory and then processes the
// environment variables.
//
// Usage example:
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 go run ./cmd/service
func Load() (*Config, error) {
	// The .env file is optional; variables already set in the environment win.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the combinations of values that envconfig cannot check on its own.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DBDRIVER %q", c.DBDriver)
	}
	switch c.FlashStore {
	case FlashCookie, FlashRedis:
	default:
		return fmt.Errorf("unsupported FLASH_STORE %q", c.FlashStore)
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}
	if c.RateLimit < 0 {
		return errors.New("RATE_LIMIT must not be negative")
	}
	return nil
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	switch c.DBDriver {
	case DriverPostgres:
		return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
			c.DBUser, c.DBPassword, c.DBHost, c.DBName)
	case DriverSQLite:
		return c.DBName + ".db"
	default:
		// clientFoundRows makes updates that change nothing still count the matched row.
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&clientFoundRows=true",
			c.DBUser, c.DBPassword, c.DBHost, c.DBName)
	}
}

// IsProduction returns true when the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// RequestLogging returns false when HTTP request logging has been turned off with GIN_LOGGING=off.
func (c *Config) RequestLogging() bool {
	return !strings.EqualFold(c.GinLogging, "off")
}
