package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultAuthSecret is the development fallback for AUTH_SECRET. It is
// public by definition, so Validate refuses it when ENV=production.
const DefaultAuthSecret = "your-secret-key-change-in-production"

type Config struct {
	// HTTP server
	Port string

	// Environment: "development" or "production". Controls the session
	// cookie's Secure attribute and the secret check below.
	Env string

	// Logging
	LogLevel string

	// Database
	SQLiteDBPath string

	// Session token encryption secret
	AuthSecret string

	// AMQP (optional; empty URL disables export events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	// .env is a local development convenience; absence is not an error.
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/kopilka.db"),
		AuthSecret:   getEnv("AUTH_SECRET", DefaultAuthSecret),
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kopilka"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "export_transactions"),
	}
}

// Production reports whether the deployment is hardened.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Validate checks the configuration and returns a combined error listing
// every violation.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.Env != "development" && c.Env != "production" {
		errors = append(errors, fmt.Sprintf("invalid env '%s': must be 'development' or 'production'", c.Env))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AuthSecret == "" {
		errors = append(errors, "AUTH_SECRET cannot be empty")
	}
	if c.Production() && c.AuthSecret == DefaultAuthSecret {
		errors = append(errors, "AUTH_SECRET is still the development default; set a real secret in production")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
