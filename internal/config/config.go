// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"tradegate/internal/broker"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	Port string
	Host string

	// Database settings
	DBPath string

	// Operator API key; empty disables API auth (local development only).
	APIKey string

	// EncryptionSecret derives the key protecting stored broker
	// credentials. Must be at least 32 characters.
	EncryptionSecret string

	// Broker environment (UAT or PRODUCTION).
	BrokerEnv broker.Environment

	// Scheduled job settings
	SessionSweepSpec string
	CacheRefreshSpec string
	RefreshExchanges []string
	DisableScheduler bool

	// DemoMode seeds placeholder clients on an empty database.
	DemoMode bool
}

// New creates a new Config with values from environment variables or defaults.
func New() *Config {
	env := broker.EnvUAT
	if getEnv("BROKER_ENV", "UAT") == "PRODUCTION" {
		env = broker.EnvProduction
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		Host:             getEnv("HOST", "localhost"),
		DBPath:           getEnv("DB_PATH", filepath.Join("data", "tradegate.db")),
		APIKey:           os.Getenv("API_KEY"),
		EncryptionSecret: getEnv("ENCRYPTION_SECRET", "change-me-in-production-32chars!"),
		BrokerEnv:        env,
		// Broker tokens die at 06:00 IST; sweep just after.
		SessionSweepSpec: getEnv("SESSION_SWEEP_SPEC", "30 6 * * *"),
		CacheRefreshSpec: getEnv("CACHE_REFRESH_SPEC", "15 8 * * 1-5"),
		RefreshExchanges: []string{"NSE", "BSE"},
		DisableScheduler: getBool("DISABLE_SCHEDULER", false),
		DemoMode:         getBool("DEMO_MODE", false),
	}
}

// Validate rejects configurations that cannot run safely.
func (c *Config) Validate() error {
	if len(c.EncryptionSecret) < 32 {
		return fmt.Errorf("ENCRYPTION_SECRET must be at least 32 characters")
	}
	if c.BrokerEnv == broker.EnvProduction && c.APIKey == "" {
		return fmt.Errorf("API_KEY is required when BROKER_ENV is PRODUCTION")
	}
	if c.BrokerEnv == broker.EnvProduction && c.DemoMode {
		return fmt.Errorf("DEMO_MODE cannot be combined with BROKER_ENV=PRODUCTION")
	}
	return nil
}

// Address returns the full address to bind the server to.
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
