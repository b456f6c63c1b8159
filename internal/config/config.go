// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"time"
)

// Config holds the core runtime configuration.  Each field corresponds to
// an environment variable; optional subsystems (Redis, RabbitMQ, booking
// policy) have their own loaders.
type Config struct {
	Env           string        // application environment (e.g. "dev", "prod")
	Port          string        // HTTP port to listen on
	DBDriver      string        // "mysql" or "postgres"
	DBUser        string        // database username
	DBPass        string        // database password (optional)
	DBHost        string        // database host address
	DBPort        string        // database port number
	DBName        string        // database name
	DBLockTimeout time.Duration // longest wait for a row lock before the request fails as retryable
	JWTSecret     string        // secret used to verify access tokens
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	driver := envStr("DB_DRIVER", "mysql")
	if driver != "mysql" && driver != "postgres" {
		log.Fatalf("invalid DB_DRIVER %q: want mysql or postgres", driver)
	}
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		DBDriver:      driver,
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"), // empty allowed
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		DBLockTimeout: envDur("DB_LOCK_TIMEOUT", 5*time.Second),
		JWTSecret:     must("JWT_SECRET"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
