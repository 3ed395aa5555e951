// Package config loads server settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port           int
	DBPath         string
	LogLevel       string
	Timezone       string
	SyncInterval   time.Duration
	SyncEnabled    bool
	AllowedOrigins []string
}

// Defaults.
const (
	DefaultPort         = 8080
	DefaultDBPath       = "pos.db"
	DefaultLogLevel     = "info"
	DefaultSyncInterval = 5 * time.Minute
)

// Load loads configuration from environment variables and .env file.
// A missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:           getenvInt("POS_PORT", DefaultPort),
		DBPath:         getenv("POS_DB_PATH", DefaultDBPath),
		LogLevel:       strings.ToLower(getenv("POS_LOG_LEVEL", DefaultLogLevel)),
		Timezone:       strings.TrimSpace(getenv("POS_TIMEZONE", "")),
		SyncInterval:   getenvDuration("POS_SYNC_INTERVAL", DefaultSyncInterval),
		SyncEnabled:    getenvBool("POS_SYNC_ENABLED", true),
		AllowedOrigins: parseList(getenv("POS_ALLOWED_ORIGINS", "")),
	}
}

// Location resolves Timezone. Empty or "Local" is the process's local zone.
func (c Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid POS_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
