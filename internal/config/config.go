package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIBaseURL is returned when API_BASE_URL is not set
var ErrMissingAPIBaseURL = errors.New("API_BASE_URL is required")

// Config holds all configuration for the console
type Config struct {
	AppMode  string
	Port     string
	LogLevel string
	API      APIConfig
	Session  SessionConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Cookie   CookieConfig
	Access   AccessConfig
}

// APIConfig describes the upstream SACCO REST API
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig holds visitor session settings
type SessionConfig struct {
	Secret               string
	TTL                  time.Duration
	PendingTTL           time.Duration
	RedirectCooldown     time.Duration
	NotificationInterval time.Duration
	VisitorIdleTTL       time.Duration
}

// StorageConfig selects the durable session storage driver
type StorageConfig struct {
	Driver string // memory | mysql
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CookieConfig holds cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// AccessConfig holds route protection settings
type AccessConfig struct {
	ProtectedPrefixes []string
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only
func FromEnv() (*Config, error) {
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("API_BASE_URL")), "/")
	if baseURL == "" {
		return nil, ErrMissingAPIBaseURL
	}

	cfg := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		API: APIConfig{
			BaseURL: baseURL,
			Timeout: getDuration("API_TIMEOUT", 30*time.Second),
		},
		Session:  loadSessionConfig(appMode),
		Storage:  StorageConfig{Driver: strings.ToLower(getEnv("STORAGE_DRIVER", "memory"))},
		Database: loadDatabaseConfig(appMode),
		Cookie:   loadCookieConfig(appMode),
		Access: AccessConfig{
			ProtectedPrefixes: getList("PROTECTED_PREFIXES", []string{"/dashboard"}),
		},
	}

	if cfg.Storage.Driver != "memory" && cfg.Storage.Driver != "mysql" {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER: '%s' (must be 'memory' or 'mysql')", cfg.Storage.Driver)
	}
	if cfg.IsProd() && cfg.Session.Secret == "" {
		return nil, errors.New("SESSION_SECRET is required in prod mode")
	}
	if cfg.Session.Secret == "" {
		cfg.Session.Secret = "dev_console_secret"
	}

	return cfg, nil
}

func loadSessionConfig(mode string) SessionConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return SessionConfig{
		Secret:               getEnv(prefix+"SESSION_SECRET", os.Getenv("SESSION_SECRET")),
		TTL:                  getDuration("SESSION_TTL", 7*24*time.Hour),
		PendingTTL:           getDuration("PENDING_TTL", 15*time.Minute),
		RedirectCooldown:     getDuration("REDIRECT_COOLDOWN", 5*time.Second),
		NotificationInterval: getDuration("NOTIFICATION_POLL_INTERVAL", 30*time.Second),
		VisitorIdleTTL:       getDuration("VISITOR_IDLE_TTL", 2*time.Hour),
	}
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "sacco_console"),

		MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	secure, _ := strconv.ParseBool(getEnv(prefix+"COOKIE_SECURE", "false"))

	return CookieConfig{
		Secure:   secure,
		SameSite: getEnv("COOKIE_SAMESITE", "lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return def
	}
	return cleaned
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://console.sacco.local"
	}
	return origins
}
