package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Broker   BrokerConfig
	Geo      GeoConfig
	App      AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// CacheConfig holds the Redis caching layer configuration.
// TTL bounds the resolution cache; DedupTTL bounds the event
// fingerprint window.
type CacheConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	TTL      time.Duration
	DedupTTL time.Duration
}

// BrokerConfig holds the optional RabbitMQ mirror for the event bus.
// An empty URL disables the mirror entirely.
type BrokerConfig struct {
	URL      string
	Exchange string
}

// GeoConfig holds the IP geolocation provider configuration.
// An empty endpoint disables lookups; resolution degrades to unknowns.
type GeoConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	BaseURL       string // Base URL for generating short links
	DefaultDomain string // Domain substituted for localhost/loopback hosts
	SlugLen       int
	SlugRetries   int
	IPHashSecret  string // Salt for hashing visitor IPs; raw IPs are never stored
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "linklytics"),
			Password: getEnv("DB_PASSWORD", "linklytics_secret"),
			DBName:   getEnv("DB_NAME", "linklytics"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Cache: CacheConfig{
			Host:     getEnv("RDB_HOST", "localhost"),
			Port:     getEnv("RDB_PORT", "6379"),
			Password: getEnv("RDB_PASSWORD", ""),
			TTL:      getEnvDuration("CACHE_TTL", 300*time.Second),
			DedupTTL: getEnvDuration("DEDUP_TTL", 30*time.Second),
		},
		Broker: BrokerConfig{
			URL:      getEnv("BROKER_URL", ""),
			Exchange: getEnv("BROKER_EXCHANGE", "link.events"),
		},
		Geo: GeoConfig{
			Endpoint: getEnv("GEO_ENDPOINT", ""),
			Timeout:  getEnvDuration("GEO_TIMEOUT", 2*time.Second),
		},
		App: AppConfig{
			BaseURL:       getEnv("BASE_URL", "http://localhost:8080"),
			DefaultDomain: getEnv("DEFAULT_DOMAIN", "localhost"),
			SlugLen:       getEnvInt("SLUG_LENGTH", 7),
			SlugRetries:   getEnvInt("SLUG_MAX_RETRIES", 3),
			IPHashSecret:  getEnv("IP_HASH_SECRET", "linklytics-dev"),
		},
	}, nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func (c *CacheConfig) ConnectionString() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s/0", c.User, c.Password, c.Host, c.Port)
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
