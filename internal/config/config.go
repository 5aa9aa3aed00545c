package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/plot-weather/internal/dateutil"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type AppConfig struct {
	Port string

	// StoreBackend selects the data store: postgres, sqlite or memory.
	StoreBackend string
	DatabaseDSN  string
	DBMaxConns   int
	DBMinConns   int
	SQLitePath   string

	// Location is the reporting time zone of measurement_time.
	Location    *time.Location
	WeekdayLang dateutil.Lang

	// Phone clients authenticate with a fixed token header and report their
	// drawable area in a second header.
	PhoneTokenHeader     string
	PhoneToken           string
	PhoneImageSizeHeader string

	HTTPTimeout    time.Duration
	HealthInterval time.Duration

	// Data store retries, applied by the resilient store wrapper.
	BreakerMaxRetries      int
	BreakerInitialInterval time.Duration
	BreakerMaxInterval     time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	Debug bool
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.StoreBackend = strings.ToLower(getenvDefault("STORE_BACKEND", BackendPostgres))
	switch cfg.StoreBackend {
	case BackendPostgres, BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}
	cfg.DatabaseDSN = os.Getenv("DATABASE_DSN")
	if cfg.StoreBackend == BackendPostgres && cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN is required for the postgres backend")
	}
	cfg.DBMaxConns = getenvInt("DB_MAX_CONNS", 10)
	cfg.DBMinConns = getenvInt("DB_MIN_CONNS", 1)
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "data/weather.db")

	loc, err := time.LoadLocation(getenvDefault("TIMEZONE", "Asia/Tokyo"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	cfg.WeekdayLang = dateutil.Lang(strings.ToLower(getenvDefault("LANG_WEEKDAY", string(dateutil.LangEN))))
	if cfg.WeekdayLang != dateutil.LangEN && cfg.WeekdayLang != dateutil.LangJA {
		return nil, fmt.Errorf("invalid LANG_WEEKDAY %q", cfg.WeekdayLang)
	}

	cfg.PhoneTokenHeader = getenvDefault("PHONE_TOKEN_HEADER", "X-Request-Phone-Token")
	cfg.PhoneToken = os.Getenv("PHONE_TOKEN")
	if cfg.PhoneToken == "" {
		log.Printf("WARN: PHONE_TOKEN is empty; phone endpoints will reject every request")
	}
	cfg.PhoneImageSizeHeader = getenvDefault("PHONE_IMAGE_SIZE_HEADER", "X-Request-Image-Size")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.HealthInterval, err = getenvDuration("HEALTH_INTERVAL", "1m"); err != nil {
		return nil, err
	}

	cfg.BreakerMaxRetries = getenvInt("BREAKER_MAX_RETRIES", 2)
	if cfg.BreakerInitialInterval, err = getenvDuration("BREAKER_INITIAL_INTERVAL", "200ms"); err != nil {
		return nil, err
	}
	if cfg.BreakerMaxInterval, err = getenvDuration("BREAKER_MAX_INTERVAL", "2s"); err != nil {
		return nil, err
	}

	cfg.RateLimitRPS = getenvFloat("RATE_LIMIT_RPS", 20)
	cfg.RateLimitBurst = getenvInt("RATE_LIMIT_BURST", 40)

	cfg.Debug = getenvBool("DEBUG", false)

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
