package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ReportingCurrency string
	LogLevel          string

	// Exchange-rate cache.
	RateAPIBaseURL     string
	RateStorePath      string
	RateLookbackDays   int
	ProvisionalRateTTL time.Duration
	RateRequestTimeout time.Duration

	// Persisted reporter registry.
	RegistryDir string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	Cfg = &AppConfig{
		ReportingCurrency:  getEnv("REPORTING_CURRENCY", "PLN"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateAPIBaseURL:     getEnv("RATE_API_BASE_URL", "https://api.nbp.pl"),
		RateStorePath:      getEnv("RATE_STORE_PATH", filepath.Join(home, ".cache", "pitfolio", "rates.db")),
		RateLookbackDays:   getEnvAsInt("RATE_LOOKBACK_DAYS", 7),
		ProvisionalRateTTL: getEnvAsDuration("PROVISIONAL_RATE_TTL", time.Hour),
		RateRequestTimeout: getEnvAsDuration("RATE_REQUEST_TIMEOUT", 30*time.Second),
		RegistryDir:        getEnv("REGISTRY_DIR", filepath.Join(home, ".pitfolio")),
	}

	log.Printf("Configuration loaded: ReportingCurrency=%s, LogLevel=%s, RateStorePath=%s, RegistryDir=%s",
		Cfg.ReportingCurrency, Cfg.LogLevel, Cfg.RateStorePath, Cfg.RegistryDir)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
