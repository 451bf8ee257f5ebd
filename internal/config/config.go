package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Common
	Env      string
	LogLevel string
	Port     string
	// Refresh plan
	StockSymbols       []string
	CryptoSymbols      []string
	UpdateInterval     time.Duration
	FetchTimeout       time.Duration
	MaxRetries         int
	Priority           int
	StalenessThreshold time.Duration
	// Provider
	Provider       string
	YahooBaseURL   string
	MaxConcurrency int
	// Snapshots
	SnapshotBackend string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SnapshotTTL     time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func durSec(key string, defSec int) time.Duration {
	return time.Duration(atoiDef(getEnv(key, strconv.Itoa(defSec)), defSec)) * time.Second
}

func csv(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads environment variables and applies defaults. Bounds are
// enforced when the refresh plan is built, not here.
func Load() Config {
	return Config{
		Env:                getEnv("ENV", "local"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Port:               getEnv("PORT", "8080"),
		StockSymbols:       csv("STOCK_SYMBOLS"),
		CryptoSymbols:      csv("CRYPTO_SYMBOLS"),
		UpdateInterval:     durSec("UPDATE_INTERVAL_SEC", 600),
		FetchTimeout:       durSec("FETCH_TIMEOUT_SEC", 10),
		MaxRetries:         atoiDef(getEnv("MAX_RETRIES", "3"), 3),
		Priority:           atoiDef(getEnv("PRIORITY", "0"), 0),
		StalenessThreshold: durSec("STALENESS_THRESHOLD_SEC", 0),
		Provider:           getEnv("PROVIDER", "yahoo"),
		YahooBaseURL:       getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		MaxConcurrency:     atoiDef(getEnv("FETCH_MAX_CONCURRENCY", "4"), 4),
		SnapshotBackend:    getEnv("SNAPSHOT_BACKEND", "none"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            atoiDef(getEnv("REDIS_DB", "0"), 0),
		SnapshotTTL:        durSec("SNAPSHOT_TTL_SEC", 24*60*60),
	}
}
