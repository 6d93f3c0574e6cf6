package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Fetcher backends.
const (
	FetcherHTTP   = "http"
	FetcherChrome = "chrome"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RawDataPath       string
	ProcessedDataPath string

	SearchURL         string
	TargetCount       int
	MinRating         float64
	TopN              int
	MaxPages          int
	RateLimitMs       int
	RequestTimeoutSec int
	MaxRetries        int
	Fetcher           string
	ChromeBin         string

	SkipMalformed bool
	LogLevel      string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "etl"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "etl123"),
		PostgresDB:       getEnv("POSTGRES_DB", "books_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RawDataPath:       getEnv("RAW_DATA_PATH", "./data/raw"),
		ProcessedDataPath: getEnv("PROCESSED_DATA_PATH", "./data/processed"),

		SearchURL:         getEnv("SEARCH_URL", "https://www.amazon.com/s?k=self+improvement+books"),
		TargetCount:       getEnvInt("TARGET_COUNT", 100),
		MinRating:         getEnvFloat("MIN_RATING", 4.5),
		TopN:              getEnvInt("TOP_N", 10),
		MaxPages:          getEnvInt("MAX_PAGES", 20),
		RateLimitMs:       getEnvInt("RATE_LIMIT_MS", 1500),
		RequestTimeoutSec: getEnvInt("REQUEST_TIMEOUT_SEC", 30),
		MaxRetries:        getEnvInt("MAX_RETRIES", 5),
		Fetcher:           strings.ToLower(getEnv("FETCHER", FetcherHTTP)),
		ChromeBin:         getEnv("CHROME_BIN", ""),

		SkipMalformed: getEnvBool("TRANSFORM_SKIP_MALFORMED", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every setting that cannot drive a run.
func (c *Config) Validate() error {
	var errs []error

	if c.TargetCount < 1 {
		errs = append(errs, fmt.Errorf("TARGET_COUNT must be >= 1, got %d", c.TargetCount))
	}
	if c.TopN < 1 {
		errs = append(errs, fmt.Errorf("TOP_N must be >= 1, got %d", c.TopN))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("MAX_PAGES must be >= 1, got %d", c.MaxPages))
	}
	if c.MinRating < 0 || c.MinRating > 5 {
		errs = append(errs, fmt.Errorf("MIN_RATING must be within 0-5, got %.2f", c.MinRating))
	}
	if c.RateLimitMs < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MS must be >= 0, got %d", c.RateLimitMs))
	}
	if c.Fetcher != FetcherHTTP && c.Fetcher != FetcherChrome {
		errs = append(errs, fmt.Errorf("FETCHER must be %q or %q, got %q", FetcherHTTP, FetcherChrome, c.Fetcher))
	}
	if u, err := url.Parse(c.SearchURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SEARCH_URL is not an absolute URL: %q", c.SearchURL))
	}
	if c.RawDataPath == "" || c.ProcessedDataPath == "" {
		errs = append(errs, errors.New("RAW_DATA_PATH and PROCESSED_DATA_PATH must be set"))
	}

	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
