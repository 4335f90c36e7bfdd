package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/classifiedworker/pkg/errors"
)

const (
	// ModeCountry crawls the single site given by SITE_URL
	ModeCountry = "country"
	// ModeAll discovers every country site from INDEX_URL and crawls them all
	ModeAll = "all"
)

// Config represents the application configuration
type Config struct {
	Mode     string
	SiteURL  string
	IndexURL string

	// Crawl limits
	MaxCategories   int
	MaxListings     int
	MaxPages        int
	CheckpointEvery int

	// Country filters (comma separated substrings of the domain)
	TargetCountries []string
	SkipCountries   []string

	OutputDir       string
	ImageHostMarker string

	// Fetcher politeness
	MinDelay           time.Duration
	MaxDelay           time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RequestTimeout     time.Duration
	RateLimitPerSecond float64
	BlockTime          time.Duration

	ListingConcurrency int
	CountryConcurrency int

	// Proxy configuration
	ProxyService       string
	OxylabsUsername    string
	OxylabsPassword    string
	OxylabsCountry     string
	BrightDataHost     string
	BrightDataPort     string
	BrightDataUsername string
	BrightDataPassword string
	ProxyInsecureTLS   bool
	SkipProxyTest      bool

	// Memcache configuration, empty keeps the visited set in memory
	MemcacheAddr string
	VisitedTTL   time.Duration

	// Redis configuration, empty disables publishing
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Postgres DSN, empty disables the database sink
	DatabaseURL string

	// Status API listen address, empty disables it
	StatusAddr string

	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Mode:     getEnv("MODE", ModeCountry),
		SiteURL:  getEnv("SITE_URL", "https://abidjan.locanto.ci/"),
		IndexURL: getEnv("INDEX_URL", "https://www.locanto.info"),

		MaxCategories:   getEnvInt("MAX_CATEGORIES", 999),
		MaxListings:     getEnvInt("MAX_LISTINGS", 50),
		MaxPages:        getEnvInt("MAX_PAGES", 5),
		CheckpointEvery: getEnvInt("CHECKPOINT_EVERY", 5),

		TargetCountries: splitList(getEnv("TARGET_COUNTRIES", "")),
		SkipCountries:   splitList(getEnv("SKIP_COUNTRIES", "")),

		OutputDir:       getEnv("OUTPUT_DIR", "data"),
		ImageHostMarker: getEnv("IMAGE_HOST_MARKER", "images.locanto"),

		MinDelay:           time.Duration(getEnvInt("MIN_DELAY_MS", 2000)) * time.Millisecond,
		MaxDelay:           time.Duration(getEnvInt("MAX_DELAY_MS", 4000)) * time.Millisecond,
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		RetryBackoff:       time.Duration(getEnvInt("RETRY_BACKOFF_SECONDS", 5)) * time.Second,
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 1),
		BlockTime:          time.Duration(getEnvInt("BLOCK_TIME_SECONDS", 300)) * time.Second,

		ListingConcurrency: getEnvInt("LISTING_CONCURRENCY", 1),
		CountryConcurrency: getEnvInt("COUNTRY_CONCURRENCY", 1),

		ProxyService:       getEnv("PROXY_SERVICE", "oxylabs"),
		OxylabsUsername:    getEnv("OXYLABS_USERNAME", ""),
		OxylabsPassword:    getEnv("OXYLABS_PASSWORD", ""),
		OxylabsCountry:     getEnv("OXYLABS_COUNTRY", "US"),
		BrightDataHost:     getEnv("BRIGHTDATA_HOST", ""),
		BrightDataPort:     getEnv("BRIGHTDATA_PORT", ""),
		BrightDataUsername: getEnv("BRIGHTDATA_USERNAME", ""),
		BrightDataPassword: getEnv("BRIGHTDATA_PASSWORD", ""),
		ProxyInsecureTLS:   getEnvBool("PROXY_INSECURE_TLS", true),
		SkipProxyTest:      getEnvBool("SKIP_PROXY_TEST", false),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),
		VisitedTTL:   time.Duration(getEnvInt("VISITED_TTL_SECONDS", 86400)) * time.Second,

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "listings"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 10000),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		StatusAddr:  getEnv("STATUS_ADDR", ""),

		Environment: getEnv("CLASSIFIED_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the crawler cannot run with
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeCountry:
		if err := validateURL(c.SiteURL); err != nil {
			return errors.NewConfiguration("invalid SITE_URL", err)
		}
	case ModeAll:
		if err := validateURL(c.IndexURL); err != nil {
			return errors.NewConfiguration("invalid INDEX_URL", err)
		}
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown MODE %q", c.Mode), nil)
	}

	if c.MaxCategories < 1 || c.MaxListings < 1 || c.MaxPages < 1 {
		return errors.NewConfiguration("MAX_CATEGORIES, MAX_LISTINGS and MAX_PAGES must be positive", nil)
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return errors.NewConfiguration("MAX_DELAY_MS must be greater than or equal to MIN_DELAY_MS", nil)
	}
	if c.MaxRetries < 1 {
		return errors.NewConfiguration("MAX_RETRIES must be at least 1", nil)
	}
	if c.RateLimitPerSecond <= 0 {
		return errors.NewConfiguration("RATE_LIMIT_PER_SECOND must be positive", nil)
	}
	if c.ListingConcurrency < 1 || c.CountryConcurrency < 1 {
		return errors.NewConfiguration("LISTING_CONCURRENCY and COUNTRY_CONCURRENCY must be at least 1", nil)
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
