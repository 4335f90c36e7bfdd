package config

import (
	"testing"
	"time"

	"sjsage522/classifiedworker/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, ModeCountry, config.Mode)
	assert.Equal(t, "https://abidjan.locanto.ci/", config.SiteURL)
	assert.Equal(t, 999, config.MaxCategories)
	assert.Equal(t, 50, config.MaxListings)
	assert.Equal(t, 5, config.MaxPages)
	assert.Equal(t, 2*time.Second, config.MinDelay)
	assert.Equal(t, 4*time.Second, config.MaxDelay)
	assert.Equal(t, "images.locanto", config.ImageHostMarker)
	assert.Empty(t, config.RedisAddr)
	assert.Nil(t, config.TargetCountries)
	assert.NoError(t, config.Validate())

	// Test with environment variables
	t.Setenv("MODE", ModeAll)
	t.Setenv("INDEX_URL", "https://example.com/index")
	t.Setenv("MAX_LISTINGS", "10")
	t.Setenv("MIN_DELAY_MS", "100")
	t.Setenv("MAX_DELAY_MS", "250")
	t.Setenv("TARGET_COUNTRIES", " ci, NG ,,gh")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("PROXY_INSECURE_TLS", "false")
	t.Setenv("RATE_LIMIT_PER_SECOND", "0.5")

	config = LoadConfig()
	assert.Equal(t, ModeAll, config.Mode)
	assert.Equal(t, "https://example.com/index", config.IndexURL)
	assert.Equal(t, 10, config.MaxListings)
	assert.Equal(t, 100*time.Millisecond, config.MinDelay)
	assert.Equal(t, 250*time.Millisecond, config.MaxDelay)
	assert.Equal(t, []string{"ci", "ng", "gh"}, config.TargetCountries)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 2, config.RedisDB)
	assert.False(t, config.ProxyInsecureTLS)
	assert.Equal(t, 0.5, config.RateLimitPerSecond)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_PAGES", "many")
	config := LoadConfig()
	assert.Equal(t, 5, config.MaxPages)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "sometimes" }},
		{"relative site url", func(c *Config) { c.SiteURL = "/ci" }},
		{"ftp index url", func(c *Config) { c.Mode = ModeAll; c.IndexURL = "ftp://locanto.info" }},
		{"zero pages", func(c *Config) { c.MaxPages = 0 }},
		{"inverted delays", func(c *Config) { c.MaxDelay = c.MinDelay - time.Millisecond }},
		{"no retries", func(c *Config) { c.MaxRetries = 0 }},
		{"zero rate", func(c *Config) { c.RateLimitPerSecond = 0 }},
		{"zero concurrency", func(c *Config) { c.ListingConcurrency = 0 }},
		{"redis without streams", func(c *Config) { c.RedisAddr = "localhost:6379"; c.RedisStreamCount = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := LoadConfig()
			tt.mutate(config)
			err := config.Validate()
			assert.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
		})
	}
}
