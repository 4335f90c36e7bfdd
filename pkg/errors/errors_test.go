package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCrawlerErrorMessage(t *testing.T) {
	err := NewNetwork("www.locanto.ci", "fetch failed", errors.New("connection reset"))
	assert.Equal(t, "[network] www.locanto.ci: fetch failed - connection reset", err.Error())

	err = NewValidation("config", "SITE_URL is required")
	assert.Equal(t, "[validation] config: SITE_URL is required", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, NewNetwork("p", "m", nil).IsRetryable())
	assert.False(t, NewRateLimit("p", time.Minute).IsRetryable())
	assert.False(t, NewParsing("p", "m", nil).IsRetryable())

	wrapped := fmt.Errorf("attempt 1: %w", NewNetwork("p", "m", nil))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestIsType(t *testing.T) {
	inner := errors.New("boom")
	err := fmt.Errorf("writing: %w", NewStorage("json", "write failed", inner))

	assert.True(t, IsType(err, ErrorTypeStorage))
	assert.False(t, IsType(err, ErrorTypeCache))
	assert.ErrorIs(t, err, inner)
}
