package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeStorage represents JSON/CSV/database write errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeStatus represents non-retryable HTTP status responses
	ErrorTypeStatus ErrorType = "status"
)

// CrawlerError represents a crawler-specific error. Provider is the site
// (host) or component the error belongs to.
type CrawlerError struct {
	Type     ErrorType
	Provider string
	Message  string
	Err      error
	Time     time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Provider, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *CrawlerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// IsType reports whether any error in err's chain is a CrawlerError of the given type
func IsType(err error, errType ErrorType) bool {
	var ce *CrawlerError
	if errors.As(err, &ce) {
		return ce.Type == errType
	}
	return false
}

// IsRetryable reports whether err is a retryable CrawlerError
func IsRetryable(err error) bool {
	var ce *CrawlerError
	if errors.As(err, &ce) {
		return ce.IsRetryable()
	}
	return false
}

// New creates a new CrawlerError
func New(errType ErrorType, provider, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:     errType,
		Provider: provider,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeNetwork, provider, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeParsing, provider, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(provider string, duration time.Duration) *CrawlerError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, provider, message, nil)
}

// NewCache creates a new cache error
func NewCache(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeCache, provider, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(provider, message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, provider, message, err)
}

// NewValidation creates a new validation error
func NewValidation(provider, message string) *CrawlerError {
	return New(ErrorTypeValidation, provider, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// NewStatus creates a new error for an unexpected HTTP status
func NewStatus(provider string, statusCode int) *CrawlerError {
	return New(ErrorTypeStatus, provider, fmt.Sprintf("unexpected status code: %d", statusCode), nil)
}

// NewStorage creates a new storage error
func NewStorage(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeStorage, provider, message, err)
}
