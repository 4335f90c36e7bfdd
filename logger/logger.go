package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

// Fields represents log fields
type Fields map[string]interface{}

var (
	// Default is the default logger instance
	Default *Logger
)

// Init initializes the logger with the given configuration
func Init() {
	level := getLogLevel()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	Default = &Logger{logger: logger}

	Default.Debug().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if os.Getenv("CLASSIFIED_ENVIRONMENT") == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// New wraps an existing zerolog logger, mainly for tests that capture output
func New(l zerolog.Logger) *Logger {
	return &Logger{logger: l}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// WithFields creates a new logger with fields
func (l *Logger) WithFields(fields Fields) *Logger {
	newLogger := l.logger.With()
	for k, v := range fields {
		newLogger = newLogger.Interface(k, v)
	}
	return &Logger{logger: newLogger.Logger()}
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal returns a fatal event
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

func defaultLogger() *Logger {
	if Default == nil {
		Init()
	}
	return Default
}

// Debug logs a debug message
func Debug(format string, v ...interface{}) {
	defaultLogger().Debug().Msgf(format, v...)
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	defaultLogger().Info().Msgf(format, v...)
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	defaultLogger().Warn().Msgf(format, v...)
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	defaultLogger().Error().Msgf(format, v...)
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return defaultLogger().logger.GetLevel() <= zerolog.DebugLevel
}

// ForCrawler creates a logger for a specific site crawl
func ForCrawler(site string) *Logger {
	return defaultLogger().WithField("site", site)
}

// ForFetcher creates a logger for the page fetcher
func ForFetcher() *Logger {
	return defaultLogger().WithField("component", "fetcher")
}

// ForWorker creates a logger for the worker
func ForWorker() *Logger {
	return defaultLogger().WithField("component", "worker")
}

// ForPublisher creates a logger for the publisher
func ForPublisher() *Logger {
	return defaultLogger().WithField("component", "publisher")
}

// ForCache creates a logger for the cache
func ForCache() *Logger {
	return defaultLogger().WithField("component", "cache")
}

// ForStorage creates a logger for the output writers
func ForStorage() *Logger {
	return defaultLogger().WithField("component", "storage")
}

// ForAPI creates a logger for the status API
func ForAPI() *Logger {
	return defaultLogger().WithField("component", "api")
}

// ForProxy creates a logger for the proxy manager
func ForProxy() *Logger {
	return defaultLogger().WithField("component", "proxy")
}

// LogError is a convenience method for logging errors with context
func LogError(component string, err error, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	defaultLogger().Error().
		Str("component", component).
		Err(err).
		Msg(msg)
}
