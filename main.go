package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/classifiedworker/config"
	"sjsage522/classifiedworker/internal/crawler"
	"sjsage522/classifiedworker/logger"
	"sjsage522/classifiedworker/services/api"
	"sjsage522/classifiedworker/services/cache"
	"sjsage522/classifiedworker/services/proxy"
	"sjsage522/classifiedworker/services/publisher"
	"sjsage522/classifiedworker/services/storage"
	"sjsage522/classifiedworker/services/worker"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	runID := uuid.NewString()
	log.Info().
		Str("run_id", runID).
		Str("environment", cfg.Environment).
		Str("mode", cfg.Mode).
		Int("max_categories", cfg.MaxCategories).
		Int("max_listings", cfg.MaxListings).
		Int("max_pages", cfg.MaxPages).
		Msg("Starting application")

	// Set up context cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proxyManager, err := proxy.NewManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid proxy configuration")
	}
	if !cfg.SkipProxyTest {
		if err := proxyManager.Test(ctx); err != nil {
			log.Fatal().Err(err).Str("service", proxyManager.Service()).Msg("Proxy test failed")
		}
	}

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	fetcher := crawler.NewFetcher(crawler.FetcherConfig{
		Session:      runID,
		Client:       proxyManager.Client(),
		Cache:        services.Cache,
		MinDelay:     cfg.MinDelay,
		MaxDelay:     cfg.MaxDelay,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		RateLimit:    cfg.RateLimitPerSecond,
		BlockTime:    cfg.BlockTime,
		VisitedTTL:   cfg.VisitedTTL,
	})

	tracker := api.NewTracker(runID, cfg.Mode)
	if cfg.StatusAddr != "" {
		statusServer := api.NewServer(cfg.StatusAddr, tracker)
		go func() {
			if err := statusServer.Start(); err != nil {
				log.Error().Err(err).Msg("Status API stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			statusServer.Shutdown(shutdownCtx)
		}()
	}

	var sink worker.ListingSink
	if services.Postgres != nil {
		sink = services.Postgres
	}

	w := worker.NewWorker(cfg, runID, fetcher, services.Publisher, sink, tracker)
	report, err := w.Run(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		log.Warn().Msg("Interrupted, partial results saved")
	case err != nil:
		log.Error().Err(err).Msg("Crawl failed")
		services.Cleanup()
		os.Exit(1)
	default:
		log.Info().
			Int("countries", report.SuccessfulCountries).
			Int("listings", report.TotalListings).
			Msg("Crawl completed")
	}

	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Postgres  *storage.PostgresWriter
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
		s.Publisher = nil
	}
	if s.Postgres != nil {
		s.Postgres.Close()
		s.Postgres = nil
	}
}

// initializeServices initializes the optional backing services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Visited set: shared memcache when configured, process memory otherwise
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Msg("Memcache unreachable, using in-memory visited set")
			services.Cache = cache.NewMemoryCache()
		} else {
			services.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	} else {
		services.Cache = cache.NewMemoryCache()
	}

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			return nil, err
		}
		services.Publisher = redisPublisher

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresWriter(ctx, cfg.DatabaseURL)
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			services.Cleanup()
			return nil, err
		}
		services.Postgres = pg

		logger.Info("Connected to PostgreSQL")
	}

	return services, nil
}
