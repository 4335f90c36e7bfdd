package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"sjsage522/classifiedworker/helpers"
	"sjsage522/classifiedworker/logger"
	"sjsage522/classifiedworker/pkg/errors"
	"sjsage522/classifiedworker/services/cache"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// ErrAlreadyVisited is returned by Fetch for URLs fetched earlier in the session
var ErrAlreadyVisited = stderrors.New("url already visited")

const (
	visitedPrefix = "visited"
	blockedPrefix = "blocked"
)

// FetchFunc performs one HTTP GET and returns the UTF-8 body
type FetchFunc func(ctx context.Context, client *http.Client, rawURL string) (io.Reader, error)

// FetcherConfig holds the politeness and retry settings of a Fetcher
type FetcherConfig struct {
	// Session scopes the visited set, usually the run ID. Block markers are
	// shared by every session using the same cache.
	Session      string
	Client       *http.Client
	Cache        cache.CacheService
	MinDelay     time.Duration
	MaxDelay     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// RateLimit is the steady request rate allowed per host
	RateLimit  float64
	BlockTime  time.Duration
	VisitedTTL time.Duration
}

// Fetcher downloads and parses pages. Each URL is fetched at most once per
// Session; a rate-limited host is blocked for BlockTime.
type Fetcher struct {
	cfg       FetcherConfig
	fetchFunc FetchFunc
	sleep     func(ctx context.Context, d time.Duration) error
	log       *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rnd      *mathrand.Rand
}

// NewFetcher creates a fetcher; a nil cache keeps the visited set in memory
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemoryCache()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}

	return &Fetcher{
		cfg:       cfg,
		fetchFunc: helpers.FetchWithRandomHeaders,
		sleep:     sleepContext,
		log:       logger.ForFetcher(),
		limiters:  make(map[string]*rate.Limiter),
		rnd:       mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch returns the parsed document at rawURL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, errors.NewValidation(rawURL, "invalid URL")
	}
	host := u.Host

	visitedKey := cache.Key(visitedPrefix, f.cfg.Session+"|"+rawURL)
	if _, err := f.cfg.Cache.Get(visitedKey); err == nil {
		return nil, ErrAlreadyVisited
	}

	blockedKey := cache.Key(blockedPrefix, host)
	if _, err := f.cfg.Cache.Get(blockedKey); err == nil {
		return nil, errors.NewRateLimit(host, f.cfg.BlockTime)
	}

	limiter := f.limiter(host)

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		f.log.Debug().Str("url", rawURL).Int("attempt", attempt).Msg("Fetching page")

		body, err := f.fetchFunc(ctx, f.cfg.Client, rawURL)
		if err == nil {
			doc, parseErr := goquery.NewDocumentFromReader(body)
			if parseErr != nil {
				return nil, errors.NewParsing(host, "failed to parse HTML", parseErr)
			}

			if setErr := f.cfg.Cache.Set(visitedKey, []byte("1"), f.cfg.VisitedTTL); setErr != nil {
				f.log.Warn().Err(setErr).Str("url", rawURL).Msg("Failed to mark URL as visited")
			}
			if err := f.pause(ctx); err != nil {
				return nil, err
			}
			return doc, nil
		}
		lastErr = err

		if errors.IsType(err, errors.ErrorTypeRateLimit) {
			blockSeconds := fmt.Sprintf("%d", int(f.cfg.BlockTime/time.Second))
			if setErr := f.cfg.Cache.Set(blockedKey, []byte(blockSeconds), f.cfg.BlockTime); setErr != nil {
				return nil, errors.NewCache(host, "failed to store rate limit marker", setErr)
			}
			f.log.Warn().Str("host", host).Dur("block_time", f.cfg.BlockTime).Msg("Host rate limited the crawler")
			return nil, err
		}

		if !errors.IsRetryable(err) || attempt == f.cfg.MaxRetries || ctx.Err() != nil {
			break
		}

		backoff := time.Duration(attempt) * f.cfg.RetryBackoff
		f.log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt).Dur("backoff", backoff).Msg("Fetch failed, retrying")
		if err := f.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.cfg.RateLimit), 1)
		f.limiters[host] = l
	}
	return l
}

// pause waits a random delay between MinDelay and MaxDelay
func (f *Fetcher) pause(ctx context.Context) error {
	delay := f.cfg.MinDelay
	if spread := f.cfg.MaxDelay - f.cfg.MinDelay; spread > 0 {
		f.mu.Lock()
		delay += time.Duration(f.rnd.Int63n(int64(spread)))
		f.mu.Unlock()
	}
	if delay <= 0 {
		return nil
	}
	return f.sleep(ctx, delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
