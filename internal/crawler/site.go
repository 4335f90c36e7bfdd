package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"sync"
	"time"

	"sjsage522/classifiedworker/logger"
	"sjsage522/classifiedworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// DocumentFetcher fetches and parses one page
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*goquery.Document, error)
}

// SiteConfig holds the crawl limits of a SiteCrawler
type SiteConfig struct {
	MaxCategories      int
	MaxListings        int
	MaxPages           int
	ListingConcurrency int
	// CheckpointEvery is the number of categories between Checkpoint calls
	CheckpointEvery int
}

// SiteCrawler walks one country site: home page, categories, paginated
// category pages, then ad detail pages
type SiteCrawler struct {
	fetcher   DocumentFetcher
	extractor *Extractor
	cfg       SiteConfig

	// RunID is copied into every SiteResult
	RunID string
	// Progress, when set, receives one event per finished category
	Progress ProgressFunc
	// OnCategory, when set, receives each finished category before the next starts
	OnCategory func(ctx context.Context, site *SiteResult, category CategoryResult)
	// Checkpoint, when set, receives the partial result every CheckpointEvery categories
	Checkpoint func(partial *SiteResult)

	now func() time.Time
}

// NewSiteCrawler creates a crawler using fetcher for every page
func NewSiteCrawler(fetcher DocumentFetcher, extractor *Extractor, cfg SiteConfig) *SiteCrawler {
	if cfg.ListingConcurrency < 1 {
		cfg.ListingConcurrency = 1
	}
	if extractor == nil {
		extractor = NewExtractor("")
	}
	return &SiteCrawler{
		fetcher:   fetcher,
		extractor: extractor,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ScrapeSite crawls siteURL. Only a home page failure is returned as an
// error; category and listing failures are counted in the result.
func (c *SiteCrawler) ScrapeSite(ctx context.Context, siteURL string) (*SiteResult, error) {
	log := logger.ForCrawler(siteURL)
	start := c.now()

	result := &SiteResult{
		RunID:      c.RunID,
		SiteURL:    siteURL,
		ScrapeDate: start,
		Config: RunConfig{
			MaxCategories: c.cfg.MaxCategories,
			MaxListings:   c.cfg.MaxListings,
			MaxPages:      c.cfg.MaxPages,
		},
		Categories: []CategoryResult{},
	}

	home, err := c.fetcher.Fetch(ctx, siteURL)
	if err != nil {
		return nil, fmt.Errorf("fetch home page %s: %w", siteURL, err)
	}

	categories := DiscoverCategories(home, siteURL)
	if c.cfg.MaxCategories > 0 && len(categories) > c.cfg.MaxCategories {
		categories = categories[:c.cfg.MaxCategories]
	}
	log.Info().Int("categories", len(categories)).Msg("Discovered categories")

	for i, category := range categories {
		if err := ctx.Err(); err != nil {
			c.finish(result, start)
			return result, err
		}

		urls, pageErrors := c.collectListingURLs(ctx, category.URL)
		result.Stats.Errors += pageErrors
		if len(urls) == 0 {
			log.Debug().Str("category", category.Name).Msg("No listings found")
			c.report(siteURL, category.Name, i+1, len(categories), 0, 0, pageErrors)
			continue
		}

		catResult := c.scrapeCategory(ctx, category, urls)
		result.Stats.Errors += catResult.Errors
		catResult.Errors += pageErrors
		result.Categories = append(result.Categories, catResult)

		log.Info().
			Str("category", category.Name).
			Int("found", catResult.ListingsFound).
			Int("scraped", catResult.ListingsScraped).
			Int("errors", catResult.Errors).
			Msgf("[%d/%d] Category done", i+1, len(categories))
		c.report(siteURL, category.Name, i+1, len(categories), catResult.ListingsFound, catResult.ListingsScraped, catResult.Errors)

		if c.OnCategory != nil {
			c.OnCategory(ctx, result, catResult)
		}
		if c.Checkpoint != nil && c.cfg.CheckpointEvery > 0 && len(result.Categories)%c.cfg.CheckpointEvery == 0 {
			c.finish(result, start)
			c.Checkpoint(result)
		}
	}

	c.finish(result, start)
	if c.Progress != nil {
		c.Progress(ProgressEvent{
			Site:      siteURL,
			Index:     len(categories),
			Total:     len(categories),
			Scraped:   result.Stats.TotalListings,
			Errors:    result.Stats.Errors,
			Completed: true,
		})
	}

	log.Info().
		Int("listings", result.Stats.TotalListings).
		Int("categories", result.Stats.TotalCategories).
		Float64("duration_seconds", result.Stats.DurationSeconds).
		Msg("Site done")

	return result, nil
}

// collectListingURLs walks category pages 1..MaxPages (page N > 1 is
// "<url>?page=N") and stops at the first page without ad links or that
// fails to load. URLs are deduplicated across pages by ad ID.
func (c *SiteCrawler) collectListingURLs(ctx context.Context, categoryURL string) ([]string, int) {
	var urls []string
	errCount := 0
	seen := make(map[string]bool)

	maxPages := c.cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	for page := 1; page <= maxPages; page++ {
		pageURL := categoryURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s?page=%d", categoryURL, page)
		}

		doc, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if !stderrors.Is(err, ErrAlreadyVisited) {
				errCount++
				logger.ForCrawler(categoryURL).Warn().Err(err).Int("page", page).Msg("Failed to fetch category page")
			}
			break
		}

		pageURLs := DiscoverListingURLs(doc, pageURL)
		if len(pageURLs) == 0 {
			break
		}
		for _, u := range pageURLs {
			id := ExtractListingID(u)
			if id == nil || seen[*id] {
				continue
			}
			seen[*id] = true
			urls = append(urls, u)
		}
	}

	return urls, errCount
}

// scrapeCategory extracts the first MaxListings ads concurrently, keeping
// the discovery order in the result
func (c *SiteCrawler) scrapeCategory(ctx context.Context, category Category, urls []string) CategoryResult {
	targets := urls
	if c.cfg.MaxListings > 0 && len(targets) > c.cfg.MaxListings {
		targets = targets[:c.cfg.MaxListings]
	}

	listings := make([]*Listing, len(targets))
	var mu sync.Mutex
	errCount := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.ListingConcurrency)

	for i, u := range targets {
		g.Go(func() error {
			doc, err := c.fetcher.Fetch(gctx, u)
			if err != nil {
				if stderrors.Is(err, ErrAlreadyVisited) {
					return nil
				}
				mu.Lock()
				errCount++
				mu.Unlock()
				if errors.IsType(err, errors.ErrorTypeRateLimit) {
					logger.ForCrawler(category.URL).Warn().Err(err).Str("url", u).Msg("Listing skipped, host blocked")
				} else {
					logger.ForCrawler(category.URL).Warn().Err(err).Str("url", u).Msg("Failed to fetch listing")
				}
				return nil
			}

			listing := c.extractor.Extract(doc, u)
			if listing == nil {
				mu.Lock()
				errCount++
				mu.Unlock()
				return nil
			}
			listings[i] = listing
			return nil
		})
	}
	_ = g.Wait()

	catResult := CategoryResult{
		Name:          category.Name,
		URL:           category.URL,
		ListingsFound: len(urls),
		Errors:        errCount,
		Listings:      []Listing{},
	}
	for _, l := range listings {
		if l != nil {
			catResult.Listings = append(catResult.Listings, *l)
		}
	}
	catResult.ListingsScraped = len(catResult.Listings)

	return catResult
}

func (c *SiteCrawler) report(site, category string, index, total, found, scraped, errCount int) {
	if c.Progress == nil {
		return
	}
	c.Progress(ProgressEvent{
		Site:     site,
		Category: category,
		Index:    index,
		Total:    total,
		Found:    found,
		Scraped:  scraped,
		Errors:   errCount,
	})
}

func (c *SiteCrawler) finish(result *SiteResult, start time.Time) {
	total := 0
	for _, cat := range result.Categories {
		total += cat.ListingsScraped
	}

	duration := c.now().Sub(start).Seconds()
	result.Stats.TotalListings = total
	result.Stats.TotalCategories = len(result.Categories)
	result.Stats.DurationSeconds = round2(duration)
	result.Stats.ListingsPerMinute = 0
	if duration > 0 {
		result.Stats.ListingsPerMinute = round2(float64(total) / (duration / 60))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
