package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"sjsage522/classifiedworker/config"
	"sjsage522/classifiedworker/helpers"
	"sjsage522/classifiedworker/internal/crawler"
	"sjsage522/classifiedworker/logger"
	"sjsage522/classifiedworker/services/api"
	"sjsage522/classifiedworker/services/publisher"
	"sjsage522/classifiedworker/services/storage"

	"golang.org/x/sync/errgroup"
)

const (
	fileTimestamp = "20060102_150405"
	// listingField is the stream field carrying the base64 listing message
	listingField = "b64_listing"
)

// ListingSink persists the listings of one category
type ListingSink interface {
	WriteBatch(ctx context.Context, runID, country, category string, listings []crawler.Listing) error
}

// ListingMessage is the payload published for every scraped listing
type ListingMessage struct {
	RunID    string          `json:"run_id"`
	Country  string          `json:"country"`
	Category string          `json:"category"`
	Listing  crawler.Listing `json:"listing"`
}

// Worker runs one crawl: a single country site or every discovered country
type Worker struct {
	cfg        *config.Config
	runID      string
	fetcher    crawler.DocumentFetcher
	extractor  *crawler.Extractor
	publisher  publisher.Publisher
	sink       ListingSink
	tracker    *api.Tracker
	failures   *helpers.FailureLog
	jsonWriter *storage.JSONWriter
	csvWriter  *storage.CSVSummaryWriter
	log        *logger.Logger
	now        func() time.Time
}

// NewWorker creates a new worker. pub, sink and tracker may be nil.
func NewWorker(
	cfg *config.Config,
	runID string,
	fetcher crawler.DocumentFetcher,
	pub publisher.Publisher,
	sink ListingSink,
	tracker *api.Tracker,
) *Worker {
	return &Worker{
		cfg:        cfg,
		runID:      runID,
		fetcher:    fetcher,
		extractor:  crawler.NewExtractor(cfg.ImageHostMarker),
		publisher:  pub,
		sink:       sink,
		tracker:    tracker,
		failures:   helpers.NewFailureLog(filepath.Join(cfg.OutputDir, "failures.log")),
		jsonWriter: storage.NewJSONWriter(),
		csvWriter:  storage.NewCSVSummaryWriter(),
		log:        logger.ForWorker(),
		now:        time.Now,
	}
}

// Run crawls according to cfg.Mode and writes the run report
func (w *Worker) Run(ctx context.Context) (*Report, error) {
	start := w.now()
	w.extractor.OnFailure = func(sourceURL string, err error) {
		w.failures.Record("extract", sourceURL, err)
	}

	var countries []crawler.Country
	switch w.cfg.Mode {
	case config.ModeAll:
		var err error
		countries, err = w.discoverCountries(ctx)
		if err != nil {
			return nil, err
		}
	default:
		u, err := url.Parse(w.cfg.SiteURL)
		if err != nil {
			return nil, fmt.Errorf("parse SITE_URL: %w", err)
		}
		countries = []crawler.Country{{Name: u.Host, Domain: u.Host, URL: w.cfg.SiteURL}}
	}

	if w.tracker != nil {
		w.tracker.SetCountries(len(countries))
	}
	w.log.Info().Int("countries", len(countries)).Str("mode", w.cfg.Mode).Msg("Starting crawl")

	outcomes := make([]CountryOutcome, len(countries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, w.cfg.CountryConcurrency))
	for i, country := range countries {
		g.Go(func() error {
			outcomes[i] = w.scrapeCountry(gctx, country)
			if w.tracker != nil {
				w.tracker.CountryDone(outcomes[i].Success)
			}
			return nil
		})
	}
	_ = g.Wait()

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(ctx); err != nil {
			logger.LogError("StreamTrimming", err, "failed to trim streams")
		}
	}

	report := newReport(w.runID, start, w.runConfig(), outcomes, w.now().Sub(start))
	reportPath := filepath.Join(w.cfg.OutputDir, fmt.Sprintf("scraping_report_%s.json", w.now().Format(fileTimestamp)))
	if err := w.jsonWriter.Write(reportPath, report); err != nil {
		return report, err
	}
	if w.tracker != nil {
		w.tracker.Finish()
	}

	w.logReport(report, reportPath)
	return report, ctx.Err()
}

func (w *Worker) discoverCountries(ctx context.Context) ([]crawler.Country, error) {
	doc, err := w.fetcher.Fetch(ctx, w.cfg.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch country index %s: %w", w.cfg.IndexURL, err)
	}

	countries := crawler.DiscoverCountries(doc)
	w.log.Info().Int("countries", len(countries)).Msg("Discovered country sites")

	filtered := crawler.FilterCountries(countries, w.cfg.TargetCountries, w.cfg.SkipCountries)
	if len(filtered) != len(countries) {
		w.log.Info().
			Strs("target", w.cfg.TargetCountries).
			Strs("skip", w.cfg.SkipCountries).
			Int("countries", len(filtered)).
			Msg("Applied country filters")
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no country sites found at %s", w.cfg.IndexURL)
	}
	return filtered, nil
}

func (w *Worker) runConfig() crawler.RunConfig {
	return crawler.RunConfig{
		MaxCategories: w.cfg.MaxCategories,
		MaxListings:   w.cfg.MaxListings,
		MaxPages:      w.cfg.MaxPages,
	}
}

// scrapeCountry crawls one site and saves its JSON result and CSV summary.
// Failures are reported in the outcome, never returned.
func (w *Worker) scrapeCountry(ctx context.Context, country crawler.Country) CountryOutcome {
	start := w.now()
	code := crawler.CountryCode(country.Domain)
	path := filepath.Join(w.cfg.OutputDir, fmt.Sprintf("%s_%s.json", code, start.Format(fileTimestamp)))

	outcome := CountryOutcome{Country: country.Name, Domain: country.Domain}

	sc := crawler.NewSiteCrawler(w.fetcher, w.extractor, crawler.SiteConfig{
		MaxCategories:      w.cfg.MaxCategories,
		MaxListings:        w.cfg.MaxListings,
		MaxPages:           w.cfg.MaxPages,
		ListingConcurrency: w.cfg.ListingConcurrency,
		CheckpointEvery:    w.cfg.CheckpointEvery,
	})
	sc.RunID = w.runID
	if w.tracker != nil {
		sc.Progress = w.tracker.Observe
	}
	sc.OnCategory = func(ctx context.Context, _ *crawler.SiteResult, category crawler.CategoryResult) {
		w.deliver(ctx, country, category)
	}
	sc.Checkpoint = func(partial *crawler.SiteResult) {
		partial.CountryName = country.Name
		partial.CountryDomain = country.Domain
		if err := w.jsonWriter.Write(path, partial); err != nil {
			w.log.Warn().Err(err).Str("file", path).Msg("Failed to save checkpoint")
		}
	}

	result, err := sc.ScrapeSite(ctx, country.URL)
	if err != nil && result == nil {
		w.log.Error().Err(err).Str("country", country.Name).Msg("Country crawl failed")
		w.failures.Record(country.Domain, country.URL, err)
		outcome.Error = err.Error()
		return outcome
	}

	result.CountryName = country.Name
	result.CountryDomain = country.Domain

	if err := w.jsonWriter.Write(path, result); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	summaryPath := strings.TrimSuffix(path, ".json") + "_summary.csv"
	if err := w.csvWriter.Write(summaryPath, result.Categories); err != nil {
		w.log.Warn().Err(err).Str("file", summaryPath).Msg("Failed to save summary")
	}

	// a cancelled crawl keeps its partial file but is not a success
	if err != nil {
		outcome.Error = err.Error()
		outcome.Filename = path
		return outcome
	}

	outcome.Success = true
	outcome.Listings = result.Stats.TotalListings
	outcome.Categories = result.Stats.TotalCategories
	outcome.Duration = w.now().Sub(start).Seconds()
	outcome.Filename = path

	w.log.Info().
		Str("country", country.Name).
		Int("listings", outcome.Listings).
		Float64("minutes", outcome.Duration/60).
		Str("file", path).
		Msg("Country done")

	return outcome
}

// deliver publishes and stores the listings of a finished category
func (w *Worker) deliver(ctx context.Context, country crawler.Country, category crawler.CategoryResult) {
	if w.publisher != nil {
		for _, listing := range category.Listings {
			data, err := json.Marshal(ListingMessage{
				RunID:    w.runID,
				Country:  country.Domain,
				Category: category.Name,
				Listing:  listing,
			})
			if err != nil {
				logger.LogError(country.Domain, err, "failed to encode listing")
				continue
			}
			if err := w.publisher.Publish(ctx, listingField, data); err != nil {
				logger.LogError(country.Domain, err, "failed to publish listing")
			}
		}
	}

	if w.sink != nil {
		if err := w.sink.WriteBatch(ctx, w.runID, country.Domain, category.Name, category.Listings); err != nil {
			logger.LogError(country.Domain, err, "failed to store listings of %s", category.Name)
		}
	}
}

func (w *Worker) logReport(report *Report, path string) {
	perMinute := 0.0
	if report.DurationSeconds > 0 {
		perMinute = float64(report.TotalListings) / (report.DurationSeconds / 60)
	}

	w.log.Info().
		Float64("minutes", report.DurationSeconds/60).
		Int("successful", report.SuccessfulCountries).
		Int("total", report.TotalCountries).
		Int("listings", report.TotalListings).
		Float64("listings_per_minute", perMinute).
		Str("report", path).
		Msg("Crawl finished")

	for i, o := range report.TopCountries(10) {
		w.log.Info().Int("rank", i+1).Str("country", o.Country).Int("listings", o.Listings).Msg("Top country")
	}
	for _, o := range report.Failed() {
		w.log.Warn().Str("country", o.Country).Str("error", o.Error).Msg("Country failed")
	}
}
