package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"sjsage522/classifiedworker/config"
	"sjsage522/classifiedworker/internal/crawler"
	"sjsage522/classifiedworker/services/api"
	"sjsage522/classifiedworker/services/cache"
	"sjsage522/classifiedworker/services/proxy"
	"sjsage522/classifiedworker/services/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite serves a small classifieds site: one category with two pages of
// ads, one of which is missing
func fakeSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><div class="catlist">
			<a href="/telephones/">Téléphones et tablettes</a>
			<a href="/aide/faq/">FAQ et aide en ligne</a>
		</div></body></html>`)
	})
	mux.HandleFunc("/telephones/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprint(w, `<a href="/ID_101/iPhone-12.html">iPhone</a><a href="/ID_102/Galaxy-S21.html">Galaxy</a>`)
		case "2":
			fmt.Fprint(w, `<a href="/ID_102/Galaxy-S21.html">Galaxy</a><a href="/ID_103/Tecno.html">Tecno</a>`)
		default:
			fmt.Fprint(w, `<p>Aucune annonce</p>`)
		}
	})
	mux.HandleFunc("/ID_101/iPhone-12.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
			<a class="breadcrumb__link" href="/">Accueil</a>
			<a class="breadcrumb__link" href="/telephones/">Téléphones</a>
			<h1 class="h1__title">iPhone 12 128Go</h1>
			<div class="simple__price">250.000 FCFA</div>
			<div class="simple__description">Très propre, 250000 FCFA</div>
			<img class="user_images__img" src="https://images.locanto.ci/101-1.jpg">
			<span itemprop="addressLocality">5.34, -4.02, Plateau</span>
			<span class="list__element_label">Publié: hier</span>
		</body></html>`)
	})
	mux.HandleFunc("/ID_102/Galaxy-S21.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Galaxy S21</h1><div class="simple__price">$400</div></body></html>`)
	})

	return httptest.NewServer(mux)
}

type capturePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (c *capturePublisher) Publish(_ context.Context, _ string, message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return nil
}

func (c *capturePublisher) TrimStreams(context.Context) error { return nil }
func (c *capturePublisher) Close() error                      { return nil }

func TestCountryCrawlEndToEnd(t *testing.T) {
	server := fakeSite(t)
	defer server.Close()

	t.Setenv("MODE", config.ModeCountry)
	t.Setenv("SITE_URL", server.URL+"/")
	t.Setenv("OUTPUT_DIR", t.TempDir())
	t.Setenv("MIN_DELAY_MS", "0")
	t.Setenv("MAX_DELAY_MS", "0")
	t.Setenv("RATE_LIMIT_PER_SECOND", "100")
	t.Setenv("MAX_RETRIES", "1")
	t.Setenv("PROXY_SERVICE", proxy.ServiceNone)
	t.Setenv("LISTING_CONCURRENCY", "2")

	cfg := config.LoadConfig()
	require.NoError(t, cfg.Validate())

	proxyManager, err := proxy.NewManager(cfg)
	require.NoError(t, err)

	fetcher := crawler.NewFetcher(crawler.FetcherConfig{
		Session:    "it-run",
		Client:     proxyManager.Client(),
		Cache:      cache.NewMemoryCache(),
		MinDelay:   cfg.MinDelay,
		MaxDelay:   cfg.MaxDelay,
		MaxRetries: cfg.MaxRetries,
		RateLimit:  cfg.RateLimitPerSecond,
		BlockTime:  cfg.BlockTime,
	})

	pub := &capturePublisher{}
	tracker := api.NewTracker("it-run", cfg.Mode)
	w := worker.NewWorker(cfg, "it-run", fetcher, pub, nil, tracker)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := w.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Countries, 1)

	outcome := report.Countries[0]
	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.Listings)

	data, err := os.ReadFile(outcome.Filename)
	require.NoError(t, err)

	var site crawler.SiteResult
	require.NoError(t, json.Unmarshal(data, &site))
	require.Len(t, site.Categories, 1)

	category := site.Categories[0]
	assert.Equal(t, "Téléphones et tablettes", category.Name)
	assert.Equal(t, 3, category.ListingsFound)
	assert.Equal(t, 2, category.ListingsScraped)
	assert.Equal(t, 1, category.Errors)

	iphone := category.Listings[0]
	assert.Equal(t, "101", *iphone.ID)
	assert.Equal(t, "iPhone 12 128Go", *iphone.Title)
	assert.Equal(t, 250000.0, *iphone.Price)
	assert.Equal(t, "XOF", *iphone.Currency)
	assert.Equal(t, "Très propre,", *iphone.Description)
	assert.Equal(t, []string{"https://images.locanto.ci/101-1.jpg"}, iphone.Images)
	assert.Equal(t, "Plateau", *iphone.Location.City)
	assert.Equal(t, "Téléphones", *iphone.Category)
	assert.Equal(t, time.Now().AddDate(0, 0, -1).Format(crawler.DateLayout), *iphone.DatePosted)

	galaxy := category.Listings[1]
	assert.Equal(t, "Galaxy S21", *galaxy.Title)
	assert.Equal(t, "USD", *galaxy.Currency)
	assert.Nil(t, galaxy.DatePosted)
	assert.Empty(t, galaxy.Images)

	assert.Len(t, pub.messages, 2)
	assert.Equal(t, 2, tracker.Snapshot().Listings)
}
