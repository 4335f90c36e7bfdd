package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sjsage522/classifiedworker/internal/crawler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestJSONWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countries", "ci_20240110_120000.json")

	result := crawler.SiteResult{
		SiteURL:    "https://abidjan.locanto.ci/",
		Categories: []crawler.CategoryResult{{Name: "Véhicules & motos", Listings: []crawler.Listing{}}},
	}
	require.NoError(t, NewJSONWriter().Write(path, result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Véhicules & motos")
	assert.Contains(t, string(data), "\n  \"site_url\"")

	var decoded crawler.SiteResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result.SiteURL, decoded.SiteURL)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestJSONWriterNullFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listing.json")
	require.NoError(t, NewJSONWriter().Write(path, crawler.Listing{URL: "https://x", Images: []string{}}))

	var decoded map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Nil(t, decoded["price"])
	assert.Contains(t, decoded, "price")
	assert.Equal(t, []any{}, decoded["images"])
}

func TestCSVSummaryWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ci_summary.csv")

	err := NewCSVSummaryWriter().Write(path, []crawler.CategoryResult{
		{Name: "Immobilier, maisons", URL: "https://abidjan.locanto.ci/immobilier/", ListingsFound: 12, ListingsScraped: 10, Errors: 2},
		{Name: "Emplois", URL: "https://abidjan.locanto.ci/emplois/", ListingsFound: 3, ListingsScraped: 3},
	})
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Category", "URL", "Listings Found", "Listings Scraped", "Errors"},
		{"Immobilier, maisons", "https://abidjan.locanto.ci/immobilier/", "12", "10", "2"},
		{"Emplois", "https://abidjan.locanto.ci/emplois/", "3", "3", "0"},
	}, rows)
}

func TestListingArgs(t *testing.T) {
	price := 16450.0
	listing := crawler.Listing{
		ID:        strPtr("123"),
		URL:       " https://abidjan.locanto.ci/ID_123/Ad.html ",
		Title:     strPtr("Ad"),
		Price:     &price,
		Currency:  strPtr("XOF"),
		ScrapedAt: "2024-01-10T12:00:00Z",
	}

	args, ok := listingArgs("run", "ci", "Immobilier", listing)
	require.True(t, ok)
	require.Len(t, args, 18)
	assert.Equal(t, "https://abidjan.locanto.ci/ID_123/Ad.html", args[4])
	assert.Equal(t, []string{}, args[9])
	assert.Equal(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), args[17])

	_, ok = listingArgs("run", "ci", "Immobilier", crawler.Listing{})
	assert.False(t, ok)
}

// This test requires a PostgreSQL instance at TEST_DATABASE_URL
func TestPostgresWriter(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skipping test")
	}

	ctx := context.Background()
	w, err := NewPostgresWriter(ctx, dsn)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.EnsureSchema(ctx))

	listing := crawler.Listing{
		ID:        strPtr("999000111"),
		URL:       "https://abidjan.locanto.ci/ID_999000111/Test.html",
		Title:     strPtr("First title"),
		Images:    []string{"https://images.locanto.ci/1.jpg"},
		ScrapedAt: time.Now().Format(time.RFC3339),
	}
	require.NoError(t, w.WriteBatch(ctx, "run-1", "ci", "Tests", []crawler.Listing{listing}))

	listing.Title = strPtr("Second title")
	require.NoError(t, w.WriteBatch(ctx, "run-2", "ci", "Tests", []crawler.Listing{listing}))

	var title, runID string
	err = w.pool.QueryRow(ctx, "SELECT title, run_id FROM listings WHERE url = $1", listing.URL).Scan(&title, &runID)
	require.NoError(t, err)
	assert.Equal(t, "Second title", title)
	assert.Equal(t, "run-2", runID)

	_, err = w.pool.Exec(ctx, "DELETE FROM listings WHERE url = $1", listing.URL)
	require.NoError(t, err)
}
