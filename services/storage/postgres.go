package storage

import (
	"context"
	"strings"
	"time"

	"sjsage522/classifiedworker/internal/crawler"
	"sjsage522/classifiedworker/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS listings (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	country TEXT NOT NULL,
	category TEXT NOT NULL,
	listing_id TEXT,
	url TEXT NOT NULL UNIQUE,
	title TEXT,
	price NUMERIC(16,2),
	currency TEXT,
	description TEXT,
	images TEXT[] NOT NULL DEFAULT '{}',
	username TEXT,
	phone TEXT,
	city TEXT,
	latitude TEXT,
	longitude TEXT,
	breadcrumb TEXT,
	date_posted TEXT,
	scraped_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_listings_country ON listings(country);
CREATE INDEX IF NOT EXISTS idx_listings_listing_id ON listings(listing_id);
`

const upsertSQL = `
INSERT INTO listings (run_id, country, category, listing_id, url, title, price, currency,
	description, images, username, phone, city, latitude, longitude, breadcrumb, date_posted, scraped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (url) DO UPDATE SET
	run_id = EXCLUDED.run_id,
	title = EXCLUDED.title,
	price = EXCLUDED.price,
	currency = EXCLUDED.currency,
	description = EXCLUDED.description,
	images = EXCLUDED.images,
	username = EXCLUDED.username,
	phone = EXCLUDED.phone,
	city = EXCLUDED.city,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	breadcrumb = EXCLUDED.breadcrumb,
	date_posted = EXCLUDED.date_posted,
	scraped_at = EXCLUDED.scraped_at,
	updated_at = NOW();
`

// PostgresWriter stores listings in PostgreSQL, one row per ad URL
type PostgresWriter struct {
	pool *pgxpool.Pool
}

// NewPostgresWriter connects to dsn and checks the connection
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.NewStorage("postgres", "failed to create pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewStorage("postgres", "failed to connect", err)
	}

	return &PostgresWriter{pool: pool}, nil
}

// Close releases the pool
func (w *PostgresWriter) Close() {
	if w.pool != nil {
		w.pool.Close()
	}
}

// EnsureSchema creates the listings table when missing
func (w *PostgresWriter) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if _, err := w.pool.Exec(ctx, schemaSQL); err != nil {
		return errors.NewStorage("postgres", "failed to ensure schema", err)
	}
	return nil
}

// WriteBatch upserts the listings of one category
func (w *PostgresWriter) WriteBatch(ctx context.Context, runID, country, category string, listings []crawler.Listing) error {
	batch := &pgx.Batch{}
	for _, l := range listings {
		args, ok := listingArgs(runID, country, category, l)
		if !ok {
			continue
		}
		batch.Queue(upsertSQL, args...)
	}

	if batch.Len() == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	results := w.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return errors.NewStorage("postgres", "batch upsert failed", err)
		}
	}
	return nil
}

// listingArgs maps a listing onto the upsert parameters. Listings without
// a URL cannot be keyed and are skipped.
func listingArgs(runID, country, category string, l crawler.Listing) ([]any, bool) {
	url := strings.TrimSpace(l.URL)
	if url == "" {
		return nil, false
	}

	scrapedAt, err := time.Parse(time.RFC3339, l.ScrapedAt)
	if err != nil {
		scrapedAt = time.Now()
	}

	images := l.Images
	if images == nil {
		images = []string{}
	}

	return []any{
		runID,
		country,
		category,
		l.ID,
		url,
		l.Title,
		l.Price,
		l.Currency,
		l.Description,
		images,
		l.Contact.Username,
		l.Contact.Phone,
		l.Location.City,
		l.Location.Latitude,
		l.Location.Longitude,
		l.Category,
		l.DatePosted,
		scrapedAt,
	}, true
}
