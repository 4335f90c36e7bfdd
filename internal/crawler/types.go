package crawler

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Listing represents one classified ad extracted from its detail page.
// Nil pointers serialize as JSON null and mean the field could not be extracted.
type Listing struct {
	ID          *string  `json:"id"`
	URL         string   `json:"url"`
	Title       *string  `json:"title"`
	Price       *float64 `json:"price"`
	Currency    *string  `json:"currency"`
	Description *string  `json:"description"`
	Images      []string `json:"images"`
	MainImage   *string  `json:"mainImage"`
	Contact     Contact  `json:"contact"`
	Location    Location `json:"location"`
	Category    *string  `json:"category"`
	DatePosted  *string  `json:"datePosted"`
	ScrapedAt   string   `json:"scrapedAt"`
}

// Linkable reports whether the listing carries an ID usable for deduplication
func (l *Listing) Linkable() bool {
	return l.ID != nil
}

// Contact holds the seller details shown on the ad page
type Contact struct {
	Username *string `json:"username"`
	Phone    *string `json:"phone"`
}

// Location holds the ad's locality and GPS coordinates
type Location struct {
	City      *string `json:"city"`
	Latitude  *string `json:"latitude"`
	Longitude *string `json:"longitude"`
}

// Category is a listing grouping reachable through its own URL
type Category struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Country is one site of the classifieds family
type Country struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

// CategoryResult holds the outcome of crawling one category
type CategoryResult struct {
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	ListingsFound   int       `json:"listings_found"`
	ListingsScraped int       `json:"listings_scraped"`
	Errors          int       `json:"errors"`
	Listings        []Listing `json:"listings"`
}

// RunConfig records the limits a site was crawled with
type RunConfig struct {
	MaxCategories int `json:"max_categories"`
	MaxListings   int `json:"max_listings_per_category"`
	MaxPages      int `json:"max_pages_per_category"`
}

// SiteStats summarizes a site crawl
type SiteStats struct {
	TotalListings     int     `json:"total_listings"`
	TotalCategories   int     `json:"total_categories"`
	Errors            int     `json:"errors"`
	DurationSeconds   float64 `json:"duration_seconds"`
	ListingsPerMinute float64 `json:"listings_per_minute"`
}

// SiteResult is the full output of crawling one country site
type SiteResult struct {
	RunID         string           `json:"run_id"`
	SiteURL       string           `json:"site_url"`
	CountryName   string           `json:"country_name,omitempty"`
	CountryDomain string           `json:"country_domain,omitempty"`
	ScrapeDate    time.Time        `json:"scrape_date"`
	Config        RunConfig        `json:"config"`
	Categories    []CategoryResult `json:"categories"`
	Stats         SiteStats        `json:"stats"`
}

// ElementHandler extracts a value from a document, returning "" when the
// layout it targets is absent
type ElementHandler func(*goquery.Selection) string

// ProgressFunc receives crawl progress events
type ProgressFunc func(event ProgressEvent)

// ProgressEvent describes one step of a site crawl
type ProgressEvent struct {
	Site      string
	Category  string
	Index     int
	Total     int
	Found     int
	Scraped   int
	Errors    int
	Completed bool
}
