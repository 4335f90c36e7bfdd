package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"sjsage522/classifiedworker/internal/crawler"
	"sjsage522/classifiedworker/pkg/errors"
)

var summaryHeader = []string{"Category", "URL", "Listings Found", "Listings Scraped", "Errors"}

// CSVSummaryWriter writes one row per crawled category
type CSVSummaryWriter struct{}

// NewCSVSummaryWriter creates a category summary writer
func NewCSVSummaryWriter() *CSVSummaryWriter {
	return &CSVSummaryWriter{}
}

// Write saves the category summary to path, creating the parent directory
func (w *CSVSummaryWriter) Write(path string, categories []crawler.CategoryResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewStorage(path, "could not create output dir", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.NewStorage(path, "could not create file", err)
	}
	defer file.Close()

	// csv.NewWriter handles quoting of commas inside category names
	writer := csv.NewWriter(file)
	writer.Write(summaryHeader)
	for _, c := range categories {
		writer.Write([]string{
			c.Name,
			c.URL,
			strconv.Itoa(c.ListingsFound),
			strconv.Itoa(c.ListingsScraped),
			strconv.Itoa(c.Errors),
		})
	}
	writer.Flush()

	if err := writer.Error(); err != nil {
		return errors.NewStorage(path, "csv write error", err)
	}
	return nil
}
