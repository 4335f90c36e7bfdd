package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"slices"
	"time"

	"sjsage522/classifiedworker/pkg/errors"

	"golang.org/x/net/html/charset"
)

// HTTP client and header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	}

	// default HTTP client with timeout, used when the caller passes none
	client = &http.Client{
		Timeout: 30 * time.Second,
	}
)

// RandomUserAgent returns one of the rotated browser User-Agent strings
func RandomUserAgent() string {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	return userAgents[rnd.Intn(len(userAgents))]
}

// FetchWithRandomHeaders sends an HTTP GET request with randomized headers,
// converts the response body to UTF-8 (if needed), and returns it as an io.Reader.
// Failures are *errors.CrawlerError values keyed by the request host.
func FetchWithRandomHeaders(ctx context.Context, httpClient *http.Client, rawURL string) (io.Reader, error) {
	if httpClient == nil {
		httpClient = client
	}

	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewValidation(host, fmt.Sprintf("failed to create request: %v", err))
	}

	// Set browser-like headers
	req.Header.Set("User-Agent", RandomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.NewNetwork(host, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return nil, errors.New(errors.ErrorTypeRateLimit, host,
			fmt.Sprintf("rate limited; retry after %q", resp.Header.Get("Retry-After")), nil)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, errors.NewNetwork(host, fmt.Sprintf("server error status code: %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewStatus(host, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork(host, "failed to read response body", err)
	}

	// Determine the encoding from Content-Type header and body content
	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	if name == "utf-8" || name == "UTF-8" {
		return bytes.NewReader(bodyBytes), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, errors.NewParsing(host, "failed to read converted UTF-8 body", err)
	}

	return &buf, nil
}
