package proxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"sjsage522/classifiedworker/config"
	"sjsage522/classifiedworker/logger"
	"sjsage522/classifiedworker/pkg/errors"
)

// Supported proxy services
const (
	ServiceOxylabs    = "oxylabs"
	ServiceBrightData = "brightdata"
	ServiceNone       = "none"
)

const (
	oxylabsEndpoint = "pr.oxylabs.io:7777"
	oxylabsTestURL  = "https://ip.oxylabs.io/location"
	brightTestURL   = "https://geo.brdtest.com/welcome.txt"
	directTestURL   = "https://www.locanto.info"
)

// ProxyManager builds the outbound HTTP stack for the crawler
type ProxyManager interface {
	ProxyURL() *url.URL
	Transport() *http.Transport
	Test(ctx context.Context) error
}

// Manager holds the proxy settings of one service
type Manager struct {
	service     string
	proxyURL    *url.URL
	insecureTLS bool
	timeout     time.Duration
	log         *logger.Logger

	// TestURL is probed by Test; defaults to the service's echo endpoint
	TestURL string
}

// NewManager creates a manager for cfg.ProxyService. Unknown services and
// missing credentials are configuration errors.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		service:     cfg.ProxyService,
		insecureTLS: cfg.ProxyInsecureTLS,
		timeout:     cfg.RequestTimeout,
		log:         logger.ForProxy(),
	}
	if m.timeout <= 0 {
		m.timeout = 30 * time.Second
	}

	switch cfg.ProxyService {
	case ServiceOxylabs:
		if cfg.OxylabsUsername == "" || cfg.OxylabsPassword == "" {
			return nil, errors.NewConfiguration("OXYLABS_USERNAME and OXYLABS_PASSWORD are required for the oxylabs proxy", nil)
		}
		m.proxyURL = &url.URL{
			Scheme: "http",
			User:   url.UserPassword(fmt.Sprintf("customer-%s-cc-%s", cfg.OxylabsUsername, cfg.OxylabsCountry), cfg.OxylabsPassword),
			Host:   oxylabsEndpoint,
		}
		m.TestURL = oxylabsTestURL
	case ServiceBrightData:
		if cfg.BrightDataHost == "" || cfg.BrightDataPort == "" {
			return nil, errors.NewConfiguration("BRIGHTDATA_HOST and BRIGHTDATA_PORT are required for the brightdata proxy", nil)
		}
		m.proxyURL = &url.URL{
			Scheme: "http",
			User:   url.UserPassword(cfg.BrightDataUsername, cfg.BrightDataPassword),
			Host:   net.JoinHostPort(cfg.BrightDataHost, cfg.BrightDataPort),
		}
		m.TestURL = brightTestURL
	case ServiceNone, "":
		m.service = ServiceNone
		m.TestURL = directTestURL
	default:
		return nil, errors.NewConfiguration(fmt.Sprintf("unknown proxy service %q", cfg.ProxyService), nil)
	}

	return m, nil
}

// Service returns the configured service name
func (m *Manager) Service() string {
	return m.service
}

// ProxyURL returns the outbound proxy URL, or nil for direct connections
func (m *Manager) ProxyURL() *url.URL {
	return m.proxyURL
}

// Transport returns an HTTP transport routed through the proxy
func (m *Manager) Transport() *http.Transport {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if m.proxyURL != nil {
		transport.Proxy = http.ProxyURL(m.proxyURL)
	}
	if m.insecureTLS {
		// residential proxies re-sign TLS traffic
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return transport
}

// Client returns an HTTP client using Transport and the request timeout
func (m *Manager) Client() *http.Client {
	return &http.Client{
		Transport: m.Transport(),
		Timeout:   m.timeout,
	}
}

// Test probes TestURL through the proxy
func (m *Manager) Test(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.TestURL, nil)
	if err != nil {
		return errors.NewConfiguration("invalid proxy test URL", err)
	}

	start := time.Now()
	resp, err := m.Client().Do(req)
	if err != nil {
		return errors.NewNetwork(m.service, "proxy test request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.NewStatus(m.service, resp.StatusCode)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	m.log.Info().
		Str("service", m.service).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("info", string(body)).
		Msg("Proxy working")

	return nil
}
