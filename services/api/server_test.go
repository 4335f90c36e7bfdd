package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sjsage522/classifiedworker/internal/crawler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	srv := NewServer(":0", NewTracker("run-1", "country"))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStats(t *testing.T) {
	tracker := NewTracker("run-1", "all")
	tracker.SetCountries(3)
	tracker.Observe(crawler.ProgressEvent{Site: "https://abidjan.locanto.ci/", Category: "Immobilier", Found: 5, Scraped: 4, Errors: 1})
	tracker.Observe(crawler.ProgressEvent{Site: "https://abidjan.locanto.ci/", Category: "Emplois"})
	tracker.CountryDone(true)
	tracker.CountryDone(false)

	srv := NewServer(":0", tracker)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, "all", snap.Mode)
	assert.Equal(t, 3, snap.CountriesTotal)
	assert.Equal(t, 2, snap.CountriesDone)
	assert.Equal(t, 1, snap.CountriesFailed)
	assert.Equal(t, 1, snap.Categories)
	assert.Equal(t, 4, snap.Listings)
	assert.Equal(t, 1, snap.Errors)
	assert.Equal(t, "Emplois", snap.CurrentCategory)
	assert.False(t, snap.Finished)
}

func TestTrackerFinish(t *testing.T) {
	tracker := NewTracker("run-1", "country")
	start := tracker.Snapshot().StartedAt
	tracker.now = func() time.Time { return start.Add(90 * time.Second) }

	tracker.Observe(crawler.ProgressEvent{Site: "https://abidjan.locanto.ci/", Completed: true, Scraped: 10})
	tracker.Finish()

	snap := tracker.Snapshot()
	assert.True(t, snap.Finished)
	assert.Empty(t, snap.CurrentSite)
	assert.Equal(t, 0, snap.Listings)
	assert.Equal(t, 90.0, snap.UptimeSeconds)
}

func TestCORSPreflight(t *testing.T) {
	srv := NewServer(":0", NewTracker("run-1", "country"))

	req := httptest.NewRequest(http.MethodOptions, "/stats", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
