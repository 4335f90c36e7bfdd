package api

import (
	"sync"
	"time"

	"sjsage522/classifiedworker/internal/crawler"
)

// Snapshot is the JSON view of a running crawl
type Snapshot struct {
	RunID           string    `json:"run_id"`
	Mode            string    `json:"mode"`
	StartedAt       time.Time `json:"started_at"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
	CurrentSite     string    `json:"current_site,omitempty"`
	CurrentCategory string    `json:"current_category,omitempty"`
	CountriesTotal  int       `json:"countries_total"`
	CountriesDone   int       `json:"countries_done"`
	CountriesFailed int       `json:"countries_failed"`
	Categories      int       `json:"categories"`
	Listings        int       `json:"listings"`
	Errors          int       `json:"errors"`
	Finished        bool      `json:"finished"`
}

// Tracker aggregates crawl progress. It is safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a tracker for one run
func NewTracker(runID, mode string) *Tracker {
	t := &Tracker{now: time.Now}
	t.snap = Snapshot{RunID: runID, Mode: mode, StartedAt: t.now()}
	return t
}

// SetCountries records the number of sites the run will crawl
func (t *Tracker) SetCountries(total int) {
	t.mu.Lock()
	t.snap.CountriesTotal = total
	t.mu.Unlock()
}

// Observe is a crawler.ProgressFunc
func (t *Tracker) Observe(e crawler.ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.CurrentSite = e.Site
	if e.Completed {
		t.snap.CurrentCategory = ""
		return
	}
	t.snap.CurrentCategory = e.Category
	if e.Found > 0 {
		t.snap.Categories++
	}
	t.snap.Listings += e.Scraped
	t.snap.Errors += e.Errors
}

// CountryDone records the end of one site crawl
func (t *Tracker) CountryDone(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.CountriesDone++
	if !success {
		t.snap.CountriesFailed++
	}
}

// Finish marks the run as complete
func (t *Tracker) Finish() {
	t.mu.Lock()
	t.snap.Finished = true
	t.snap.CurrentSite = ""
	t.snap.CurrentCategory = ""
	t.mu.Unlock()
}

// Snapshot returns a copy of the current counters
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.snap
	s.UptimeSeconds = t.now().Sub(s.StartedAt).Seconds()
	return s
}
