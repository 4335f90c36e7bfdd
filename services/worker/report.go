package worker

import (
	"sort"
	"time"

	"sjsage522/classifiedworker/internal/crawler"
)

// CountryOutcome is the result line of one country in the run report
type CountryOutcome struct {
	Country    string  `json:"country"`
	Domain     string  `json:"domain"`
	Success    bool    `json:"success"`
	Listings   int     `json:"listings,omitempty"`
	Categories int     `json:"categories,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Filename   string  `json:"filename,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Report summarizes a whole run
type Report struct {
	RunID               string            `json:"run_id"`
	StartTime           time.Time         `json:"start_time"`
	DurationSeconds     float64           `json:"duration_seconds"`
	Config              crawler.RunConfig `json:"config"`
	TotalCountries      int               `json:"total_countries"`
	SuccessfulCountries int               `json:"successful_countries"`
	TotalListings       int               `json:"total_listings"`
	Countries           []CountryOutcome  `json:"countries"`
}

func newReport(runID string, start time.Time, cfg crawler.RunConfig, outcomes []CountryOutcome, duration time.Duration) *Report {
	report := &Report{
		RunID:           runID,
		StartTime:       start,
		DurationSeconds: duration.Seconds(),
		Config:          cfg,
		TotalCountries:  len(outcomes),
		Countries:       outcomes,
	}
	for _, o := range outcomes {
		if o.Success {
			report.SuccessfulCountries++
			report.TotalListings += o.Listings
		}
	}
	return report
}

// TopCountries returns up to n successful countries by listing count
func (r *Report) TopCountries(n int) []CountryOutcome {
	var ok []CountryOutcome
	for _, o := range r.Countries {
		if o.Success {
			ok = append(ok, o)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool {
		return ok[i].Listings > ok[j].Listings
	})
	if len(ok) > n {
		ok = ok[:n]
	}
	return ok
}

// Failed returns the countries that could not be crawled
func (r *Report) Failed() []CountryOutcome {
	var failed []CountryOutcome
	for _, o := range r.Countries {
		if !o.Success {
			failed = append(failed, o)
		}
	}
	return failed
}
