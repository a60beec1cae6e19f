package domain

import (
	"time"

	"github.com/google/uuid"
)

// VendorReport is everything collected for one vendor.
type VendorReport struct {
	Vendor Vendor       `json:"vendor"`
	Posts  []Post       `json:"posts,omitempty"`
	Labels []ImageLabel `json:"labels,omitempty"`

	// Failures holds the messages of sub-tasks that failed for this vendor
	Failures []string `json:"failures,omitempty"`
}

// CrawlSummary is the result of a complete crawl run.
type CrawlSummary struct {
	SessionID  uuid.UUID `json:"session_id"`
	Events     int       `json:"events"`
	Vendors    int       `json:"vendors"`
	Posts      int       `json:"posts"`
	Labels     int       `json:"labels"`
	Failures   int       `json:"failures"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Add folds one vendor report into the summary.
func (s *CrawlSummary) Add(r VendorReport) {
	s.Vendors++
	s.Posts += len(r.Posts)
	s.Labels += len(r.Labels)
	s.Failures += len(r.Failures)
}

// Duration returns how long the crawl took, or zero if it has not finished.
func (s CrawlSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
