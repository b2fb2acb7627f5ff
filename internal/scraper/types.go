// Package scraper defines core types shared across subsystems.
package scraper

import (
	"time"
)

// Source identifies which site adapter produced a record.
type Source string

// Supported job boards.
const (
	SourceGenericSearch       Source = "generic-search"
	SourceProfessionalNetwork Source = "professional-network"
	SourceSalaryDisclosure    Source = "salary-disclosure"
)

// RawFields is one job card as extracted from the DOM, before
// normalization. Keys are semantic field names; missing fields are absent.
type RawFields map[string]string

// Raw field keys produced by adapters and consumed by the normalizer.
const (
	FieldTitle      = "title"
	FieldCompany    = "company"
	FieldLocation   = "location"
	FieldURL        = "url"
	FieldSalary     = "salary"
	FieldSummary    = "summary"
	FieldPostedDate = "posted_date"
	FieldSponsored  = "sponsored"
	FieldEasyApply  = "easy_apply"
)

// JobRecord is one discovered posting in canonical shape.
type JobRecord struct {
	JobID          string    `json:"job_id"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Location       string    `json:"location,omitempty"`
	URL            string    `json:"url,omitempty"`
	Salary         string    `json:"salary,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	PostedDate     string    `json:"posted_date,omitempty"`
	Source         Source    `json:"source"`
	SearchRegion   string    `json:"search_region"`
	SearchKeywords string    `json:"search_keywords"`
	ExtractedAt    time.Time `json:"extracted_at"`
	Sponsored      bool      `json:"sponsored"`
	EasyApply      bool      `json:"easy_apply"`
}

// Valid reports whether the record satisfies the title+company invariant.
func (r JobRecord) Valid() bool {
	return r.Title != "" && r.Company != ""
}

// Stats tracks per-run counters. Owned by exactly one CrawlSession.
type Stats struct {
	TotalRequests      int       `json:"total_requests"`
	SuccessfulRequests int       `json:"successful_requests"`
	FailedRequests     int       `json:"failed_requests"`
	JobsExtracted      int       `json:"jobs_extracted"`
	ValidationFailures int       `json:"validation_failures"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
}

// CrawlError records one failed URL.
type CrawlError struct {
	URL       string    `json:"url"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary aggregates a finished run for the envelope.
type Summary struct {
	TotalJobsCollected           int     `json:"total_jobs_collected"`
	UniqueJobsAfterDeduplication int     `json:"unique_jobs_after_deduplication"`
	PagesProcessed               int     `json:"pages_processed"`
	ErrorsEncountered            int     `json:"errors_encountered"`
	AverageJobsPerPage           float64 `json:"average_jobs_per_page"`
}

// Metadata describes the run that produced an envelope.
type Metadata struct {
	Scraper   string    `json:"scraper"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope is the complete output contract of one scrape run. The caller
// always receives one, even on partial or total failure; an aborted run is
// distinguished by a non-empty AbortReason.
type Envelope struct {
	Summary     Summary      `json:"summary"`
	Jobs        []JobRecord  `json:"jobs"`
	Errors      []CrawlError `json:"errors"`
	Metadata    Metadata     `json:"metadata"`
	AbortReason string       `json:"abort_reason,omitempty"`
}

// Aborted reports whether the run ended early because of blocking.
func (e Envelope) Aborted() bool {
	return e.AbortReason != ""
}

// Clock returns the current time. Abstracted for testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for job identity derivation.
type Hasher interface {
	Hash(data []byte) (string, error)
}
