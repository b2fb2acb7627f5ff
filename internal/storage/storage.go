// Package storage defines the persistence interface for collected job
// records. The abstraction keeps the scraping engine independent of the
// backing store; Postgres is the production implementation and the
// in-memory store serves development and tests.
package storage

import (
	"context"

	"github.com/joblens/jobscraper/internal/scraper"
)

// Store persists deduplicated job records.
type Store interface {
	// BulkInsert writes records, skipping any whose job ID already
	// exists. It returns the number actually inserted, so replaying an
	// envelope is safe and observable.
	BulkInsert(ctx context.Context, records []scraper.JobRecord) (int, error)

	// RecentJobs returns up to limit records, newest first, optionally
	// filtered by source site ("" means all sites).
	RecentJobs(ctx context.Context, site string, limit int) ([]scraper.JobRecord, error)

	// Close releases the underlying resources.
	Close()
}
