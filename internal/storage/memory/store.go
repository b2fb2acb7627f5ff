// Package memory provides an in-memory job record store for development
// and testing.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/joblens/jobscraper/internal/scraper"
)

// Store keeps job records in a map keyed by job ID.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]scraper.JobRecord
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]scraper.JobRecord)}
}

// BulkInsert adds records, skipping job IDs already present, and returns
// how many were actually added.
func (s *Store) BulkInsert(_ context.Context, records []scraper.JobRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, rec := range records {
		if _, exists := s.jobs[rec.JobID]; exists {
			continue
		}
		s.jobs[rec.JobID] = rec
		inserted++
	}
	return inserted, nil
}

// RecentJobs returns up to limit records, newest first, optionally
// filtered by source site.
func (s *Store) RecentJobs(_ context.Context, site string, limit int) ([]scraper.JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	records := make([]scraper.JobRecord, 0, len(s.jobs))
	for _, rec := range s.jobs {
		if site != "" && string(rec.Source) != site {
			continue
		}
		records = append(records, rec)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].ExtractedAt.After(records[j].ExtractedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Close is a no-op.
func (s *Store) Close() {}

// Len returns how many records are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
