package scraper

import (
	"strings"
	"sync"
)

// identity returns the dedup key for a record: the normalized URL when one
// exists, otherwise lowercased title+"_"+company. This is a deliberately
// cheap exact-match policy; fuzzy title matching is out of scope.
func identity(rec JobRecord) string {
	if u := NormalizeJobURL(rec.URL); u != "" {
		return u
	}
	return strings.ToLower(rec.Title) + "_" + strings.ToLower(rec.Company)
}

// Dedupe merges a batch against itself, keeping the first-seen record per
// identity and preserving input order. The suppressed-duplicate count is
// returned alongside the unique set. Dedupe is idempotent.
func Dedupe(records []JobRecord) ([]JobRecord, int) {
	unique := make([]JobRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	suppressed := 0
	for _, rec := range records {
		key := identity(rec)
		if _, ok := seen[key]; ok {
			suppressed++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, rec)
	}
	return unique, suppressed
}

// SeenSet tracks identities across runs so a batch can also be merged
// against previously collected records. Safe for concurrent use.
type SeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewSeenSet creates an empty SeenSet.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// FilterSeen drops records whose identity was seen in a previous batch and
// registers the survivors. Order is preserved.
func (s *SeenSet) FilterSeen(records []JobRecord) ([]JobRecord, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make([]JobRecord, 0, len(records))
	suppressed := 0
	for _, rec := range records {
		key := identity(rec)
		if _, ok := s.ids[key]; ok {
			suppressed++
			continue
		}
		s.ids[key] = struct{}{}
		fresh = append(fresh, rec)
	}
	return fresh, suppressed
}

// Size returns how many identities have been registered.
func (s *SeenSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
