package scraper

import (
	"fmt"
	"strings"
)

// Normalizer maps raw field dictionaries to canonical JobRecords and
// derives the stable job identifier.
type Normalizer struct {
	hasher Hasher
	clock  Clock
}

// NewNormalizer builds a Normalizer.
func NewNormalizer(hasher Hasher, clock Clock) *Normalizer {
	return &Normalizer{hasher: hasher, clock: clock}
}

// Normalize converts one raw job card into a JobRecord. A record missing
// title or company returns a *ValidationError and must not enter any
// result batch.
func (n *Normalizer) Normalize(raw RawFields, src Source, region, keywords string) (JobRecord, error) {
	rec := JobRecord{
		Title:          strings.TrimSpace(raw[FieldTitle]),
		Company:        strings.TrimSpace(raw[FieldCompany]),
		Location:       strings.TrimSpace(raw[FieldLocation]),
		URL:            strings.TrimSpace(raw[FieldURL]),
		Salary:         strings.TrimSpace(raw[FieldSalary]),
		Summary:        strings.TrimSpace(raw[FieldSummary]),
		PostedDate:     strings.TrimSpace(raw[FieldPostedDate]),
		Source:         src,
		SearchRegion:   region,
		SearchKeywords: keywords,
		ExtractedAt:    n.clock.Now(),
		Sponsored:      parseFlag(raw[FieldSponsored]),
		EasyApply:      parseFlag(raw[FieldEasyApply]),
	}

	var missing []string
	if rec.Title == "" {
		missing = append(missing, FieldTitle)
	}
	if rec.Company == "" {
		missing = append(missing, FieldCompany)
	}
	if len(missing) > 0 {
		return JobRecord{}, &ValidationError{Missing: missing}
	}

	id, err := n.deriveID(rec)
	if err != nil {
		return JobRecord{}, fmt.Errorf("derive job id: %w", err)
	}
	rec.JobID = id
	return rec, nil
}

// deriveID prefers the canonical URL; postings without one fall back to a
// digest of title, company, and location.
func (n *Normalizer) deriveID(rec JobRecord) (string, error) {
	if u := NormalizeJobURL(rec.URL); u != "" {
		return n.hasher.Hash([]byte(u))
	}
	key := strings.ToLower(rec.Title) + "|" + strings.ToLower(rec.Company) + "|" + strings.ToLower(rec.Location)
	return n.hasher.Hash([]byte(key))
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
