package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupeByNormalizedURL(t *testing.T) {
	t.Parallel()
	records := []JobRecord{
		{Title: "Engineer", Company: "Acme", URL: "https://x.com/1"},
		{Title: "Engineer", Company: "Acme", URL: "https://X.com/1/"},
	}

	unique, suppressed := Dedupe(records)
	require.Len(t, unique, 1)
	require.Equal(t, 1, suppressed)
	require.Equal(t, "https://x.com/1", unique[0].URL, "first-seen record survives")
}

func TestDedupeByTitleCompanyWhenNoURL(t *testing.T) {
	t.Parallel()
	records := []JobRecord{
		{Title: "Engineer", Company: "Acme", Location: "Austin"},
		{Title: "engineer", Company: "ACME", Location: "Dallas"},
		{Title: "Engineer", Company: "Globex"},
	}

	unique, suppressed := Dedupe(records)
	require.Len(t, unique, 2)
	require.Equal(t, 1, suppressed)
	require.Equal(t, "Austin", unique[0].Location)
}

func TestDedupeURLTakesPrecedenceOverTitleCompany(t *testing.T) {
	t.Parallel()
	// Same title+company but distinct URLs: both survive.
	records := []JobRecord{
		{Title: "Engineer", Company: "Acme", URL: "https://x.com/1"},
		{Title: "Engineer", Company: "Acme", URL: "https://x.com/2"},
	}

	unique, suppressed := Dedupe(records)
	require.Len(t, unique, 2)
	require.Zero(t, suppressed)
}

func TestDedupeIsIdempotent(t *testing.T) {
	t.Parallel()
	records := []JobRecord{
		{Title: "A", Company: "C1", URL: "https://x.com/a"},
		{Title: "A", Company: "C1", URL: "https://x.com/a/"},
		{Title: "B", Company: "C2"},
		{Title: "b", Company: "c2"},
		{Title: "C", Company: "C3", URL: "https://x.com/c"},
	}

	once, _ := Dedupe(records)
	twice, suppressed := Dedupe(once)
	require.Equal(t, once, twice)
	require.Zero(t, suppressed)
}

func TestDedupeOrderPreserved(t *testing.T) {
	t.Parallel()
	records := []JobRecord{
		{Title: "First", Company: "A"},
		{Title: "Second", Company: "B"},
		{Title: "first", Company: "a"},
		{Title: "Third", Company: "C"},
	}

	unique, _ := Dedupe(records)
	require.Equal(t, []string{"First", "Second", "Third"}, []string{unique[0].Title, unique[1].Title, unique[2].Title})
}

func TestDedupeEmptyBatch(t *testing.T) {
	t.Parallel()
	unique, suppressed := Dedupe(nil)
	require.Empty(t, unique)
	require.Zero(t, suppressed)
}

func TestSeenSetFiltersAcrossBatches(t *testing.T) {
	t.Parallel()
	seen := NewSeenSet()

	first, suppressed := seen.FilterSeen([]JobRecord{
		{Title: "Engineer", Company: "Acme", URL: "https://x.com/1"},
	})
	require.Len(t, first, 1)
	require.Zero(t, suppressed)

	second, suppressed := seen.FilterSeen([]JobRecord{
		{Title: "Engineer", Company: "Acme", URL: "https://X.com/1/"},
		{Title: "Analyst", Company: "Globex"},
	})
	require.Len(t, second, 1)
	require.Equal(t, 1, suppressed)
	require.Equal(t, "Analyst", second[0].Title)
	require.Equal(t, 2, seen.Size())
}
