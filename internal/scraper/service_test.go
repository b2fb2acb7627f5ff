package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joblens/jobscraper/internal/browser"
	"github.com/joblens/jobscraper/internal/config"
	"github.com/joblens/jobscraper/internal/hash/sha256"
)

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

type fakeStore struct{ inserted []JobRecord }

func (f *fakeStore) BulkInsert(_ context.Context, records []JobRecord) (int, error) {
	f.inserted = append(f.inserted, records...)
	return len(records), nil
}

func newTestService(b browser.Browser, adapter SiteAdapter, store RecordStore) *Service {
	return NewService(ServiceDeps{
		Browser: b,
		Adapters: func(name string) (SiteAdapter, error) {
			if name != adapter.Name() {
				return nil, ErrUnknownSite
			}
			return adapter, nil
		},
		Config: config.ScraperConfig{
			MaxRetries:          2,
			BackoffBaseMs:       1,
			BackoffMaxMs:        2,
			PacingMinMs:         1,
			PacingMaxMs:         2,
			BlockAbortThreshold: 2,
			MaxJobsPerRegion:    100,
		},
		Clock:  fixedClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
		IDs:    fixedIDs{id: "run-42"},
		Hasher: sha256.New(),
		Store:  store,
		Pause:  &recordingPause{},
	})
}

func TestServiceScrape(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: healthyPage})
	adapter := &fakeAdapter{
		urls: []string{url},
		conc: 1,
		raws: map[string][]RawFields{url: {
			rawJob("Go Developer", "Acme", "https://site.test/view/1"),
			rawJob("SRE", "Globex", "https://site.test/view/2"),
		}},
	}
	store := &fakeStore{}

	svc := newTestService(b, adapter, store)
	env, err := svc.Scrape(context.Background(), ScrapeRequest{
		Site:     "generic-search",
		Query:    "go developer",
		Location: "austin",
		MaxPages: 1,
	})
	require.NoError(t, err)

	require.Equal(t, "run-42", env.Metadata.RunID)
	require.Len(t, env.Jobs, 2)
	require.Len(t, store.inserted, 2, "deduplicated jobs are handed to the store")
	require.Equal(t, 2, svc.SeenJobs())
}

func TestServiceScrapeUnknownSite(t *testing.T) {
	b := browser.NewStatic(nil)
	adapter := &fakeAdapter{urls: []string{"https://site.test/jobs"}, conc: 1}

	svc := newTestService(b, adapter, nil)
	_, err := svc.Scrape(context.Background(), ScrapeRequest{Site: "nope", Query: "go"})
	require.ErrorIs(t, err, ErrUnknownSite)
}

func TestServiceScrapeRejectsEmptyQuery(t *testing.T) {
	b := browser.NewStatic(nil)
	adapter := &fakeAdapter{urls: []string{"https://site.test/jobs"}, conc: 1}

	svc := newTestService(b, adapter, nil)
	_, err := svc.Scrape(context.Background(), ScrapeRequest{Site: "generic-search"})
	require.Error(t, err)
}

func TestServiceTracksSeenAcrossRuns(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: healthyPage})
	adapter := &fakeAdapter{
		urls: []string{url},
		conc: 1,
		raws: map[string][]RawFields{url: {rawJob("Go Developer", "Acme", "https://site.test/view/1")}},
	}

	svc := newTestService(b, adapter, nil)
	for i := 0; i < 2; i++ {
		_, err := svc.Scrape(context.Background(), ScrapeRequest{Site: "generic-search", Query: "go", MaxPages: 1})
		require.NoError(t, err)
	}
	require.Equal(t, 1, svc.SeenJobs(), "the same listing across runs registers once")
}

func TestServiceSuppressesJobsFromEarlierRuns(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: healthyPage})
	adapter := &fakeAdapter{
		urls: []string{url},
		conc: 1,
		raws: map[string][]RawFields{url: {rawJob("Go Developer", "Acme", "https://site.test/view/1")}},
	}
	store := &fakeStore{}

	svc := newTestService(b, adapter, store)
	req := ScrapeRequest{Site: "generic-search", Query: "go", MaxPages: 1}

	env1, err := svc.Scrape(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, env1.Jobs, 1)

	env2, err := svc.Scrape(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, env2.Jobs, "a listing from an earlier run is not returned again")
	require.Equal(t, 0, env2.Summary.UniqueJobsAfterDeduplication)
	require.Len(t, store.inserted, 1, "the store only receives the first occurrence")
}

func TestServiceHonorsMaxJobsOverride(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: healthyPage})
	adapter := &fakeAdapter{
		urls: []string{url},
		conc: 1,
		raws: map[string][]RawFields{url: {
			rawJob("Go Developer", "Acme", "https://site.test/view/1"),
			rawJob("SRE", "Globex", "https://site.test/view/2"),
			rawJob("Platform Engineer", "Initech", "https://site.test/view/3"),
		}},
	}

	svc := newTestService(b, adapter, nil)
	env, err := svc.Scrape(context.Background(), ScrapeRequest{
		Site:     "generic-search",
		Query:    "go",
		MaxPages: 1,
		MaxJobs:  1,
	})
	require.NoError(t, err)
	require.Len(t, env.Jobs, 1)
	require.False(t, env.Aborted(), "hitting the cap is success, not abort")
}

func TestServiceDefaultsMaxPages(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: healthyPage})
	adapter := &fakeAdapter{urls: []string{url}, conc: 1}

	svc := newTestService(b, adapter, nil)
	env, err := svc.Scrape(context.Background(), ScrapeRequest{Site: "generic-search", Query: "go", MaxPages: 0})
	require.NoError(t, err)
	require.Equal(t, 1, env.Summary.PagesProcessed)
}
