package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joblens/jobscraper/internal/browser"
	"github.com/joblens/jobscraper/internal/hash/sha256"
)

const (
	healthyPage = `<html><head><title>search results</title></head><body><div class="results"></div></body></html>`
	blockedPage = `<html><head><title>Just a moment...</title></head><body></body></html>`
)

// fakeAdapter serves canned raw fields keyed by page URL.
type fakeAdapter struct {
	urls       []string
	conc       int
	raws       map[string][]RawFields
	extractErr map[string]error
}

func (a *fakeAdapter) Name() string                     { return "generic-search" }
func (a *fakeAdapter) Source() Source                   { return SourceGenericSearch }
func (a *fakeAdapter) MaxConcurrency() int              { return a.conc }
func (a *fakeAdapter) NavigationTimeout() time.Duration { return time.Second }
func (a *fakeAdapter) RequestTimeout() time.Duration    { return 2 * time.Second }

func (a *fakeAdapter) BuildSearchURLs(_, _ string, maxPages int) []string {
	if maxPages > len(a.urls) {
		maxPages = len(a.urls)
	}
	return a.urls[:maxPages]
}

func (a *fakeAdapter) PreNavigate(context.Context, browser.Page) error { return nil }

func (a *fakeAdapter) ExtractPage(_ context.Context, page browser.Page) ([]RawFields, error) {
	if err := a.extractErr[page.URL()]; err != nil {
		return nil, err
	}
	return a.raws[page.URL()], nil
}

// formAdapter is a fakeAdapter whose board is entered through its search
// form.
type formAdapter struct {
	*fakeAdapter
	landing   string
	submitted []string
}

func (a *formAdapter) SearchFormURL() string { return a.landing }

func (a *formAdapter) SubmitSearchForm(_ context.Context, _ browser.Page, query, location string) error {
	a.submitted = append(a.submitted, query+"|"+location)
	return nil
}

func rawJob(title, company, url string) RawFields {
	return RawFields{
		FieldTitle:   title,
		FieldCompany: company,
		FieldURL:     url,
	}
}

func newTestSession(b browser.Browser, pause PauseController, cfg SessionConfig) *Session {
	clock := fixedClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	pacer := NewPacer(time.Millisecond, 2*time.Millisecond, 0, 0, 0, pause)
	return NewSession(
		b,
		NewProfileGenerator(1),
		NewNormalizer(sha256.New(), clock),
		NewBlockDetector(),
		NewExponentialRetryPolicy(2, time.Millisecond, 4*time.Millisecond),
		pacer,
		pause,
		clock,
		nil,
		cfg,
		nil,
	)
}

func defaultSessionConfig() SessionConfig {
	return SessionConfig{RunID: "run-1", MaxJobsPerRegion: 100, BlockAbortThreshold: 2}
}

func TestSessionCollectsAndDedupesAcrossPages(t *testing.T) {
	urls := []string{"https://site.test/jobs?start=0", "https://site.test/jobs?start=10"}
	b := browser.NewStatic(map[string]string{urls[0]: healthyPage, urls[1]: healthyPage})
	adapter := &fakeAdapter{
		urls: urls,
		conc: 2,
		raws: map[string][]RawFields{
			urls[0]: {
				rawJob("Go Developer", "Acme", "https://site.test/view/1"),
				rawJob("SRE", "Globex", "https://site.test/view/2"),
			},
			urls[1]: {
				// Same listing surfaces on both pages; only one survives.
				rawJob("Go Developer", "Acme", "https://site.test/view/1"),
				rawJob("Data Engineer", "Initech", "https://site.test/view/3"),
			},
		},
	}

	s := newTestSession(b, &recordingPause{}, defaultSessionConfig())
	env, err := s.Run(context.Background(), adapter, "go", "austin", 2)
	require.NoError(t, err)

	require.Equal(t, StateCompleted, s.State())
	require.False(t, env.Aborted())
	require.Equal(t, 2, env.Summary.PagesProcessed)
	require.Equal(t, 4, env.Summary.TotalJobsCollected)
	require.Equal(t, 3, env.Summary.UniqueJobsAfterDeduplication)
	require.Len(t, env.Jobs, 3)
	require.Equal(t, 2.0, env.Summary.AverageJobsPerPage)
	require.Equal(t, "generic-search", env.Metadata.Scraper)
	require.Equal(t, "run-1", env.Metadata.RunID)
	for _, job := range env.Jobs {
		require.Equal(t, SourceGenericSearch, job.Source)
		require.NotEmpty(t, job.JobID)
	}
}

func TestSessionWarmsUpThroughSearchForm(t *testing.T) {
	landing := "https://site.test"
	results := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{
		landing: `<html><body><form><input name="q"><input name="l"><button type="submit"></button></form></body></html>`,
		results: healthyPage,
	})
	adapter := &formAdapter{
		landing: landing,
		fakeAdapter: &fakeAdapter{
			urls: []string{results},
			conc: 1,
			raws: map[string][]RawFields{results: {rawJob("Go Developer", "Acme", "https://site.test/view/1")}},
		},
	}

	s := newTestSession(b, &recordingPause{}, defaultSessionConfig())
	env, err := s.Run(context.Background(), adapter, "go", "austin", 1)
	require.NoError(t, err)

	require.Equal(t, []string{"go|austin"}, adapter.submitted, "the form is driven once per run")
	require.Len(t, env.Jobs, 1)

	opened, stillOpen := b.OpenPages()
	require.Equal(t, 2, opened, "one warm-up page plus one results page")
	require.Zero(t, stillOpen)
}

func TestSessionAbortsOnConsecutiveBlocking(t *testing.T) {
	urls := []string{
		"https://site.test/jobs?start=0",
		"https://site.test/jobs?start=10",
		"https://site.test/jobs?start=20",
	}
	b := browser.NewStatic(map[string]string{
		urls[0]: healthyPage,
		urls[1]: blockedPage,
		urls[2]: healthyPage,
	})
	adapter := &fakeAdapter{
		urls: urls,
		conc: 1,
		raws: map[string][]RawFields{
			urls[0]: {rawJob("Go Developer", "Acme", "https://site.test/view/1")},
			urls[2]: {rawJob("SRE", "Globex", "https://site.test/view/2")},
		},
	}

	s := newTestSession(b, &recordingPause{}, defaultSessionConfig())
	env, err := s.Run(context.Background(), adapter, "go", "austin", 3)
	require.NoError(t, err, "an aborted run still yields an envelope")

	require.Equal(t, StateAborted, s.State())
	require.True(t, env.Aborted())
	require.Contains(t, env.AbortReason, "blocking detected")
	// The page scraped before the abort stays in the envelope.
	require.Len(t, env.Jobs, 1)
	require.Equal(t, "Go Developer", env.Jobs[0].Title)
	require.NotEmpty(t, env.Errors)

	opened, stillOpen := b.OpenPages()
	require.Positive(t, opened)
	require.Zero(t, stillOpen, "every page context must be released on abort")
}

func TestSessionSingleBlockIsRetriedNotFatal(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: blockedPage})
	adapter := &fakeAdapter{urls: []string{url}, conc: 1}

	// The first pause is the pacing delay before the first attempt; the
	// second is the retry backoff, during which the block clears.
	pauses := 0
	pause := &recordingPause{}
	pause.onPause = func() {
		pauses++
		if pauses == 2 {
			b.SetPage(url, healthyPage)
		}
	}
	adapter.raws = map[string][]RawFields{url: {rawJob("Go Developer", "Acme", "https://site.test/view/1")}}

	s := newTestSession(b, pause, defaultSessionConfig())
	env, err := s.Run(context.Background(), adapter, "go", "austin", 1)
	require.NoError(t, err)

	require.Equal(t, StateCompleted, s.State())
	require.False(t, env.Aborted())
	require.Len(t, env.Jobs, 1)
}

func TestSessionRetriesTransientNavigationFailure(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: healthyPage})
	b.FailNavigation(url, errors.New("net::ERR_CONNECTION_RESET"))
	adapter := &fakeAdapter{
		urls: []string{url},
		conc: 1,
		raws: map[string][]RawFields{url: {rawJob("Go Developer", "Acme", "https://site.test/view/1")}},
	}

	// The connection recovers during the first retry backoff (the
	// second pause overall; the first is the pacing delay).
	pauses := 0
	pause := &recordingPause{}
	pause.onPause = func() {
		pauses++
		if pauses == 2 {
			b.FailNavigation(url, nil)
		}
	}
	s := newTestSession(b, pause, defaultSessionConfig())
	env, err := s.Run(context.Background(), adapter, "go", "austin", 1)
	require.NoError(t, err)

	require.Equal(t, StateCompleted, s.State())
	require.Len(t, env.Jobs, 1)
	require.Empty(t, env.Errors, "a retried failure that eventually succeeds is not an error")
	// Pacing delay plus at least one backoff delay.
	require.GreaterOrEqual(t, len(pause.recorded()), 2)
}

func TestSessionGivesUpOnPersistentFailure(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: healthyPage})
	b.FailNavigation(url, errors.New("net::ERR_CONNECTION_RESET"))
	adapter := &fakeAdapter{urls: []string{url}, conc: 1}

	s := newTestSession(b, &recordingPause{}, defaultSessionConfig())
	env, err := s.Run(context.Background(), adapter, "go", "austin", 1)
	require.NoError(t, err)

	require.Equal(t, StateCompleted, s.State(), "a failed URL does not abort the run")
	require.Empty(t, env.Jobs)
	require.Len(t, env.Errors, 1)
	require.Contains(t, env.Errors[0].Error, "ERR_CONNECTION_RESET")
	require.Equal(t, 1, env.Summary.ErrorsEncountered)
}

func TestSessionEmptyPageIsNotAnError(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: healthyPage})
	adapter := &fakeAdapter{urls: []string{url}, conc: 1}

	s := newTestSession(b, &recordingPause{}, defaultSessionConfig())
	env, err := s.Run(context.Background(), adapter, "go", "austin", 1)
	require.NoError(t, err)

	require.Equal(t, 1, env.Summary.PagesProcessed)
	require.Empty(t, env.Jobs)
	require.Empty(t, env.Errors)
	require.Zero(t, env.Summary.AverageJobsPerPage)
}

func TestSessionEnforcesJobCap(t *testing.T) {
	urls := []string{"https://site.test/jobs?start=0", "https://site.test/jobs?start=10"}
	b := browser.NewStatic(map[string]string{urls[0]: healthyPage, urls[1]: healthyPage})

	var firstPage []RawFields
	for i := 0; i < 5; i++ {
		firstPage = append(firstPage, rawJob(fmt.Sprintf("Job %d", i), "Acme", fmt.Sprintf("https://site.test/view/%d", i)))
	}
	adapter := &fakeAdapter{
		urls: urls,
		conc: 1,
		raws: map[string][]RawFields{
			urls[0]: firstPage,
			urls[1]: {rawJob("Never Reached", "Acme", "https://site.test/view/99")},
		},
	}

	cfg := defaultSessionConfig()
	cfg.MaxJobsPerRegion = 3
	s := newTestSession(b, &recordingPause{}, cfg)
	env, err := s.Run(context.Background(), adapter, "go", "austin", 2)
	require.NoError(t, err)

	require.Len(t, env.Jobs, 3)
	require.Equal(t, 1, env.Summary.PagesProcessed, "queue drains once the cap is hit")
	require.False(t, env.Aborted(), "hitting the cap is success, not an abort")
}

func TestSessionCountsValidationFailures(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: healthyPage})
	adapter := &fakeAdapter{
		urls: []string{url},
		conc: 1,
		raws: map[string][]RawFields{url: {
			rawJob("Go Developer", "Acme", "https://site.test/view/1"),
			rawJob("", "Ghost Co", ""), // no title: counted, not kept
		}},
	}

	s := newTestSession(b, &recordingPause{}, defaultSessionConfig())
	env, err := s.Run(context.Background(), adapter, "go", "austin", 1)
	require.NoError(t, err)

	require.Len(t, env.Jobs, 1)
	require.Equal(t, 1, s.StatsSnapshot().ValidationFailures)
	require.Empty(t, env.Errors, "invalid records are counted, not reported as crawl errors")
}

func TestSessionIsSingleUse(t *testing.T) {
	url := "https://site.test/jobs?start=0"
	b := browser.NewStatic(map[string]string{url: healthyPage})
	adapter := &fakeAdapter{urls: []string{url}, conc: 1}

	s := newTestSession(b, &recordingPause{}, defaultSessionConfig())
	_, err := s.Run(context.Background(), adapter, "go", "austin", 1)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), adapter, "go", "austin", 1)
	require.Error(t, err)
}

func TestSessionPacesEveryRequest(t *testing.T) {
	urls := []string{"https://site.test/jobs?start=0", "https://site.test/jobs?start=10"}
	b := browser.NewStatic(map[string]string{urls[0]: healthyPage, urls[1]: healthyPage})
	adapter := &fakeAdapter{urls: urls, conc: 1}

	pause := &recordingPause{}
	s := newTestSession(b, pause, defaultSessionConfig())
	_, err := s.Run(context.Background(), adapter, "go", "austin", 2)
	require.NoError(t, err)

	// One pacing delay per URL; a delay happened, its length is the
	// pacer's business.
	require.GreaterOrEqual(t, len(pause.recorded()), 2)
}
