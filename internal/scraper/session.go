package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/joblens/jobscraper/internal/browser"
)

// SessionState is the lifecycle state of one crawl run.
type SessionState string

// Session lifecycle states.
const (
	StateIdle      SessionState = "idle"
	StateRunning   SessionState = "running"
	StateCompleted SessionState = "completed"
	StateAborted   SessionState = "aborted"
)

// SessionConfig carries the run-scoped knobs.
type SessionConfig struct {
	RunID               string
	MaxJobsPerRegion    int
	BlockAbortThreshold int
}

// Session owns one adapter run: the request queue, the bounded worker
// pool, retries, blocking escalation, and the result/stat buffers. A
// Session is single-use; sequential queries each get a fresh one, which is
// what keeps results and stats free of cross-run sharing.
type Session struct {
	browser    browser.Browser
	profiles   *ProfileGenerator
	normalizer *Normalizer
	detector   *BlockDetector
	retry      *ExponentialRetryPolicy
	pacer      *Pacer
	pause      PauseController
	clock      Clock
	snapshots  *SnapshotSink
	logger     *zap.Logger
	cfg        SessionConfig

	mu                sync.Mutex
	state             SessionState
	stats             Stats
	results           []JobRecord
	errors            []CrawlError
	pagesProcessed    int
	consecutiveBlocks int
	abortReason       string
}

// NewSession assembles a single-use session. snapshots may be nil.
func NewSession(
	b browser.Browser,
	profiles *ProfileGenerator,
	normalizer *Normalizer,
	detector *BlockDetector,
	retry *ExponentialRetryPolicy,
	pacer *Pacer,
	pause PauseController,
	clock Clock,
	snapshots *SnapshotSink,
	cfg SessionConfig,
	logger *zap.Logger,
) *Session {
	if pause == nil {
		pause = TimerPause{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		browser:    b,
		profiles:   profiles,
		normalizer: normalizer,
		detector:   detector,
		retry:      retry,
		pacer:      pacer,
		pause:      pause,
		clock:      clock,
		snapshots:  snapshots,
		logger:     logger,
		cfg:        cfg,
		state:      StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StatsSnapshot returns a copy of the run counters.
func (s *Session) StatsSnapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run drives the adapter over the generated search URLs and always
// produces an envelope, even on partial or total failure. A Session can
// run exactly once.
func (s *Session) Run(ctx context.Context, adapter SiteAdapter, query, location string, maxPages int) (Envelope, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return Envelope{}, errors.New("session already used; sessions are single-run")
	}
	s.state = StateRunning
	s.stats.StartTime = s.clock.Now()
	s.mu.Unlock()

	// One fingerprint per session, never reused across sessions.
	profile := s.profiles.Generate()

	urls := adapter.BuildSearchURLs(query, location, maxPages)
	s.logger.Info("crawl session starting",
		zap.String("site", adapter.Name()),
		zap.String("query", query),
		zap.String("location", location),
		zap.Int("pages", len(urls)),
		zap.Int("concurrency", adapter.MaxConcurrency()),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.warmUp(runCtx, adapter, profile, query, location)

	queue := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < adapter.MaxConcurrency(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range queue {
				if runCtx.Err() != nil {
					continue
				}
				if err := s.pacer.Wait(runCtx); err != nil {
					continue
				}
				s.processURL(runCtx, cancel, adapter, profile, url, query, location)
			}
		}()
	}

	for _, u := range urls {
		queue <- u
	}
	close(queue)
	// Waiting here is what guarantees every page context is released
	// before the envelope is returned, aborted or not.
	wg.Wait()

	return s.finish(adapter, query, location), nil
}

// warmUp drives the site's own search form once when the adapter supports
// it, so the session arrives at the result pages the way a visitor would.
// Warm-up failures are logged and never fail the run; the composed search
// URLs work without it.
func (s *Session) warmUp(ctx context.Context, adapter SiteAdapter, profile browser.Profile, query, location string) {
	form, ok := adapter.(FormSearcher)
	if !ok {
		return
	}

	page, err := s.browser.NewPage(ctx, profile)
	if err != nil {
		s.logger.Warn("search form warm-up skipped", zap.Error(err))
		return
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			s.logger.Warn("page close failed", zap.Error(cerr))
		}
	}()

	if err := adapter.PreNavigate(ctx, page); err != nil {
		s.logger.Warn("search form warm-up skipped", zap.Error(err))
		return
	}
	if err := page.Navigate(ctx, form.SearchFormURL(), adapter.NavigationTimeout()); err != nil {
		s.logger.Warn("search form warm-up skipped", zap.Error(err))
		return
	}
	if err := form.SubmitSearchForm(ctx, page, query, location); err != nil {
		s.logger.Warn("search form submission failed", zap.Error(err))
	}
}

// processURL runs the retry loop for one search URL. Giving up on a URL
// never fails the run; only blocking escalation does.
func (s *Session) processURL(ctx context.Context, abort context.CancelFunc, adapter SiteAdapter, profile browser.Profile, url, query, location string) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts(); attempt++ {
		lastErr = s.fetchOnce(ctx, abort, adapter, profile, url, query, location)
		if lastErr == nil {
			return
		}
		if errors.Is(lastErr, ErrJobCapReached) {
			return
		}

		var blocked *BlockedError
		if errors.As(lastErr, &blocked) {
			TotalBlocksDetected.WithLabelValues(adapter.Name()).Inc()
			if s.noteBlocking(blocked, adapter) {
				s.recordFailure(url, blocked)
				abort()
				return
			}
		}

		if !s.retry.ShouldRetry(lastErr, attempt) {
			break
		}
		s.logger.Warn("request failed, backing off",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		s.pause.Pause(ctx, s.retry.Backoff(attempt))
		if ctx.Err() != nil {
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	TotalRequestErrors.WithLabelValues(adapter.Name()).Inc()
	s.recordFailure(url, lastErr)
}

// fetchOnce executes the sequential page pipeline for one attempt:
// open page -> stealth hooks -> navigate -> blocking check -> extract ->
// normalize -> append.
func (s *Session) fetchOnce(ctx context.Context, abort context.CancelFunc, adapter SiteAdapter, profile browser.Profile, url, query, location string) error {
	reqCtx, cancel := context.WithTimeout(ctx, adapter.RequestTimeout())
	defer cancel()

	s.mu.Lock()
	s.stats.TotalRequests++
	s.mu.Unlock()
	TotalRequests.WithLabelValues(adapter.Name()).Inc()

	page, err := s.browser.NewPage(reqCtx, profile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			s.logger.Warn("page close failed", zap.Error(cerr))
		}
	}()

	if err := adapter.PreNavigate(reqCtx, page); err != nil {
		return err
	}
	if err := page.Navigate(reqCtx, url, adapter.NavigationTimeout()); err != nil {
		return err
	}

	if signal, err := s.inspectForBlocking(reqCtx, page, url); err != nil {
		return err
	} else if signal != "" {
		return &BlockedError{URL: url, Signal: signal}
	}

	raws, err := adapter.ExtractPage(reqCtx, page)
	if err != nil {
		return err
	}

	s.saveSnapshot(reqCtx, adapter, page, url)
	s.appendRecords(abort, adapter, raws, url, query, location)
	return nil
}

func (s *Session) inspectForBlocking(ctx context.Context, page browser.Page, url string) (string, error) {
	title, err := page.Title(ctx)
	if err != nil {
		return "", err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return s.detector.Inspect(title, doc), nil
}

// noteBlocking bumps the consecutive-detection counter and reports whether
// the run must abort.
func (s *Session) noteBlocking(blocked *BlockedError, adapter SiteAdapter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveBlocks++
	blocked.Consecutive = s.consecutiveBlocks
	if s.consecutiveBlocks >= s.cfg.BlockAbortThreshold {
		if s.abortReason == "" {
			s.abortReason = blocked.Error()
			TotalRunsAborted.WithLabelValues(adapter.Name()).Inc()
			s.logger.Error("aborting run on consecutive blocking", zap.String("signal", blocked.Signal))
		}
		return true
	}
	return false
}

// appendRecords normalizes and appends valid records, enforcing the
// per-run job cap. Invalid records are counted, never silently dropped.
func (s *Session) appendRecords(abort context.CancelFunc, adapter SiteAdapter, raws []RawFields, url, query, location string) {
	capReached := false

	s.mu.Lock()
	s.consecutiveBlocks = 0
	s.stats.SuccessfulRequests++
	s.pagesProcessed++
	for _, raw := range raws {
		rec, err := s.normalizer.Normalize(raw, adapter.Source(), location, query)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				s.stats.ValidationFailures++
				TotalValidationFailures.WithLabelValues(adapter.Name()).Inc()
				s.logger.Warn("record failed validation",
					zap.String("url", url),
					zap.Strings("missing", verr.Missing),
				)
				continue
			}
			s.errors = append(s.errors, CrawlError{URL: url, Error: err.Error(), Timestamp: s.clock.Now()})
			continue
		}
		if len(s.results) >= s.cfg.MaxJobsPerRegion {
			capReached = true
			break
		}
		s.results = append(s.results, rec)
		s.stats.JobsExtracted++
		TotalJobsExtracted.WithLabelValues(adapter.Name()).Inc()
	}
	s.mu.Unlock()

	if capReached {
		s.logger.Info("job cap reached, draining queue", zap.Int("cap", s.cfg.MaxJobsPerRegion))
		abort()
	}
}

func (s *Session) recordFailure(url string, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FailedRequests++
	s.errors = append(s.errors, CrawlError{URL: url, Error: err.Error(), Timestamp: s.clock.Now()})
}

func (s *Session) saveSnapshot(ctx context.Context, adapter SiteAdapter, page browser.Page, url string) {
	if s.snapshots == nil {
		return
	}
	html, err := page.HTML(ctx)
	if err != nil {
		s.logger.Warn("snapshot read failed", zap.String("url", url), zap.Error(err))
		return
	}
	meta := SnapshotMeta{
		RunID:     s.cfg.RunID,
		URL:       url,
		Site:      adapter.Name(),
		FetchedAt: s.clock.Now(),
	}
	if _, err := s.snapshots.Save(meta, html); err != nil {
		s.logger.Warn("snapshot save failed", zap.String("url", url), zap.Error(err))
	}
}

// finish closes out the run: dedupe, final state, envelope assembly.
func (s *Session) finish(adapter SiteAdapter, query, location string) Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.EndTime = s.clock.Now()
	if s.abortReason != "" {
		s.state = StateAborted
	} else {
		s.state = StateCompleted
	}

	unique, suppressed := Dedupe(s.results)

	avg := 0.0
	if s.pagesProcessed > 0 {
		avg = float64(s.stats.JobsExtracted) / float64(s.pagesProcessed)
	}

	s.logger.Info("crawl session finished",
		zap.String("site", adapter.Name()),
		zap.String("state", string(s.state)),
		zap.Int("jobs", len(unique)),
		zap.Int("duplicates_suppressed", suppressed),
		zap.Int("errors", len(s.errors)),
	)

	return Envelope{
		Summary: Summary{
			TotalJobsCollected:           s.stats.JobsExtracted,
			UniqueJobsAfterDeduplication: len(unique),
			PagesProcessed:               s.pagesProcessed,
			ErrorsEncountered:            len(s.errors),
			AverageJobsPerPage:           avg,
		},
		Jobs:        unique,
		Errors:      append([]CrawlError(nil), s.errors...),
		Metadata:    Metadata{Scraper: adapter.Name(), RunID: s.cfg.RunID, Timestamp: s.stats.EndTime},
		AbortReason: s.abortReason,
	}
}
