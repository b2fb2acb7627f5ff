package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joblens/jobscraper/internal/browser"
	"github.com/joblens/jobscraper/internal/config"
)

// ScrapeRequest is one crawl order: which board, what to search for, and
// how many result pages to walk. MaxJobs, when positive, overrides the
// configured per-run job cap.
type ScrapeRequest struct {
	Site     string `json:"site"`
	Query    string `json:"query"`
	Location string `json:"location"`
	MaxPages int    `json:"max_pages"`
	MaxJobs  int    `json:"max_jobs,omitempty"`
}

// AdapterFactory resolves a site name to its adapter. Resolution failure
// must happen before any browser work.
type AdapterFactory func(name string) (SiteAdapter, error)

// RecordStore persists deduplicated job records. Inserts are idempotent on
// job ID, so replaying an envelope is safe.
type RecordStore interface {
	BulkInsert(ctx context.Context, records []JobRecord) (int, error)
}

// Service is the long-lived orchestration entry point. Each Scrape call
// builds a fresh single-use Session; the Service itself only carries the
// cross-run state: the fingerprint rotation, the shared request-rate
// limiter, and the seen-job set.
type Service struct {
	browser   browser.Browser
	adapters  AdapterFactory
	cfg       config.ScraperConfig
	clock     Clock
	ids       IDGenerator
	hasher    Hasher
	store     RecordStore
	snapshots *SnapshotSink
	pause     PauseController
	logger    *zap.Logger

	profiles   *ProfileGenerator
	normalizer *Normalizer
	detector   *BlockDetector
	pacer      *Pacer
	seen       *SeenSet
}

// ServiceDeps carries the Service wiring. Store, Snapshots, and Pause are
// optional.
type ServiceDeps struct {
	Browser   browser.Browser
	Adapters  AdapterFactory
	Config    config.ScraperConfig
	Clock     Clock
	IDs       IDGenerator
	Hasher    Hasher
	Store     RecordStore
	Snapshots *SnapshotSink
	Pause     PauseController
	Logger    *zap.Logger
}

// NewService wires the orchestration service.
func NewService(deps ServiceDeps) *Service {
	if deps.Pause == nil {
		deps.Pause = TimerPause{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	cfg := deps.Config
	return &Service{
		browser:    deps.Browser,
		adapters:   deps.Adapters,
		cfg:        cfg,
		clock:      deps.Clock,
		ids:        deps.IDs,
		hasher:     deps.Hasher,
		store:      deps.Store,
		snapshots:  deps.Snapshots,
		pause:      deps.Pause,
		logger:     deps.Logger,
		profiles:   NewProfileGenerator(deps.Clock.Now().UnixNano()),
		normalizer: NewNormalizer(deps.Hasher, deps.Clock),
		detector:   NewBlockDetector(),
		pacer: NewPacer(
			cfg.PacingMin(), cfg.PacingMax(),
			cfg.KeystrokeMin(), cfg.KeystrokeMax(),
			cfg.RequestsPerSecond, deps.Pause,
		),
		seen: NewSeenSet(),
	}
}

// Scrape runs one crawl end to end and returns the result envelope. The
// envelope is produced even when the run aborts; only request validation
// and infrastructure failures return an error instead.
func (s *Service) Scrape(ctx context.Context, req ScrapeRequest) (Envelope, error) {
	if req.Query == "" {
		return Envelope{}, fmt.Errorf("query must not be empty")
	}
	if req.MaxPages <= 0 {
		req.MaxPages = 1
	}

	adapter, err := s.adapters(req.Site)
	if err != nil {
		return Envelope{}, err
	}

	runID, err := s.ids.NewID()
	if err != nil {
		return Envelope{}, fmt.Errorf("generate run id: %w", err)
	}

	jobCap := s.cfg.MaxJobsPerRegion
	if req.MaxJobs > 0 {
		jobCap = req.MaxJobs
	}

	session := NewSession(
		s.browser,
		s.profiles,
		s.normalizer,
		s.detector,
		NewExponentialRetryPolicy(s.cfg.MaxRetries, s.cfg.BackoffBase(), s.cfg.BackoffMax()),
		s.pacer,
		s.pause,
		s.clock,
		s.snapshots,
		SessionConfig{
			RunID:               runID,
			MaxJobsPerRegion:    jobCap,
			BlockAbortThreshold: s.cfg.BlockAbortThreshold,
		},
		s.logger.With(zap.String("run_id", runID)),
	)

	env, err := session.Run(ctx, adapter, req.Query, req.Location, req.MaxPages)
	if err != nil {
		return Envelope{}, err
	}

	// The session deduplicates within the run; the service additionally
	// merges against every earlier run, so the envelope and the store only
	// ever carry a listing once per service lifetime.
	fresh, repeats := s.seen.FilterSeen(env.Jobs)
	if repeats > 0 {
		s.logger.Info("suppressed jobs already returned by earlier runs",
			zap.String("run_id", runID),
			zap.Int("repeats", repeats),
		)
	}
	env.Jobs = fresh
	env.Summary.UniqueJobsAfterDeduplication = len(fresh)

	if s.store != nil && len(env.Jobs) > 0 {
		inserted, serr := s.store.BulkInsert(ctx, env.Jobs)
		if serr != nil {
			s.logger.Error("persisting results failed", zap.String("run_id", runID), zap.Error(serr))
		} else {
			s.logger.Info("results persisted",
				zap.String("run_id", runID),
				zap.Int("inserted", inserted),
				zap.Int("total", len(env.Jobs)),
			)
		}
	}
	return env, nil
}

// SeenJobs returns how many distinct job identities this service instance
// has returned across runs.
func (s *Service) SeenJobs() int {
	return s.seen.Size()
}
