// Package app initializes and holds the long-lived application services,
// acting as the dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joblens/jobscraper/internal/api"
	"github.com/joblens/jobscraper/internal/browser"
	"github.com/joblens/jobscraper/internal/clock/system"
	"github.com/joblens/jobscraper/internal/config"
	"github.com/joblens/jobscraper/internal/hash/sha256"
	"github.com/joblens/jobscraper/internal/id/uuid"
	"github.com/joblens/jobscraper/internal/logging"
	"github.com/joblens/jobscraper/internal/scraper"
	"github.com/joblens/jobscraper/internal/sites"
	"github.com/joblens/jobscraper/internal/storage"
	"github.com/joblens/jobscraper/internal/storage/memory"
	"github.com/joblens/jobscraper/internal/storage/postgres"
)

// App holds the shared, long-lived services: logger, browser, store, and
// the scraping service. Initialized once at startup and torn down via
// Close.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Browser browser.Browser
	Store   storage.Store
	Service *scraper.Service
	Server  *api.Server
}

// New builds the full service graph from configuration. It fails fast:
// any service that cannot be initialized aborts startup.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	chrome, err := browser.NewChrome(logger, browser.TimerPauser{})
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	var store storage.Store
	if cfg.DB.DSN != "" {
		logger.Info("connecting to postgres")
		store, err = postgres.NewStore(ctx, postgres.StoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
		})
		if err != nil {
			return nil, fmt.Errorf("connect job store: %w", err)
		}
	} else {
		logger.Info("no db.dsn configured, using in-memory job store")
		store = memory.NewStore()
	}

	var snapshots *scraper.SnapshotSink
	if cfg.Snapshot.Enabled {
		snapshots, err = scraper.NewSnapshotSink(cfg.Snapshot.Dir, cfg.Snapshot.MaxBytes, logger)
		if err != nil {
			return nil, fmt.Errorf("open snapshot sink: %w", err)
		}
	}

	siteOpts := sites.Options{
		KeystrokeMin: cfg.Scraper.KeystrokeMin(),
		KeystrokeMax: cfg.Scraper.KeystrokeMax(),
		Logger:       logger,
	}
	adapters := func(name string) (scraper.SiteAdapter, error) {
		return sites.New(name, cfg.Sites, siteOpts)
	}

	svc := scraper.NewService(scraper.ServiceDeps{
		Browser:   chrome,
		Adapters:  adapters,
		Config:    cfg.Scraper,
		Clock:     system.New(),
		IDs:       uuid.New(),
		Hasher:    sha256.New(),
		Store:     store,
		Snapshots: snapshots,
		Logger:    logger,
	})

	return &App{
		Config:  cfg,
		Logger:  logger,
		Browser: chrome,
		Store:   store,
		Service: svc,
		Server:  api.NewServer(svc, store, logger),
	}, nil
}

// Close gracefully shuts down the services.
func (a *App) Close() {
	a.Logger.Info("shutting down")
	if err := a.Browser.Close(); err != nil {
		a.Logger.Warn("closing browser failed", zap.Error(err))
	}
	a.Store.Close()
	// Best effort: stderr sync failures on shutdown are not actionable.
	_ = a.Logger.Sync()
}
