// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Sites    SitesConfig    `mapstructure:"sites"`
	DB       DBConfig       `mapstructure:"db"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScraperConfig governs the crawl session: retries, pacing, blocking
// escalation, and the per-run job cap.
type ScraperConfig struct {
	MaxRetries          int     `mapstructure:"max_retries"`
	BackoffBaseMs       int     `mapstructure:"backoff_base_ms"`
	BackoffMaxMs        int     `mapstructure:"backoff_max_ms"`
	PacingMinMs         int     `mapstructure:"pacing_min_ms"`
	PacingMaxMs         int     `mapstructure:"pacing_max_ms"`
	KeystrokeMinMs      int     `mapstructure:"keystroke_min_ms"`
	KeystrokeMaxMs      int     `mapstructure:"keystroke_max_ms"`
	RequestsPerSecond   float64 `mapstructure:"requests_per_second"`
	BlockAbortThreshold int     `mapstructure:"block_abort_threshold"`
	MaxJobsPerRegion    int     `mapstructure:"max_jobs_per_region"`
}

// BackoffBase returns the first retry backoff delay.
func (s ScraperConfig) BackoffBase() time.Duration {
	return time.Duration(s.BackoffBaseMs) * time.Millisecond
}

// BackoffMax returns the retry backoff ceiling.
func (s ScraperConfig) BackoffMax() time.Duration {
	return time.Duration(s.BackoffMaxMs) * time.Millisecond
}

// PacingMin returns the lower bound of the inter-request delay.
func (s ScraperConfig) PacingMin() time.Duration {
	return time.Duration(s.PacingMinMs) * time.Millisecond
}

// PacingMax returns the upper bound of the inter-request delay.
func (s ScraperConfig) PacingMax() time.Duration {
	return time.Duration(s.PacingMaxMs) * time.Millisecond
}

// KeystrokeMin returns the lower bound of the inter-key delay.
func (s ScraperConfig) KeystrokeMin() time.Duration {
	return time.Duration(s.KeystrokeMinMs) * time.Millisecond
}

// KeystrokeMax returns the upper bound of the inter-key delay.
func (s ScraperConfig) KeystrokeMax() time.Duration {
	return time.Duration(s.KeystrokeMaxMs) * time.Millisecond
}

// SiteConfig holds the per-site knobs every adapter needs. The three
// timeouts are deliberately distinct: navigation must finish before the
// selector wait starts, and both are bounded by the per-request budget.
type SiteConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	MaxConcurrency     int    `mapstructure:"max_concurrency"`
	NavTimeoutSec      int    `mapstructure:"nav_timeout_seconds"`
	SelectorTimeoutSec int    `mapstructure:"selector_timeout_seconds"`
	RequestTimeoutSec  int    `mapstructure:"request_timeout_seconds"`
	ChallengeWaitSec   int    `mapstructure:"challenge_wait_seconds"`
}

// NavTimeout returns the page navigation deadline.
func (s SiteConfig) NavTimeout() time.Duration {
	return time.Duration(s.NavTimeoutSec) * time.Second
}

// SelectorTimeout returns the container-wait deadline.
func (s SiteConfig) SelectorTimeout() time.Duration {
	return time.Duration(s.SelectorTimeoutSec) * time.Second
}

// RequestTimeout returns the whole per-request budget.
func (s SiteConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

// ChallengeWait returns how long to sit out a security interstitial.
func (s SiteConfig) ChallengeWait() time.Duration {
	return time.Duration(s.ChallengeWaitSec) * time.Second
}

// SitesConfig groups the three supported job boards.
type SitesConfig struct {
	Generic SiteConfig `mapstructure:"generic_search"`
	Network SiteConfig `mapstructure:"professional_network"`
	Salary  SiteConfig `mapstructure:"salary_disclosure"`
}

// DBConfig controls access to the relational job store.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// SnapshotConfig controls raw page archival for selector-drift forensics.
type SnapshotConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

// Load builds a Config from disk/environment. Env vars use the
// JOBSCRAPER_ prefix with dots replaced by underscores.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)

	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.backoff_base_ms", 500)
	v.SetDefault("scraper.backoff_max_ms", 8000)
	v.SetDefault("scraper.pacing_min_ms", 1500)
	v.SetDefault("scraper.pacing_max_ms", 4000)
	v.SetDefault("scraper.keystroke_min_ms", 50)
	v.SetDefault("scraper.keystroke_max_ms", 180)
	v.SetDefault("scraper.requests_per_second", 0.5)
	v.SetDefault("scraper.block_abort_threshold", 2)
	v.SetDefault("scraper.max_jobs_per_region", 200)

	v.SetDefault("sites.generic_search.base_url", "https://www.jobsearcher.com")
	v.SetDefault("sites.generic_search.max_concurrency", 2)
	v.SetDefault("sites.generic_search.nav_timeout_seconds", 15)
	v.SetDefault("sites.generic_search.selector_timeout_seconds", 20)
	v.SetDefault("sites.generic_search.request_timeout_seconds", 45)

	// The professional network rate limits aggressively: one page at a
	// time and the longest budget of the three boards.
	v.SetDefault("sites.professional_network.base_url", "https://www.careernetwork.com")
	v.SetDefault("sites.professional_network.max_concurrency", 1)
	v.SetDefault("sites.professional_network.nav_timeout_seconds", 25)
	v.SetDefault("sites.professional_network.selector_timeout_seconds", 35)
	v.SetDefault("sites.professional_network.request_timeout_seconds", 120)
	v.SetDefault("sites.professional_network.challenge_wait_seconds", 45)

	v.SetDefault("sites.salary_disclosure.base_url", "https://www.salarysight.com")
	v.SetDefault("sites.salary_disclosure.max_concurrency", 2)
	v.SetDefault("sites.salary_disclosure.nav_timeout_seconds", 15)
	v.SetDefault("sites.salary_disclosure.selector_timeout_seconds", 25)
	v.SetDefault("sites.salary_disclosure.request_timeout_seconds", 60)

	v.SetDefault("db.max_open_conns", 4)

	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.dir", "snapshots")
	v.SetDefault("snapshot.max_bytes", int64(5<<20))
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.MaxRetries <= 0 {
		return fmt.Errorf("scraper.max_retries must be > 0")
	}
	if c.Scraper.BackoffBaseMs <= 0 || c.Scraper.BackoffMaxMs < c.Scraper.BackoffBaseMs {
		return fmt.Errorf("scraper backoff bounds are inconsistent")
	}
	if c.Scraper.PacingMinMs < 0 || c.Scraper.PacingMaxMs < c.Scraper.PacingMinMs {
		return fmt.Errorf("scraper pacing bounds are inconsistent")
	}
	if c.Scraper.BlockAbortThreshold <= 0 {
		return fmt.Errorf("scraper.block_abort_threshold must be > 0")
	}
	if c.Scraper.MaxJobsPerRegion <= 0 {
		return fmt.Errorf("scraper.max_jobs_per_region must be > 0")
	}
	for name, site := range map[string]SiteConfig{
		"sites.generic_search":       c.Sites.Generic,
		"sites.professional_network": c.Sites.Network,
		"sites.salary_disclosure":    c.Sites.Salary,
	} {
		if err := site.validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Snapshot.Enabled && c.Snapshot.Dir == "" {
		return fmt.Errorf("snapshot.dir must be set when snapshots are enabled")
	}
	return nil
}

func (s SiteConfig) validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("base_url must be set")
	}
	if s.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be > 0")
	}
	if s.NavTimeoutSec <= 0 {
		return fmt.Errorf("nav_timeout_seconds must be > 0")
	}
	if s.SelectorTimeoutSec <= s.NavTimeoutSec {
		return fmt.Errorf("selector_timeout_seconds must exceed nav_timeout_seconds")
	}
	if s.RequestTimeoutSec <= s.SelectorTimeoutSec {
		return fmt.Errorf("request_timeout_seconds must exceed selector_timeout_seconds")
	}
	return nil
}
