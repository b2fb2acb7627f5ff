package scraper

import (
	"context"
	"time"

	"github.com/joblens/jobscraper/internal/browser"
)

// SiteAdapter is the per-site strategy the session drives. Adapters are
// stateless aside from fixed configuration; all mutable run state lives in
// the CrawlSession.
type SiteAdapter interface {
	// Name is the registry key (e.g. "generic-search").
	Name() string

	// Source tags the records this adapter produces.
	Source() Source

	// BuildSearchURLs returns exactly maxPages search URLs encoding the
	// query, location, and pagination offsets per the site's convention.
	// Pure and deterministic.
	BuildSearchURLs(query, location string, maxPages int) []string

	// MaxConcurrency bounds simultaneous page contexts for this site.
	MaxConcurrency() int

	// NavigationTimeout bounds a single page load.
	NavigationTimeout() time.Duration

	// RequestTimeout bounds the whole navigate+extract pipeline for one
	// URL attempt.
	RequestTimeout() time.Duration

	// PreNavigate applies site-specific stealth adjustments to a fresh
	// page context before any navigation.
	PreNavigate(ctx context.Context, page browser.Page) error

	// ExtractPage reads one loaded results page into raw field
	// dictionaries. Zero job cards is a valid result, not an error.
	ExtractPage(ctx context.Context, page browser.Page) ([]RawFields, error)
}

// FormSearcher is implemented by adapters whose board expects visitors to
// arrive through its own search form. The session performs one form-driven
// warm-up navigation per run, typing the query with human keystroke
// pacing, before walking the composed result URLs.
type FormSearcher interface {
	// SearchFormURL is the landing page carrying the search form.
	SearchFormURL() string

	// SubmitSearchForm types the query and location into the form and
	// submits it.
	SubmitSearchForm(ctx context.Context, page browser.Page, query, location string) error
}
