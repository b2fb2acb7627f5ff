package sites

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/joblens/jobscraper/internal/browser"
	"github.com/joblens/jobscraper/internal/config"
	"github.com/joblens/jobscraper/internal/scraper"
)

// Salary scrapes the salary-disclosure board. Listings there lead with
// compensation, so the salary chain is the richest of the three sites, and
// the site greets new sessions with a signup overlay that has to be
// dismissed before the cards are reachable.
type Salary struct {
	cfg    config.SiteConfig
	logger *zap.Logger
}

var salaryContainers = []string{
	"li[data-test='jobListing']",
	"li.react-job-listing",
	"div.jobCard",
	"article.job-listing",
}

// Overlay close buttons tried in order; Escape is the fallback when none
// of them exist in the current markup variant.
var salaryOverlayClose = []string{
	"button[data-test='modal-close']",
	"span.modal_closeIcon",
	"button.e1jbctw80",
	"div.modal button.close",
}

var (
	salaryTitle    = []string{"a[data-test='job-title']", "a.jobLink span", "div.job-title"}
	salaryCompany  = []string{"span[data-test='employer-name']", "div.employer-name", "a.job-search-key-l2wjgv"}
	salaryLocation = []string{"div[data-test='emp-location']", "span.job-location", "div.location"}
	salaryLink     = []string{"a[data-test='job-title']", "a.jobLink"}
	salaryAmount   = []string{
		"div[data-test='detailSalary']",
		"span[data-test='salary-estimate']",
		"span.salary-estimate",
		"div.salaryEstimate",
	}
	salaryPosted  = []string{"div[data-test='job-age']", "span.listing-age"}
	salarySummary = []string{"div.job-snippet", "p.job-description-snippet"}
)

// NewSalary builds the salary-disclosure adapter.
func NewSalary(opts Options) *Salary {
	return &Salary{
		cfg:    opts.Config,
		logger: opts.logger(),
	}
}

func (s *Salary) Name() string                     { return string(scraper.SourceSalaryDisclosure) }
func (s *Salary) Source() scraper.Source           { return scraper.SourceSalaryDisclosure }
func (s *Salary) MaxConcurrency() int              { return s.cfg.MaxConcurrency }
func (s *Salary) NavigationTimeout() time.Duration { return s.cfg.NavTimeout() }
func (s *Salary) RequestTimeout() time.Duration    { return s.cfg.RequestTimeout() }

// BuildSearchURLs uses one-based page-number pagination.
func (s *Salary) BuildSearchURLs(query, location string, maxPages int) []string {
	urls := make([]string, 0, maxPages)
	for page := 1; page <= maxPages; page++ {
		v := url.Values{}
		v.Set("q", query)
		v.Set("loc", location)
		v.Set("page", fmt.Sprintf("%d", page))
		urls = append(urls, fmt.Sprintf("%s/Job/jobs.htm?%s", strings.TrimSuffix(s.cfg.BaseURL, "/"), v.Encode()))
	}
	return urls
}

// PreNavigate installs the stealth overrides.
func (s *Salary) PreNavigate(ctx context.Context, page browser.Page) error {
	return page.Evaluate(ctx, stealthScript)
}

// ExtractPage dismisses the signup overlay, waits for listing cards, and
// resolves fields with the salary chain first-class.
func (s *Salary) ExtractPage(ctx context.Context, page browser.Page) ([]scraper.RawFields, error) {
	s.dismissOverlay(ctx, page)

	matched, err := scraper.WaitAnyVisible(ctx, page, salaryContainers, s.cfg.SelectorTimeout())
	if err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return nil, nil
		}
		return nil, err
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	var raws []scraper.RawFields
	doc.Find(matched).Each(func(_ int, card *goquery.Selection) {
		raws = append(raws, scraper.RawFields{
			scraper.FieldTitle:      scraper.ResolveText(card, salaryTitle),
			scraper.FieldCompany:    scraper.ResolveText(card, salaryCompany),
			scraper.FieldLocation:   scraper.ResolveText(card, salaryLocation),
			scraper.FieldURL:        absolutize(s.cfg.BaseURL, scraper.ResolveAttr(card, "href", salaryLink)),
			scraper.FieldSalary:     scraper.ResolveText(card, salaryAmount),
			scraper.FieldPostedDate: scraper.ResolveText(card, salaryPosted),
			scraper.FieldSummary:    scraper.ResolveText(card, salarySummary),
		})
	})
	s.logger.Debug("extracted job cards", zap.String("container", matched), zap.Int("count", len(raws)))
	return raws, nil
}

// dismissOverlay clicks the first close button present, falling back to
// Escape. Failures are logged and ignored: the overlay may simply not be
// there, and the card wait decides whether extraction can proceed.
func (s *Salary) dismissOverlay(ctx context.Context, page browser.Page) {
	for _, sel := range salaryOverlayClose {
		if err := page.Click(ctx, sel); err == nil {
			s.logger.Debug("dismissed overlay", zap.String("selector", sel))
			return
		}
	}
	if err := page.Press(ctx, "Escape"); err != nil {
		s.logger.Debug("overlay escape failed", zap.Error(err))
	}
}
