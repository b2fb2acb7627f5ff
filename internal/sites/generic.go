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

// Generic scrapes the generic search-form board. Pagination is a start
// offset in increments of ten results per page.
type Generic struct {
	cfg    config.SiteConfig
	keyMin time.Duration
	keyMax time.Duration
	logger *zap.Logger
}

// Container fallbacks: the board shipped a card redesign without retiring
// the old markup everywhere, so both variants stay in the chain.
var genericContainers = []string{
	"div.job_seen_beacon",
	"div.cardOutline",
	"td.resultContent",
	"div.jobsearch-SerpJobCard",
	"div.result",
}

var (
	genericTitle     = []string{"h2.jobTitle span[title]", "h2.jobTitle a", "h2.jobTitle", "a.jobtitle"}
	genericCompany   = []string{"[data-testid='company-name']", "span.companyName", "span.company"}
	genericLocation  = []string{"[data-testid='text-location']", "div.companyLocation", "span.location"}
	genericLink      = []string{"h2.jobTitle a", "a.jcs-JobTitle", "a.jobtitle"}
	genericSalary    = []string{"[data-testid='attribute_snippet_testid']", "div.salary-snippet-container", "span.salaryText"}
	genericSummary   = []string{"div.job-snippet", "div.summary"}
	genericPosted    = []string{"span.date", "[data-testid='myJobsStateDate']"}
	genericSponsored = []string{"span.sponsoredGray", "[data-testid='sponsored-label']", "span.sponsored-job"}
	genericEasyApply = []string{"[data-testid='easy-apply-badge']", "span.iaLabel", "span.easy-apply"}
)

// NewGeneric builds the generic-search adapter.
func NewGeneric(opts Options) *Generic {
	return &Generic{
		cfg:    opts.Config,
		keyMin: opts.KeystrokeMin,
		keyMax: opts.KeystrokeMax,
		logger: opts.logger(),
	}
}

func (g *Generic) Name() string                     { return string(scraper.SourceGenericSearch) }
func (g *Generic) Source() scraper.Source           { return scraper.SourceGenericSearch }
func (g *Generic) MaxConcurrency() int              { return g.cfg.MaxConcurrency }
func (g *Generic) NavigationTimeout() time.Duration { return g.cfg.NavTimeout() }
func (g *Generic) RequestTimeout() time.Duration    { return g.cfg.RequestTimeout() }

// BuildSearchURLs encodes q/l query params with a start offset of ten
// results per page.
func (g *Generic) BuildSearchURLs(query, location string, maxPages int) []string {
	urls := make([]string, 0, maxPages)
	for page := 0; page < maxPages; page++ {
		v := url.Values{}
		v.Set("q", query)
		v.Set("l", location)
		v.Set("start", fmt.Sprintf("%d", page*10))
		urls = append(urls, fmt.Sprintf("%s/jobs?%s", strings.TrimSuffix(g.cfg.BaseURL, "/"), v.Encode()))
	}
	return urls
}

// PreNavigate installs the stealth overrides.
func (g *Generic) PreNavigate(ctx context.Context, page browser.Page) error {
	return page.Evaluate(ctx, stealthScript)
}

// SearchFormURL is the landing page the session warms up on before
// walking prebuilt search URLs.
func (g *Generic) SearchFormURL() string {
	return strings.TrimSuffix(g.cfg.BaseURL, "/")
}

// SubmitSearchForm drives the on-page search form with human-paced
// keystrokes.
func (g *Generic) SubmitSearchForm(ctx context.Context, page browser.Page, query, location string) error {
	if err := page.TypeSlowly(ctx, "input[name='q']", query, g.keyMin, g.keyMax); err != nil {
		return fmt.Errorf("type query: %w", err)
	}
	if err := page.TypeSlowly(ctx, "input[name='l']", location, g.keyMin, g.keyMax); err != nil {
		return fmt.Errorf("type location: %w", err)
	}
	if err := page.Click(ctx, "button[type='submit']"); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	return nil
}

// ExtractPage waits for job cards through the container fallback chain and
// resolves every semantic field per card. An empty page is a valid
// terminal state.
func (g *Generic) ExtractPage(ctx context.Context, page browser.Page) ([]scraper.RawFields, error) {
	matched, err := scraper.WaitAnyVisible(ctx, page, genericContainers, g.cfg.SelectorTimeout())
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
		raw := scraper.RawFields{
			scraper.FieldTitle:      scraper.ResolveText(card, genericTitle),
			scraper.FieldCompany:    scraper.ResolveText(card, genericCompany),
			scraper.FieldLocation:   scraper.ResolveText(card, genericLocation),
			scraper.FieldURL:        absolutize(g.cfg.BaseURL, scraper.ResolveAttr(card, "href", genericLink)),
			scraper.FieldSalary:     scraper.ResolveText(card, genericSalary),
			scraper.FieldSummary:    scraper.ResolveText(card, genericSummary),
			scraper.FieldPostedDate: scraper.ResolveText(card, genericPosted),
			scraper.FieldSponsored:  boolField(scraper.Exists(card, genericSponsored)),
			scraper.FieldEasyApply:  boolField(scraper.Exists(card, genericEasyApply)),
		}
		raws = append(raws, raw)
	})
	g.logger.Debug("extracted job cards", zap.String("container", matched), zap.Int("count", len(raws)))
	return raws, nil
}
