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

// Network scrapes the professional-network board. The site is the most
// aggressively defended of the three: concurrency stays at one page at a
// time and an interstitial challenge can appear on any navigation, so
// extraction first waits out the challenge before giving up on a page.
type Network struct {
	cfg    config.SiteConfig
	pause  scraper.PauseController
	logger *zap.Logger
}

var networkContainers = []string{
	"div.base-search-card",
	"li.jobs-search-results__list-item",
	"div.job-search-card",
	"li.result-card",
}

var (
	networkChallenge = []string{
		"#challenge-form",
		"div.authwall-join-form",
		"form.challenge-form",
		"iframe[title*='challenge']",
	}
	networkTitle    = []string{"h3.base-search-card__title", "a.job-card-list__title", "h3.result-card__title"}
	networkCompany  = []string{"h4.base-search-card__subtitle", "a.job-card-container__company-name", "h4.result-card__subtitle"}
	networkLocation = []string{"span.job-search-card__location", "li.job-card-container__metadata-item", "span.job-result-card__location"}
	networkLink     = []string{"a.base-card__full-link", "a.job-card-list__title", "a.result-card__full-card-link"}
	networkSalary   = []string{"span.job-search-card__salary-info", "div.salary.compensation__salary"}
	networkPosted   = []string{"time.job-search-card__listdate", "time.job-search-card__listdate--new", "time.job-result-card__listdate"}
	networkEasy     = []string{"span.job-card-container__apply-method", "[data-test-easy-apply-badge]"}
)

// NewNetwork builds the professional-network adapter.
func NewNetwork(opts Options) *Network {
	return &Network{
		cfg:    opts.Config,
		pause:  opts.pause(),
		logger: opts.logger(),
	}
}

func (n *Network) Name() string                     { return string(scraper.SourceProfessionalNetwork) }
func (n *Network) Source() scraper.Source           { return scraper.SourceProfessionalNetwork }
func (n *Network) MaxConcurrency() int              { return n.cfg.MaxConcurrency }
func (n *Network) NavigationTimeout() time.Duration { return n.cfg.NavTimeout() }
func (n *Network) RequestTimeout() time.Duration    { return n.cfg.RequestTimeout() }

// BuildSearchURLs encodes keywords/location params with a start offset of
// twenty-five results per page.
func (n *Network) BuildSearchURLs(query, location string, maxPages int) []string {
	urls := make([]string, 0, maxPages)
	for page := 0; page < maxPages; page++ {
		v := url.Values{}
		v.Set("keywords", query)
		v.Set("location", location)
		v.Set("start", fmt.Sprintf("%d", page*25))
		urls = append(urls, fmt.Sprintf("%s/jobs/search?%s", strings.TrimSuffix(n.cfg.BaseURL, "/"), v.Encode()))
	}
	return urls
}

// PreNavigate installs the stealth overrides.
func (n *Network) PreNavigate(ctx context.Context, page browser.Page) error {
	return page.Evaluate(ctx, stealthScript)
}

// ExtractPage resolves job cards into raw fields. When a challenge
// interstitial is present instead of results, the adapter waits out the
// configured challenge window once and retries the card wait; a challenge
// that survives the wait surfaces as ChallengeError.
func (n *Network) ExtractPage(ctx context.Context, page browser.Page) ([]scraper.RawFields, error) {
	matched, err := scraper.WaitAnyVisible(ctx, page, networkContainers, n.cfg.SelectorTimeout())
	if err != nil {
		if !errors.Is(err, browser.ErrWaitTimeout) {
			return nil, err
		}
		challenged, cerr := n.onChallengePage(ctx, page)
		if cerr != nil {
			return nil, cerr
		}
		if !challenged {
			return nil, nil
		}
		n.logger.Info("challenge interstitial detected, waiting",
			zap.Duration("wait", n.cfg.ChallengeWait()))
		n.pause.Pause(ctx, n.cfg.ChallengeWait())
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matched, err = scraper.WaitAnyVisible(ctx, page, networkContainers, n.cfg.SelectorTimeout())
		if err != nil {
			if errors.Is(err, browser.ErrWaitTimeout) {
				return nil, &scraper.ChallengeError{URL: page.URL()}
			}
			return nil, err
		}
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
			scraper.FieldTitle:      scraper.ResolveText(card, networkTitle),
			scraper.FieldCompany:    scraper.ResolveText(card, networkCompany),
			scraper.FieldLocation:   scraper.ResolveText(card, networkLocation),
			scraper.FieldURL:        absolutize(n.cfg.BaseURL, scraper.ResolveAttr(card, "href", networkLink)),
			scraper.FieldSalary:     scraper.ResolveText(card, networkSalary),
			scraper.FieldPostedDate: scraper.ResolveText(card, networkPosted),
			scraper.FieldEasyApply:  boolField(scraper.Exists(card, networkEasy)),
		})
	})
	n.logger.Debug("extracted job cards", zap.String("container", matched), zap.Int("count", len(raws)))
	return raws, nil
}

// onChallengePage checks the current DOM for a challenge interstitial.
func (n *Network) onChallengePage(ctx context.Context, page browser.Page) (bool, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return false, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, fmt.Errorf("parse challenge check: %w", err)
	}
	return scraper.Exists(doc.Selection, networkChallenge), nil
}
