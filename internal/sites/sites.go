// Package sites holds the per-board SiteAdapter implementations and the
// registry that maps site names to adapters. Each adapter encodes one
// board's URL conventions, selector fallback chains, and quirks; everything
// run-scoped lives in the scraper session.
package sites

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joblens/jobscraper/internal/config"
	"github.com/joblens/jobscraper/internal/scraper"
)

// Options carries the shared adapter wiring.
type Options struct {
	Config       config.SiteConfig
	KeystrokeMin time.Duration
	KeystrokeMax time.Duration
	Pause        scraper.PauseController
	Logger       *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) pause() scraper.PauseController {
	if o.Pause == nil {
		return scraper.TimerPause{}
	}
	return o.Pause
}

// New returns the adapter registered under name, or ErrUnknownSite. The
// lookup happens before any browser work so misconfiguration fails fast.
func New(name string, cfg config.SitesConfig, opts Options) (scraper.SiteAdapter, error) {
	switch name {
	case string(scraper.SourceGenericSearch):
		opts.Config = cfg.Generic
		return NewGeneric(opts), nil
	case string(scraper.SourceProfessionalNetwork):
		opts.Config = cfg.Network
		return NewNetwork(opts), nil
	case string(scraper.SourceSalaryDisclosure):
		opts.Config = cfg.Salary
		return NewSalary(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (known: %s)", scraper.ErrUnknownSite, name, strings.Join(Names(), ", "))
	}
}

// Names lists the registered site names.
func Names() []string {
	return []string{
		string(scraper.SourceGenericSearch),
		string(scraper.SourceProfessionalNetwork),
		string(scraper.SourceSalaryDisclosure),
	}
}

// stealthScript hides the most common automation tells before the first
// navigation: the webdriver flag, an empty plugin list, and a missing
// window.chrome object.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
if (!window.chrome) { window.chrome = { runtime: {} }; }
`

// absolutize resolves a card href against the site base URL.
func absolutize(baseURL, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "/"):
		return strings.TrimSuffix(baseURL, "/") + href
	default:
		return strings.TrimSuffix(baseURL, "/") + "/" + href
	}
}

func boolField(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
