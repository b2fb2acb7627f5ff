package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// StaticBrowser serves canned HTML documents keyed by URL. It exists so the
// engine, adapters, and resolver can be exercised without a real browser;
// the chromedp implementation is integration-tested separately.
type StaticBrowser struct {
	mu      sync.Mutex
	pages   map[string]string
	navErrs map[string]error
	pause   Pauser
	opened  []*StaticPage
	closed  bool
}

// NewStatic creates a StaticBrowser over url->html documents.
func NewStatic(pages map[string]string) *StaticBrowser {
	cp := make(map[string]string, len(pages))
	for k, v := range pages {
		cp[k] = v
	}
	return &StaticBrowser{
		pages:   cp,
		navErrs: make(map[string]error),
	}
}

// SetPauser routes the typing cadence of every page through pause, so
// tests can record the inter-keystroke delays. Without one the delays are
// skipped; a test double should not sleep.
func (b *StaticBrowser) SetPauser(pause Pauser) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pause = pause
}

// FailNavigation makes every navigation to url return err.
func (b *StaticBrowser) FailNavigation(url string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navErrs[url] = err
}

// SetPage adds or replaces a document.
func (b *StaticBrowser) SetPage(url, html string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[url] = html
}

// NewPage opens a page context. The profile is recorded, not interpreted.
func (b *StaticBrowser) NewPage(_ context.Context, profile Profile) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("browser is closed")
	}
	p := &StaticPage{browser: b, Profile: profile}
	b.opened = append(b.opened, p)
	return p, nil
}

// Close marks the browser closed.
func (b *StaticBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// OpenPages returns how many pages were opened and how many remain open.
func (b *StaticBrowser) OpenPages() (opened, stillOpen int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.opened {
		if !p.Closed() {
			stillOpen++
		}
	}
	return len(b.opened), stillOpen
}

// StaticPage is one page context over a StaticBrowser document set.
// Clicking a selector removes the matched nodes from the document, which
// is enough to simulate overlay dismissal.
type StaticPage struct {
	Profile Profile

	mu      sync.Mutex
	browser *StaticBrowser
	doc     *goquery.Document
	url     string
	clicks  []string
	typed   []string
	pressed []string
	scripts []string
	closed  bool
}

func (p *StaticPage) Navigate(_ context.Context, url string, _ time.Duration) error {
	p.browser.mu.Lock()
	navErr := p.browser.navErrs[url]
	html, ok := p.browser.pages[url]
	p.browser.mu.Unlock()

	if navErr != nil {
		return navErr
	}
	if !ok {
		html = "<html><head><title>Not Found</title></head><body></body></html>"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse document for %s: %w", url, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
	p.url = url
	return nil
}

func (p *StaticPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *StaticPage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return fmt.Errorf("no document loaded")
	}
	if p.doc.Find(selector).Length() == 0 {
		return ErrWaitTimeout
	}
	return nil
}

func (p *StaticPage) Title(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", fmt.Errorf("no document loaded")
	}
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

func (p *StaticPage) HTML(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", fmt.Errorf("no document loaded")
	}
	html, err := p.doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return html, nil
}

func (p *StaticPage) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, selector)
	if p.doc == nil {
		return fmt.Errorf("no document loaded")
	}
	sel := p.doc.Find(selector)
	if sel.Length() == 0 {
		return fmt.Errorf("no element matches %q", selector)
	}
	sel.Remove()
	return nil
}

func (p *StaticPage) TypeSlowly(ctx context.Context, selector, text string, minDelay, maxDelay time.Duration) error {
	p.browser.mu.Lock()
	pause := p.browser.pause
	p.browser.mu.Unlock()

	if pause != nil {
		for range text {
			if err := pauseBetween(ctx, pause, minDelay, maxDelay); err != nil {
				return err
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed = append(p.typed, selector+"="+text)
	return nil
}

func (p *StaticPage) Press(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pressed = append(p.pressed, key)
	return nil
}

func (p *StaticPage) Evaluate(_ context.Context, script string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, script)
	return nil
}

func (p *StaticPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *StaticPage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Clicks returns the selectors clicked so far.
func (p *StaticPage) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Pressed returns the keys pressed so far.
func (p *StaticPage) Pressed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.pressed...)
}

// Scripts returns the evaluated scripts so far.
func (p *StaticPage) Scripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.scripts...)
}
