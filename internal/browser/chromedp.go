package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// ChromeBrowser implements Browser using chromedp and headless Chrome.
// One exec allocator is shared; each NewPage call opens a fresh tab with
// its own fingerprint profile.
type ChromeBrowser struct {
	allocator   context.Context
	allocCancel context.CancelFunc
	pause       Pauser
	logger      *zap.Logger
}

// NewChrome starts a headless Chrome allocator. pause controls the
// inter-keystroke cadence of TypeSlowly; nil uses a real timer.
func NewChrome(logger *zap.Logger, pause Pauser) (*ChromeBrowser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pause == nil {
		pause = TimerPauser{}
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromeBrowser{
		allocator:   allocCtx,
		allocCancel: allocCancel,
		pause:       pause,
		logger:      logger,
	}, nil
}

// NewPage opens a tab and applies the fingerprint profile before any
// navigation so the first request already carries it.
func (b *ChromeBrowser) NewPage(ctx context.Context, profile Profile) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.allocator)

	headers := make(network.Headers, len(profile.Headers))
	for k, v := range profile.Headers {
		headers[k] = v
	}

	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		emulation.SetUserAgentOverride(profile.UserAgent),
		emulation.SetDeviceMetricsOverride(
			int64(profile.ViewportWidth), int64(profile.ViewportHeight), 1.0, false,
		),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("apply fingerprint profile: %w", err)
	}

	return &chromePage{
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		pause:     b.pause,
		logger:    b.logger,
	}, nil
}

// Close tears down the allocator and every open tab.
func (b *ChromeBrowser) Close() error {
	b.allocCancel()
	return nil
}

type chromePage struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
	pause     Pauser
	logger    *zap.Logger
	url       string
}

func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, taskCtx, cancel)
	defer stop()
	return chromedp.Run(taskCtx, actions...)
}

// forwardCancel propagates cancellation from the caller's context into the
// tab-scoped task context, since chromedp tasks only watch the latter.
func forwardCancel(caller, task context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-caller.Done():
			cancel()
		case <-task.Done():
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.Navigate(url), chromedp.WaitReady("body")); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	p.url = url
	return nil
}

func (p *chromePage) URL() string { return p.url }

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrWaitTimeout
		}
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, 10*time.Second, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 15*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot dom: %w", err)
	}
	return html, nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, 10*time.Second, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) TypeSlowly(ctx context.Context, selector, text string, minDelay, maxDelay time.Duration) error {
	if err := p.Click(ctx, selector); err != nil {
		return err
	}
	for _, r := range text {
		if err := p.run(ctx, 5*time.Second, chromedp.KeyEvent(string(r))); err != nil {
			return fmt.Errorf("type into %q: %w", selector, err)
		}
		if err := pauseBetween(ctx, p.pause, minDelay, maxDelay); err != nil {
			return err
		}
	}
	return nil
}

func (p *chromePage) Press(ctx context.Context, key string) error {
	code := key
	if strings.EqualFold(key, "Escape") {
		code = kb.Escape
	}
	if err := p.run(ctx, 5*time.Second, chromedp.KeyEvent(code)); err != nil {
		return fmt.Errorf("press %q: %w", key, err)
	}
	return nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string) error {
	if err := p.run(ctx, 10*time.Second, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	return nil
}

func (p *chromePage) Close() error {
	p.tabCancel()
	return nil
}
