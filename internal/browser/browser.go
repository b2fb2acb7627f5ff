// Package browser abstracts the headless-browser automation primitive the
// scraping engine drives: page navigation, element waits, reads, clicks,
// typing, and DOM snapshots. The engine never talks to a browser library
// directly; it programs against Browser and Page so tests can substitute
// the static implementation.
package browser

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrWaitTimeout indicates a selector never became visible within its budget.
var ErrWaitTimeout = errors.New("selector wait timed out")

// Pauser abstracts the inter-keystroke sleep so tests can observe the
// typing cadence without waiting for it.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPauser sleeps on a timer, honoring context cancellation.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// pauseBetween draws a delay in [min, max] and hands it to pause. The
// caller's context error is surfaced so a canceled typing loop stops.
func pauseBetween(ctx context.Context, pause Pauser, min, max time.Duration) error {
	d := min
	if max > min {
		d = min + time.Duration(rand.Int63n(int64(max-min)))
	}
	if d > 0 {
		pause.Pause(ctx, d)
	}
	return ctx.Err()
}

// Profile is the fingerprint presented to a remote site for one page
// context: user-agent, viewport, and extra headers. Immutable once applied.
type Profile struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Headers        map[string]string
}

// Browser creates page contexts carrying a fingerprint profile.
type Browser interface {
	NewPage(ctx context.Context, profile Profile) (Page, error)
	Close() error
}

// Page is one browser page context. Every blocking operation takes a
// context and, where the operation can stall on the remote site, an
// explicit timeout. Implementations must never block indefinitely.
type Page interface {
	// Navigate loads url and waits for the DOM to be ready.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// URL returns the last successfully navigated URL, or "" before the
	// first navigation.
	URL() string

	// WaitVisible blocks until selector matches a visible element, or
	// fails with ErrWaitTimeout.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Title returns the document title.
	Title(ctx context.Context) (string, error)

	// HTML returns a snapshot of the rendered DOM.
	HTML(ctx context.Context) (string, error)

	// Click dispatches a click on the first element matching selector.
	Click(ctx context.Context, selector string) error

	// TypeSlowly focuses selector and types text one keystroke at a
	// time, pausing a random duration in [minDelay, maxDelay] between
	// keys. The pauses are part of the human-pacing contract.
	TypeSlowly(ctx context.Context, selector, text string, minDelay, maxDelay time.Duration) error

	// Press sends a bare key (e.g. Escape) to the page.
	Press(ctx context.Context, key string) error

	// Evaluate runs a script in the page, discarding the result.
	Evaluate(ctx context.Context, script string) error

	Close() error
}
