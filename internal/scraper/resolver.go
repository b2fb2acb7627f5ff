package scraper

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/joblens/jobscraper/internal/browser"
)

// Job-board markup drifts constantly and without notice. Every semantic
// field is therefore resolved through an ordered candidate chain: the most
// specific, most stable selectors first, legacy structural fallbacks last.
// The first candidate yielding non-empty content wins.

// ResolveText returns the text of the first candidate selector matching a
// non-empty element within sel, or "" when the chain is exhausted.
func ResolveText(sel *goquery.Selection, candidates []string) string {
	for _, c := range candidates {
		if text := strings.TrimSpace(sel.Find(c).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// ResolveAttr returns the named attribute from the first candidate with a
// non-empty value, or "".
func ResolveAttr(sel *goquery.Selection, attr string, candidates []string) string {
	for _, c := range candidates {
		if val, ok := sel.Find(c).First().Attr(attr); ok {
			if val = strings.TrimSpace(val); val != "" {
				return val
			}
		}
	}
	return ""
}

// Exists reports whether any candidate matches within sel.
func Exists(sel *goquery.Selection, candidates []string) bool {
	for _, c := range candidates {
		if sel.Find(c).Length() > 0 {
			return true
		}
	}
	return false
}

// WaitAnyVisible walks the candidate chain against a live page, giving each
// candidate an equal slice of the overall budget. It returns the selector
// that became visible. Exhausting the chain returns browser.ErrWaitTimeout;
// callers treat that as "zero containers", not a failure.
func WaitAnyVisible(ctx context.Context, page browser.Page, candidates []string, timeout time.Duration) (string, error) {
	if len(candidates) == 0 {
		return "", browser.ErrWaitTimeout
	}
	perCandidate := timeout / time.Duration(len(candidates))
	if perCandidate <= 0 {
		perCandidate = timeout
	}
	for _, c := range candidates {
		err := page.WaitVisible(ctx, c, perCandidate)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, browser.ErrWaitTimeout) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", browser.ErrWaitTimeout
}
