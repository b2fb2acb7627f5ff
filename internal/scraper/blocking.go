package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BlockDetector inspects loaded pages for known anti-automation signals.
// Detection must be loud: a blocked page looks like "zero jobs found" to a
// naive extractor, and silently reporting that is the one failure mode the
// engine is not allowed to have.
type BlockDetector struct {
	titleMarkers []string
	selectors    []string
}

// NewBlockDetector builds a detector with the default signal set, plus any
// extra title markers from configuration.
func NewBlockDetector(extraMarkers ...string) *BlockDetector {
	markers := []string{
		"just a moment",
		"access denied",
		"verify you are human",
		"attention required",
		"security check",
		"request blocked",
		"are you a robot",
	}
	for _, m := range extraMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}
	return &BlockDetector{
		titleMarkers: markers,
		selectors: []string{
			"#challenge-form",
			"#challenge-running",
			".cf-browser-verification",
			"iframe[src*='captcha']",
			"iframe[title*='challenge']",
			"form[action*='captcha']",
		},
	}
}

// Inspect returns the matched signal when the page shows a blocking or
// challenge interstitial, or "" when the page looks healthy.
func (d *BlockDetector) Inspect(title string, doc *goquery.Document) string {
	lowerTitle := strings.ToLower(title)
	for _, m := range d.titleMarkers {
		if strings.Contains(lowerTitle, m) {
			return "title:" + m
		}
	}
	if doc == nil {
		return ""
	}
	for _, sel := range d.selectors {
		if doc.Find(sel).Length() > 0 {
			return "selector:" + sel
		}
	}
	return ""
}
