package scraper

import (
	"net/url"
	"strings"
)

// NormalizeJobURL standardizes a posting URL for identity comparison:
// fragment removed, lowercased, trailing slash stripped. Job boards decorate
// the same posting with tracking params and case variants, so identity is
// judged on the normalized form, never the raw one.
func NormalizeJobURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil {
		u.Fragment = ""
		raw = u.String()
	}
	return strings.TrimSuffix(strings.ToLower(raw), "/")
}
