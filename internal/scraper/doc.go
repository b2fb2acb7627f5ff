// Package scraper implements the multi-site scraping orchestration engine:
// fingerprint profiles, selector fallback resolution, blocking detection,
// record normalization and deduplication, retry policy, human pacing, and
// the crawl session that ties them together over a site adapter.
package scraper
