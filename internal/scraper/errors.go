package scraper

import (
	"errors"
	"fmt"
)

// ErrUnknownSite is returned before any navigation when the requested site
// name has no registered adapter.
var ErrUnknownSite = errors.New("unknown site")

// ErrJobCapReached signals the per-run job cap was hit; it stops the queue
// without marking the run as failed.
var ErrJobCapReached = errors.New("job cap reached")

// BlockedError is raised when anti-automation defenses are detected. A
// single detection is retried like any transient failure; consecutive
// detections abort the whole run and surface this error in the envelope.
type BlockedError struct {
	URL         string
	Signal      string
	Consecutive int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocking detected at %s (signal %q, consecutive %d)", e.URL, e.Signal, e.Consecutive)
}

// ChallengeError indicates a security-challenge interstitial was shown.
// The adapter has already waited it out; the request should be retried.
type ChallengeError struct {
	URL string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("security challenge interstitial at %s", e.URL)
}

// ValidationError reports a raw record that failed the title+company
// invariant. Such records are counted, never silently merged.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record invalid: missing %v", e.Missing)
}
