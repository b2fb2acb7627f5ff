package scraper

import (
	"math/rand"
	"sync"

	"github.com/joblens/jobscraper/internal/browser"
)

// Realistic desktop user-agents. Sites correlate fingerprints across
// sessions, so the pool must be large enough that rotation looks organic.
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:127.0) Gecko/20100101 Firefox/127.0",
}

type viewport struct {
	width  int
	height int
}

var viewportPool = []viewport{
	{1920, 1080},
	{1680, 1050},
	{1536, 864},
	{1440, 900},
	{1366, 768},
	{2560, 1440},
}

// profileRetryBound caps the reject-and-retry loop when a freshly drawn
// profile collides with the previous one.
const profileRetryBound = 5

// ProfileGenerator produces per-session fingerprint profiles. Each draw is
// uniform over the pools, except that the exact user-agent+viewport pair of
// the previous draw is rejected so back-to-back sessions never present the
// same fingerprint.
type ProfileGenerator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	lastUA string
	lastVP viewport
}

// NewProfileGenerator seeds a generator.
func NewProfileGenerator(seed int64) *ProfileGenerator {
	return &ProfileGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Generate returns a fresh fingerprint profile.
func (g *ProfileGenerator) Generate() browser.Profile {
	g.mu.Lock()
	defer g.mu.Unlock()

	ua := userAgentPool[g.rng.Intn(len(userAgentPool))]
	vp := viewportPool[g.rng.Intn(len(viewportPool))]
	for i := 0; i < profileRetryBound && ua == g.lastUA && vp == g.lastVP; i++ {
		ua = userAgentPool[g.rng.Intn(len(userAgentPool))]
		vp = viewportPool[g.rng.Intn(len(viewportPool))]
	}
	g.lastUA = ua
	g.lastVP = vp

	return browser.Profile{
		UserAgent:      ua,
		ViewportWidth:  vp.width,
		ViewportHeight: vp.height,
		Headers:        standardHeaders(),
	}
}

func standardHeaders() map[string]string {
	return map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
		"Cache-Control":   "no-cache",
		"DNT":             "1",
		"Sec-Fetch-Dest":  "document",
		"Sec-Fetch-Mode":  "navigate",
		"Sec-Fetch-Site":  "none",
		"Sec-Fetch-User":  "?1",
	}
}
