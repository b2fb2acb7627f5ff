package scraper

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PauseController abstracts how the session sleeps, so tests can assert a
// pause happened without waiting for it.
type PauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPause sleeps on a timer, honoring context cancellation.
type TimerPause struct{}

// Pause blocks for delay or until ctx is done.
func (TimerPause) Pause(ctx context.Context, delay time.Duration) {
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

// Pacer inserts human-like randomized delays between queue items and
// enforces a hard requests-per-second ceiling on top of them. The delays
// are a deliberate timing contract with the remote sites, not incidental
// politeness.
type Pacer struct {
	mu      sync.Mutex
	rng     *rand.Rand
	min     time.Duration
	max     time.Duration
	keyMin  time.Duration
	keyMax  time.Duration
	limiter *rate.Limiter
	pause   PauseController
}

// NewPacer builds a Pacer. qps <= 0 disables the rate ceiling.
func NewPacer(min, max, keyMin, keyMax time.Duration, qps float64, pause PauseController) *Pacer {
	if max < min {
		max = min
	}
	if keyMax < keyMin {
		keyMax = keyMin
	}
	if pause == nil {
		pause = TimerPause{}
	}
	var limiter *rate.Limiter
	if qps > 0 {
		limiter = rate.NewLimiter(rate.Limit(qps), 1)
	}
	return &Pacer{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		min:     min,
		max:     max,
		keyMin:  keyMin,
		keyMax:  keyMax,
		limiter: limiter,
		pause:   pause,
	}
}

// Wait blocks for a randomized human-pacing delay and then for the rate
// limiter. Returns early when ctx is canceled.
func (p *Pacer) Wait(ctx context.Context) error {
	p.pause.Pause(ctx, p.nextDelay())
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// KeystrokeDelays returns the per-keystroke delay bounds for form typing.
func (p *Pacer) KeystrokeDelays() (time.Duration, time.Duration) {
	return p.keyMin, p.keyMax
}

func (p *Pacer) nextDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.max <= p.min {
		return p.min
	}
	return p.min + time.Duration(p.rng.Int63n(int64(p.max-p.min)))
}
