package crawl

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostPacer spaces out request starts to one host. With autothrottle enabled
// the spacing follows observed latency, otherwise it stays at the fixed
// download delay.
type hostPacer struct {
	mu         sync.Mutex
	lim        *rate.Limiter
	delay      time.Duration
	minDelay   time.Duration
	maxDelay   time.Duration
	targetConc float64
	adaptive   bool
	randomize  bool
}

func newHostPacer(minDelay, startDelay, maxDelay time.Duration, targetConc float64, adaptive, randomize bool) *hostPacer {
	delay := minDelay
	if adaptive {
		delay = max(startDelay, minDelay)
	}
	if maxDelay < delay {
		maxDelay = delay
	}
	if targetConc <= 0 {
		targetConc = 1
	}

	return &hostPacer{
		lim:        rate.NewLimiter(intervalLimit(delay), 1),
		delay:      delay,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		targetConc: targetConc,
		adaptive:   adaptive,
		randomize:  randomize,
	}
}

func intervalLimit(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// wait blocks until the next request to this host may start. When
// randomization is on each interval is drawn from [0.5, 1.5) of the delay.
func (p *hostPacer) wait(ctx context.Context) error {
	p.mu.Lock()
	interval := p.delay
	if p.randomize && interval > 0 {
		interval = time.Duration(float64(interval) * (0.5 + rand.Float64()))
	}
	p.lim.SetLimit(intervalLimit(interval))
	p.mu.Unlock()

	return p.lim.Wait(ctx)
}

// observe folds one response latency into the adaptive delay. Non-2xx
// responses are never allowed to shorten it.
func (p *hostPacer) observe(latency time.Duration, ok bool) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.adaptive {
		return p.delay
	}

	target := time.Duration(float64(latency) / p.targetConc)
	next := max(target, (p.delay+target)/2)
	next = min(max(next, p.minDelay), p.maxDelay)

	if !ok && next <= p.delay {
		return p.delay
	}
	p.delay = next
	return p.delay
}

func (p *hostPacer) currentDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delay
}
