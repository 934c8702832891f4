package fetch

import (
	"math/rand"
	"sync"
	"time"
)

// Limiter paces outbound requests globally. All workers share one instance;
// the mutex is held across the sleep so the delay applies to the whole
// process rather than per goroutine.
type Limiter struct {
	mu           sync.Mutex
	base         time.Duration
	longEvery    int
	longMin      time.Duration
	longMax      time.Duration
	lastRequest  time.Time
	requestCount int
}

// NewLimiter builds a limiter with the configured base delay and a longer
// pause every longEvery requests to break up the request cadence.
func NewLimiter(base time.Duration, longEvery int) *Limiter {
	if longEvery <= 0 {
		longEvery = 20
	}
	return &Limiter{
		base:      base,
		longEvery: longEvery,
		longMin:   8 * time.Second,
		longMax:   15 * time.Second,
	}
}

// SetLongPause overrides the range of the periodic long pause.
func (l *Limiter) SetLongPause(min, max time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.longMin = min
	l.longMax = max
}

// Wait blocks until the next request is allowed to go out. The target delay
// is drawn uniformly from [0.8*base, 1.5*base]; hint overrides the
// configured base when the site advertises a crawl-delay.
func (l *Limiter) Wait(hint time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	base := l.base
	if hint > 0 {
		base = hint
	}

	if l.requestCount > 0 && base > 0 {
		elapsed := time.Since(l.lastRequest)
		target := uniformDuration(
			time.Duration(0.8*float64(base)),
			time.Duration(1.5*float64(base)),
		)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	l.lastRequest = time.Now()
	l.requestCount++

	if l.requestCount%l.longEvery == 0 {
		time.Sleep(uniformDuration(l.longMin, l.longMax))
	}
}

// Requests returns the number of requests paced so far.
func (l *Limiter) Requests() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requestCount
}

func uniformDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
