// Package ratelimit implements the fixed-interval request pacing required
// by the pricing upstream. The service enforces a 50 requests/minute
// ceiling, so a mandatory gap is honored before every call, including the
// first one of a batch.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultInterval is the gap derived from the 50 req/min budget.
const DefaultInterval = 1200 * time.Millisecond

// Prometheus metrics for pacing.
var (
	pacerWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "appraiser_pacer_wait_seconds",
		Help:    "Time spent waiting for the pricing request pacer",
		Buckets: []float64{0.1, 0.5, 1, 1.2, 2, 5},
	})

	pacerAcquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appraiser_pacer_acquires_total",
		Help: "Total number of pacer acquisitions",
	})
)

// Clock abstracts time for testing. Tests inject a fake clock so pacing
// logic can be verified without real wall-clock waits.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock implements Clock using the time package.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SystemClock returns a Clock backed by real time.
func SystemClock() Clock { return realClock{} }

// Pacer enforces a minimum gap before each acquired call slot.
// It is not safe for concurrent use; the pricing stage that owns it runs
// strictly sequentially.
type Pacer struct {
	interval time.Duration
	clock    Clock
	logger   zerolog.Logger
	lastCall time.Time
}

// NewPacer creates a pacer with the given minimum gap between calls.
func NewPacer(interval time.Duration, clock Clock, logger zerolog.Logger) *Pacer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Pacer{
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Acquire blocks until the caller may issue the next request. The full
// gap is honored before the first call as well, matching the upstream
// budget contract. Returns the context error if cancelled while waiting.
func (p *Pacer) Acquire(ctx context.Context) error {
	pacerAcquiresTotal.Inc()

	wait := p.interval
	if !p.lastCall.IsZero() {
		elapsed := p.clock.Now().Sub(p.lastCall)
		if elapsed >= p.interval {
			wait = 0
		} else {
			wait = p.interval - elapsed
		}
	}

	if wait > 0 {
		p.logger.Debug().
			Dur("wait", wait).
			Msg("Pacing pricing request")

		pacerWaitSeconds.Observe(wait.Seconds())

		if err := p.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	p.lastCall = p.clock.Now()
	return nil
}

// Interval returns the configured minimum gap.
func (p *Pacer) Interval() time.Duration { return p.interval }
