package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for adaptive throttling.
var (
	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_throttle_events_total",
		Help: "Total number of rate-limit signals that contracted the request rate",
	})

	recoveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_throttle_recoveries_total",
		Help: "Total number of rate increases during recovery toward baseline",
	})
)

// Defaults for throttle behavior.
const (
	// DefaultCooldown is how long after the last rate-limit signal the rate
	// is held down before recovery steps begin.
	DefaultCooldown = 60 * time.Second

	// DefaultRecoveryFactor is the geometric step applied per qualifying
	// success during recovery.
	DefaultRecoveryFactor = 1.25

	// DefaultRetryDelay is the local sleep for the worker that triggered a
	// rate-limit response when the server sends no retry hint.
	DefaultRetryDelay = 2 * time.Second

	// MaxRetryDelay caps the local sleep so one throttled worker never
	// stalls for a server-suggested eternity.
	MaxRetryDelay = 5 * time.Second

	// recoveredWithin is the fraction of baseline at which the rate snaps
	// back to baseline and the throttled marker clears.
	recoveredWithin = 0.95
)

// Throttle reacts to remote rate-limit signals by halving the shared bucket
// rate, then restores it geometrically toward the configured baseline after
// a cooldown of sustained success. The net effect is a damped oscillation
// that settles back at baseline.
type Throttle struct {
	mu           sync.Mutex
	bucket       *Bucket
	baseRate     float64
	cooldown     time.Duration
	factor       float64
	lastThrottle time.Time
	throttled    bool
	logger       zerolog.Logger
}

// NewThrottle creates a throttle controller for the given shared bucket.
// baseRate is the configured ceiling the rate recovers toward.
func NewThrottle(bucket *Bucket, baseRate float64, logger zerolog.Logger) *Throttle {
	if baseRate < MinRate {
		baseRate = MinRate
	}
	return &Throttle{
		bucket:   bucket,
		baseRate: baseRate,
		cooldown: DefaultCooldown,
		factor:   DefaultRecoveryFactor,
		logger:   logger,
	}
}

// OnRateLimited records a rate-limit response: the shared rate is halved
// (floored at MinRate) and the throttle timestamp stamped. The returned
// duration is the local sleep for the triggering worker only, taken from
// the server's retry hint when present, else DefaultRetryDelay, capped at
// MaxRetryDelay.
func (t *Throttle) OnRateLimited(retryAfter time.Duration) time.Duration {
	t.mu.Lock()
	oldRate := t.bucket.Rate()
	newRate := oldRate / 2
	if newRate < MinRate {
		newRate = MinRate
	}
	t.bucket.SetRate(newRate)
	t.lastThrottle = time.Now()
	t.throttled = true
	t.mu.Unlock()

	throttlesTotal.Inc()
	t.logger.Warn().
		Float64("old_rate", oldRate).
		Float64("new_rate", newRate).
		Dur("retry_after", retryAfter).
		Msg("Rate limit signal - contracting request rate")

	delay := retryAfter
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	if delay > MaxRetryDelay {
		delay = MaxRetryDelay
	}
	return delay
}

// OnSuccess is called after every successful request. Once the cooldown has
// elapsed since the last rate-limit signal, each call raises the rate by
// the recovery factor, never overshooting baseline. Within 5% of baseline
// the rate snaps to baseline and the throttled marker clears.
func (t *Throttle) OnSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.throttled {
		return
	}
	if time.Since(t.lastThrottle) < t.cooldown {
		return
	}

	next := t.bucket.Rate() * t.factor
	if next >= t.baseRate*recoveredWithin {
		next = t.baseRate
		t.throttled = false
		t.logger.Info().
			Float64("rate", next).
			Msg("Request rate recovered to baseline")
	}
	if next > t.baseRate {
		next = t.baseRate
	}
	t.bucket.SetRate(next)
	recoveriesTotal.Inc()
}

// Throttled reports whether a rate-limit contraction is still in effect.
func (t *Throttle) Throttled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.throttled
}

// BaseRate returns the configured baseline rate.
func (t *Throttle) BaseRate() float64 {
	return t.baseRate
}

// SetCooldown overrides the recovery cooldown (for tests).
func (t *Throttle) SetCooldown(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cooldown = d
}
