// Package ratelimit implements the shared token bucket that enforces the
// global admitted-request rate across all workers, and the adaptive throttle
// that contracts the rate on server-signaled overload and restores it after
// sustained success.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for bucket admission.
var (
	bucketWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_bucket_wait_seconds",
		Help:    "Time spent waiting for token bucket admission",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	bucketCurrentRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_bucket_rate",
		Help: "Current token bucket refill rate in tokens per second",
	})
)

// MinRate is the floor for the refill rate. A bucket never refills slower
// than this, so every waiting worker eventually makes progress.
const MinRate = 1.0

// Bucket is a token bucket shared by all workers of a pool. Tokens
// accumulate at the current rate up to capacity; each admitted request
// consumes one. Safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	capacity   float64
	tokens     float64
	lastRefill time.Time
}

// NewBucket creates a bucket starting full, so a short initial burst up to
// capacity is permitted.
func NewBucket(rate, capacity float64) *Bucket {
	if rate < MinRate {
		rate = MinRate
	}
	if capacity < 1 {
		capacity = 1
	}
	bucketCurrentRate.Set(rate)
	return &Bucket{
		rate:       rate,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: time.Now(),
	}
}

// Take blocks until n tokens are available or the context is cancelled.
// The required wait is computed under the lock but slept outside it, so
// other workers can refill and consume concurrently; after the sleep the
// balance is rechecked.
func (b *Bucket) Take(ctx context.Context, n float64) error {
	waited := time.Duration(0)
	for {
		b.mu.Lock()
		b.refillLocked(time.Now())
		if b.tokens >= n {
			b.tokens -= n
			b.mu.Unlock()
			if waited > 0 {
				bucketWaitSeconds.Observe(waited.Seconds())
			}
			return nil
		}
		wait := time.Duration((n - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			waited += wait
		}
	}
}

// SetRate atomically changes the refill rate, floored at MinRate. Tokens
// accrued at the old rate are settled first so the change applies only
// going forward.
func (b *Bucket) SetRate(rate float64) {
	if rate < MinRate {
		rate = MinRate
	}
	b.mu.Lock()
	b.refillLocked(time.Now())
	b.rate = rate
	b.mu.Unlock()
	bucketCurrentRate.Set(rate)
}

// Rate returns the current refill rate in tokens per second.
func (b *Bucket) Rate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rate
}

// Tokens returns the current token balance after settling elapsed refill.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	return b.tokens
}

// refillLocked credits tokens for the wall-clock time elapsed since the
// last refill, capped at capacity. Caller must hold b.mu.
func (b *Bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}
