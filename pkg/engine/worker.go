package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tlind/bulkcat/pkg/client"
)

// Prometheus metrics for worker retry behavior.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_bulk_retries_total",
		Help: "Total number of item retry attempts by error class",
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_bulk_retry_exhausted_total",
		Help: "Total number of items that exhausted all retry attempts",
	})
)

// maxErrorLen bounds the error text carried in an outcome record.
const maxErrorLen = 300

// errExecutorPanic marks a defect in the executor. It is terminal: the
// failure is recorded and the pool keeps running.
var errExecutorPanic = errors.New("executor panic")

// RetryConfig holds per-item retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the sleep after the first failed attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier per attempt.
	BackoffFactor float64

	// Jitter randomizes each sleep by ± Jitter/2 of its value so
	// concurrently retrying workers do not resynchronize.
	Jitter float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.5,
	}
}

// backoff computes the sleep before the retry following attempt (1-based).
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	if c.Jitter > 0 {
		d *= 1 + c.Jitter*(rand.Float64()-0.5)
	}
	return time.Duration(d)
}

// runItem drives one item to a terminal outcome. Attempts start at 1; the
// first try counts. Failures come back as data, never as errors escaping
// into the orchestrator.
func (e *Engine) runItem(ctx context.Context, h *client.Handle, item Item) Outcome {
	var lastStatus int
	var lastErr string

	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		// Admission: one token per network attempt. Dry runs make no
		// network calls and skip the limiter.
		if !e.cfg.DryRun {
			if err := e.bucket.Take(ctx, 1); err != nil {
				return Outcome{
					ItemID:     item.ID,
					StatusCode: lastStatus,
					Error:      truncate(fmt.Sprintf("cancelled: %v", err)),
					Attempts:   attempt,
				}
			}
		}

		res, err := e.execute(ctx, h, item)

		if err == nil {
			lastStatus = res.StatusCode

			if res.StatusCode >= 200 && res.StatusCode < 300 {
				e.throttle.OnSuccess()
				return Outcome{
					ItemID:     item.ID,
					Succeeded:  true,
					StatusCode: res.StatusCode,
					Attempts:   attempt,
				}
			}

			if res.StatusCode == http.StatusNotFound {
				switch e.cfg.NotFound {
				case NotFoundSuccess:
					return Outcome{
						ItemID:     item.ID,
						Succeeded:  true,
						StatusCode: res.StatusCode,
						Attempts:   attempt,
					}
				case NotFoundSkip:
					return Outcome{
						ItemID:     item.ID,
						Succeeded:  true,
						Skipped:    true,
						StatusCode: res.StatusCode,
						Attempts:   attempt,
					}
				}
				// NotFoundFailure falls through to classification below.
			}

			lastErr = truncate(res.Body)
		} else {
			lastErr = truncate(err.Error())
		}

		if errors.Is(err, errExecutorPanic) {
			return Outcome{
				ItemID:   item.ID,
				Error:    lastErr,
				Attempts: attempt,
			}
		}

		class := client.Classify(res.StatusCode, err)
		if !client.Retryable(class) {
			// Caller-fixable problem; more attempts just burn budget.
			return Outcome{
				ItemID:     item.ID,
				StatusCode: lastStatus,
				Error:      lastErr,
				Attempts:   attempt,
			}
		}

		// Every 429 contracts the shared rate, even one on the final
		// attempt that yields no further retry.
		sleep := e.retry.backoff(attempt)
		if class == client.ErrorClassRateLimit {
			if d := e.throttle.OnRateLimited(res.RetryAfter); d > sleep {
				sleep = d
			}
		}

		if attempt >= e.retry.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(class)).Inc()
		e.logger.Debug().
			Str("item_id", item.ID).
			Int("attempt", attempt).
			Int("status", lastStatus).
			Str("error_class", string(class)).
			Dur("backoff", sleep).
			Msg("Retrying item")

		select {
		case <-ctx.Done():
			return Outcome{
				ItemID:     item.ID,
				StatusCode: lastStatus,
				Error:      truncate(fmt.Sprintf("cancelled: %v", ctx.Err())),
				Attempts:   attempt,
			}
		case <-time.After(sleep):
		}
	}

	retryExhaustedTotal.Inc()
	e.logger.Warn().
		Str("item_id", item.ID).
		Int("status", lastStatus).
		Int("max_attempts", e.retry.MaxAttempts).
		Msg("Item retry attempts exhausted")

	return Outcome{
		ItemID:     item.ID,
		StatusCode: lastStatus,
		Error:      lastErr,
		Attempts:   e.retry.MaxAttempts,
	}
}

// execute invokes the executor, converting a panic into a terminal error
// so a defective executor cannot crash the pool.
func (e *Engine) execute(ctx context.Context, h *client.Handle, item Item) (res client.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("item_id", item.ID).
				Interface("panic", r).
				Msg("Executor panicked")
			res = client.Result{}
			err = fmt.Errorf("%w: %v", errExecutorPanic, r)
		}
	}()
	return e.exec(ctx, h, item)
}

// truncate bounds diagnostic text to maxErrorLen.
func truncate(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	return s[:maxErrorLen] + "..."
}
