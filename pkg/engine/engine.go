package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/tlind/bulkcat/pkg/client"
	"github.com/tlind/bulkcat/pkg/ratelimit"
)

// Prometheus metrics for pool outcomes.
var (
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_bulk_items_total",
		Help: "Total items driven to a terminal state by outcome",
	}, []string{"outcome"})
)

// Config holds engine configuration.
type Config struct {
	// Workers is the number of concurrent workers.
	Workers int

	// BaseRate is the global request ceiling in requests per second. The
	// adaptive throttle contracts from and recovers toward this value.
	BaseRate float64

	// Burst is the token bucket capacity. Defaults to BaseRate, so up to
	// one second of budget can be spent as a burst after idle.
	Burst float64

	// MaxAttempts per item, including the first. Zero uses the default.
	MaxAttempts int

	// DryRun skips admission and performs zero network calls.
	DryRun bool

	// NotFound is the per-engine 404 policy.
	NotFound NotFoundPolicy

	// InFlightLimit bounds concurrently submitted items. Zero means
	// max(32, Workers*4).
	InFlightLimit int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Workers:  5,
		BaseRate: 10,
		NotFound: NotFoundSuccess,
	}
}

// Engine is one bulk-run orchestrator. All mutable state is owned by the
// engine instance, so multiple engines can run independently in one
// process.
type Engine struct {
	cfg      Config
	retry    RetryConfig
	bucket   *ratelimit.Bucket
	throttle *ratelimit.Throttle
	handles  []*client.Handle
	exec     Executor
	logger   zerolog.Logger
}

// New creates an engine over a fixed pool of client handles that share the
// given bucket. Handles are assigned to workers round-robin; supply at
// least Workers handles so no handle is invoked concurrently. A dry-run
// engine needs no handles.
func New(cfg Config, handles []*client.Handle, bucket *ratelimit.Bucket, exec Executor) (*Engine, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BaseRate < ratelimit.MinRate {
		cfg.BaseRate = ratelimit.MinRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.BaseRate
	}
	if cfg.NotFound == "" {
		cfg.NotFound = NotFoundSuccess
	}
	if cfg.InFlightLimit <= 0 {
		cfg.InFlightLimit = cfg.Workers * 4
		if cfg.InFlightLimit < 32 {
			cfg.InFlightLimit = 32
		}
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if !cfg.DryRun {
		if bucket == nil {
			return nil, fmt.Errorf("rate limit bucket is required")
		}
		if len(handles) < cfg.Workers {
			return nil, fmt.Errorf("need at least %d client handles for %d workers (got %d)",
				cfg.Workers, cfg.Workers, len(handles))
		}
	}
	if bucket == nil {
		bucket = ratelimit.NewBucket(cfg.BaseRate, cfg.Burst)
	}

	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}

	logger := log.With().Str("component", "bulk-engine").Logger()

	return &Engine{
		cfg:      cfg,
		retry:    retry,
		bucket:   bucket,
		throttle: ratelimit.NewThrottle(bucket, cfg.BaseRate, logger),
		handles:  handles,
		exec:     exec,
		logger:   logger,
	}, nil
}

// Throttle exposes the adaptive throttle controller (for inspection).
func (e *Engine) Throttle() *ratelimit.Throttle {
	return e.throttle
}

// SetRetryBackoff shrinks the retry sleep window (for testing).
func (e *Engine) SetRetryBackoff(initial, max time.Duration) {
	e.retry.InitialBackoff = initial
	e.retry.MaxBackoff = max
}

// Run processes all items and blocks until every submitted item has
// reached a terminal state. Completion order is unconstrained. On context
// cancellation submission stops promptly, in-flight items wind down, and
// the report preserves every outcome produced so far; the context error is
// returned alongside it.
func (e *Engine) Run(ctx context.Context, items []Item) (*Report, error) {
	start := time.Now()
	collector := NewCollector()
	tracker := NewTracker(len(items), DefaultSampleInterval, e.logger)

	e.logger.Info().
		Int("items", len(items)).
		Int("workers", e.cfg.Workers).
		Float64("rate", e.cfg.BaseRate).
		Bool("dry_run", e.cfg.DryRun).
		Msg("Starting bulk run")

	// In-flight bound: acquire before submit, release on terminal state.
	// When the set is full, submission blocks until a worker drains one.
	inflight := semaphore.NewWeighted(int64(e.cfg.InFlightLimit))
	queue := make(chan Item)

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		var h *client.Handle
		if len(e.handles) > 0 {
			h = e.handles[i%len(e.handles)]
		}
		wg.Add(1)
		go func(h *client.Handle) {
			defer wg.Done()
			for item := range queue {
				out := e.runItem(ctx, h, item)
				collector.Add(out)
				tracker.Done(&out)
				observeOutcome(out)
				inflight.Release(1)
			}
		}(h)
	}

	var runErr error
	submitted := 0
	for _, item := range items {
		if err := inflight.Acquire(ctx, 1); err != nil {
			runErr = err
			break
		}
		queue <- item
		submitted++
	}
	close(queue)

	// Shutdown blocks until every submitted item is terminal; no item is
	// abandoned mid-flight.
	wg.Wait()

	elapsed := time.Since(start)
	report := e.buildReport(collector, submitted, len(items), elapsed)

	e.logger.Info().
		Int("total", report.Total).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("elapsed", elapsed).
		Float64("throughput", report.Throughput).
		Msg("Bulk run finished")

	if runErr != nil {
		return report, fmt.Errorf("run interrupted: %w", runErr)
	}
	return report, nil
}

// buildReport assembles the final report from the collector.
func (e *Engine) buildReport(c *Collector, submitted, total int, elapsed time.Duration) *Report {
	successes := c.Successes()
	failures := c.Failures()

	skipped := 0
	for i := range successes {
		if successes[i].Skipped {
			skipped++
		}
	}

	throughput := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		throughput = float64(submitted) / secs
	}

	return &Report{
		Total:      total,
		Succeeded:  len(successes),
		Failed:     len(failures),
		Skipped:    skipped,
		Elapsed:    elapsed,
		Throughput: throughput,
		DryRun:     e.cfg.DryRun,
		Successes:  successes,
		Failures:   failures,
	}
}

func observeOutcome(o Outcome) {
	switch {
	case o.Skipped:
		itemsTotal.WithLabelValues("skipped").Inc()
	case o.Succeeded:
		itemsTotal.WithLabelValues("succeeded").Inc()
	default:
		itemsTotal.WithLabelValues("failed").Inc()
	}
}
