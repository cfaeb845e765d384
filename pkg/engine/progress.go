package engine

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSampleInterval is how often the progress sampler may emit.
const DefaultSampleInterval = 2 * time.Second

// Tracker counts terminal outcomes with atomics on the hot path. A
// low-frequency sampler, gated to at most once per interval, computes
// interval throughput and an ETA so synchronization cost does not scale
// with item count.
type Tracker struct {
	total     int64
	succeeded atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64

	started        time.Time
	interval       time.Duration
	lastSampleNano atomic.Int64
	lastSampleDone atomic.Int64

	logger zerolog.Logger
}

// Snapshot is a derived, periodic view over the authoritative counters.
type Snapshot struct {
	Total     int64
	Succeeded int64
	Failed    int64
	Skipped   int64
}

// NewTracker creates a tracker for a run of total items.
func NewTracker(total int, interval time.Duration, logger zerolog.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	t := &Tracker{
		total:    int64(total),
		started:  time.Now(),
		interval: interval,
		logger:   logger,
	}
	t.lastSampleNano.Store(t.started.UnixNano())
	return t
}

// Done records one terminal outcome and possibly emits a progress sample.
func (t *Tracker) Done(o *Outcome) {
	if o.Succeeded {
		t.succeeded.Add(1)
		if o.Skipped {
			t.skipped.Add(1)
		}
	} else {
		t.failed.Add(1)
	}
	t.maybeSample()
}

// Snapshot returns the current counter values.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Total:     t.total,
		Succeeded: t.succeeded.Load(),
		Failed:    t.failed.Load(),
		Skipped:   t.skipped.Load(),
	}
}

// maybeSample emits at most one progress line per interval. The gate is a
// compare-and-swap on the last sample timestamp, so losers pay one atomic
// read and move on.
func (t *Tracker) maybeSample() {
	now := time.Now()
	last := t.lastSampleNano.Load()
	if now.UnixNano()-last < int64(t.interval) {
		return
	}
	if !t.lastSampleNano.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	done := t.succeeded.Load() + t.failed.Load()
	prevDone := t.lastSampleDone.Swap(done)

	intervalSecs := time.Duration(now.UnixNano() - last).Seconds()
	throughput := float64(done-prevDone) / intervalSecs
	remaining := t.total - done

	event := t.logger.Info().
		Int64("done", done).
		Int64("total", t.total).
		Int64("failed", t.failed.Load()).
		Float64("throughput", throughput)

	if throughput > 0 {
		eta := time.Duration(float64(remaining) / throughput * float64(time.Second))
		event = event.Dur("eta", eta)
	}
	event.Msg("Progress")
}
