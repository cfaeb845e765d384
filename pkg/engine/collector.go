package engine

import (
	"sync"
)

// Collector accumulates outcomes in two append-only lists. Safe for
// concurrent use by all workers; outcomes are never mutated after append.
type Collector struct {
	mu        sync.Mutex
	successes []Outcome
	failures  []Outcome
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends one terminal outcome to the matching list.
func (c *Collector) Add(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o.Succeeded {
		c.successes = append(c.successes, o)
	} else {
		c.failures = append(c.failures, o)
	}
}

// Successes returns a copy of the success list.
func (c *Collector) Successes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Outcome, len(c.successes))
	copy(out, c.successes)
	return out
}

// Failures returns a copy of the failure list.
func (c *Collector) Failures() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Outcome, len(c.failures))
	copy(out, c.failures)
	return out
}

// Counts returns the number of successes and failures recorded so far.
func (c *Collector) Counts() (succeeded, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.successes), len(c.failures)
}
