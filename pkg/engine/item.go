// Package engine runs bulk catalog write operations: a fixed pool of
// workers drives work items to terminal outcomes under one shared rate
// ceiling, with per-item retry, adaptive throttling on overload, bounded
// in-flight work, and live progress accounting. Every submitted item yields
// exactly one outcome; none is silently lost.
package engine

import (
	"fmt"
	"time"
)

// Item is one immutable unit of remote work, e.g. one SKU's inventory
// update. The payload is opaque to the engine.
type Item struct {
	// ID is a stable identifier used in outcome records and logs.
	ID string `json:"id"`

	// Method is the HTTP method of the operation.
	Method string `json:"method"`

	// Path is the catalog resource path.
	Path string `json:"path"`

	// Body is the request payload, nil for deletes.
	Body []byte `json:"body,omitempty"`
}

// NotFoundPolicy decides how a 404 response is recorded. Deleting a
// resource that is already gone may be treated as success, failure, or a
// distinct skipped outcome depending on the call site.
type NotFoundPolicy string

const (
	// NotFoundSuccess records a 404 as success. This is the default: the
	// desired end state is reached.
	NotFoundSuccess NotFoundPolicy = "success"

	// NotFoundFailure records a 404 as a terminal failure.
	NotFoundFailure NotFoundPolicy = "failure"

	// NotFoundSkip records a 404 as a skipped outcome: counted with
	// successes but marked, so reports can surface it.
	NotFoundSkip NotFoundPolicy = "skip"
)

// ParseNotFoundPolicy converts a CLI/config string to a policy.
func ParseNotFoundPolicy(s string) (NotFoundPolicy, error) {
	switch NotFoundPolicy(s) {
	case NotFoundSuccess, NotFoundFailure, NotFoundSkip:
		return NotFoundPolicy(s), nil
	case "":
		return NotFoundSuccess, nil
	default:
		return "", fmt.Errorf("invalid not-found policy %q (want success, failure or skip)", s)
	}
}

// Outcome is the final, immutable result of processing one item. It is
// created exactly once, when retries end in success or exhaustion, and is
// appended to exactly one of the two result lists.
type Outcome struct {
	ItemID     string `json:"item_id"`
	Succeeded  bool   `json:"succeeded"`
	Skipped    bool   `json:"skipped,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	Attempts   int    `json:"attempts"`
}

// Report aggregates a finished run.
type Report struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Elapsed   time.Duration `json:"elapsed"`

	// Throughput is items completed per second over the whole run.
	Throughput float64 `json:"throughput"`

	DryRun bool `json:"dry_run,omitempty"`

	Successes []Outcome `json:"successes,omitempty"`
	Failures  []Outcome `json:"failures,omitempty"`
}
