// Package client provides the catalog HTTP client handle: a per-worker
// session carrying credentials, a reference to the shared rate limiter, and
// an optional cached read path.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tlind/bulkcat/pkg/cache"
	"github.com/tlind/bulkcat/pkg/ratelimit"
)

// Prometheus metrics for catalog requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog requests by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})
)

// maxBodyBytes bounds how much of a response body is retained. Catalog
// error payloads are small; anything larger is diagnostic noise.
const maxBodyBytes = 64 << 10

// DefaultTimeout is the per-call timeout when none is configured.
const DefaultTimeout = 15 * time.Second

// Result is the outcome of one network attempt.
type Result struct {
	StatusCode int
	Body       string

	// RetryAfter is the server's retry hint, zero when absent.
	RetryAfter time.Duration
}

// Config holds handle configuration.
type Config struct {
	// BaseURL of the catalog API, e.g. "https://api.example.com/catalog".
	BaseURL string

	// Headers sent with every request (authentication, accept-language).
	Headers map[string]string

	// Timeout per network call.
	Timeout time.Duration

	// Bucket is the shared rate limiter. Required.
	Bucket *ratelimit.Bucket

	// Cache is the optional read-path lookup cache.
	Cache *cache.Manager

	// CacheTTL is how long cached reads stay fresh.
	CacheTTL time.Duration
}

// Handle is one worker's session against the catalog API. A handle is
// never invoked concurrently by two workers; the shared state it touches
// (the bucket, the cache) is itself threadsafe.
type Handle struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	bucket     *ratelimit.Bucket
	cache      *cache.Manager
	cacheTTL   time.Duration
	logger     zerolog.Logger
}

// New creates a catalog client handle.
func New(cfg Config) (*Handle, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Bucket == nil {
		return nil, fmt.Errorf("rate limit bucket is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	return &Handle{
		baseURL: cfg.BaseURL,
		headers: cfg.Headers,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		bucket:   cfg.Bucket,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   log.With().Str("component", "catalog-client").Logger(),
	}, nil
}

// NewPool creates n handles sharing the same bucket and cache but each
// owning its own HTTP session, for round-robin assignment across workers.
func NewPool(cfg Config, n int) ([]*Handle, error) {
	if n < 1 {
		n = 1
	}
	handles := make([]*Handle, 0, n)
	for i := 0; i < n; i++ {
		h, err := New(cfg)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Send performs one write-path network call. It does not consume the rate
// limiter: admission is the caller's responsibility, so retry accounting
// and bucket consumption stay in one place.
func (h *Handle) Send(ctx context.Context, method, path string, body []byte) (Result, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(method, "transport_error").Inc()
		return Result{}, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return Result{}, fmt.Errorf("read response body: %w", err)
	}

	requestsTotal.WithLabelValues(method, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	if class := Classify(resp.StatusCode, nil); class != ErrorClassNone {
		errorsTotal.WithLabelValues(string(class)).Inc()
	}

	return Result{
		StatusCode: resp.StatusCode,
		Body:       string(data),
		RetryAfter: ParseRetryAfter(resp.Header),
	}, nil
}

// Get performs a read-path call, served from the lookup cache when
// possible. A cache hit costs no token; a miss consumes the shared bucket
// like any other request and caches a 200 response.
func (h *Handle) Get(ctx context.Context, path string) (Result, error) {
	key := cache.NewKey(path)

	if h.cache != nil {
		entry, err := h.cache.Get(ctx, key)
		if err == nil {
			h.logger.Debug().Str("path", path).Msg("Lookup served from cache")
			return Result{StatusCode: entry.StatusCode, Body: string(entry.Data)}, nil
		}
		if err != cache.ErrCacheMiss {
			h.logger.Warn().Err(err).Str("path", path).Msg("Cache get error")
		}
	}

	if err := h.bucket.Take(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	res, err := h.Send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Result{}, err
	}

	if h.cache != nil && res.StatusCode == http.StatusOK {
		entry := cache.NewEntry([]byte(res.Body), res.StatusCode, h.cacheTTL)
		if err := h.cache.Set(ctx, key, entry); err != nil {
			h.logger.Warn().Err(err).Str("path", path).Msg("Cache set error")
		}
	}

	return res, nil
}

// BaseURL returns the configured catalog base URL.
func (h *Handle) BaseURL() string {
	return h.baseURL
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (h *Handle) SetHTTPClient(client *http.Client) {
	h.httpClient = client
}
