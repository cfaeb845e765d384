package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks lookup cache hits.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_lookup_cache_hits_total",
			Help: "Total number of catalog lookup cache hits",
		},
	)

	// cacheMisses tracks lookup cache misses.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_lookup_cache_misses_total",
			Help: "Total number of catalog lookup cache misses",
		},
	)

	// cacheErrors tracks cache operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_lookup_cache_errors_total",
			Help: "Total number of lookup cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
