package authz

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instruments for permission evaluation.
type Metrics struct {
	ChecksTotal         *prometheus.CounterVec
	CheckDuration       *prometheus.HistogramVec
	ResolverErrorsTotal *prometheus.CounterVec
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	BatchSize           prometheus.Histogram
}

// NewMetrics creates and registers the authorization metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loft_authz_checks_total",
				Help: "Total number of permission checks",
			},
			[]string{"scope", "result", "source"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loft_authz_check_duration_seconds",
				Help:    "Permission check duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scope"},
		),
		ResolverErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loft_authz_resolver_errors_total",
				Help: "Resolver query failures converted to deny",
			},
			[]string{"resolver"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loft_authz_cache_hits_total",
				Help: "Decision cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loft_authz_cache_misses_total",
				Help: "Decision cache misses",
			},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "loft_authz_batch_size",
				Help:    "Number of requirements per batch check",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
			},
		),
	}

	registry.MustRegister(
		m.ChecksTotal,
		m.CheckDuration,
		m.ResolverErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.BatchSize,
	)

	return m
}
