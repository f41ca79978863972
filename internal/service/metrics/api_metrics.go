package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    APILatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "goldquant",
            Subsystem: "api",
            Name:      "latency_seconds",
            Help:      "Latency of forecast endpoints",
            Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
        },
        []string{"endpoint"},
    )

    APIErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "goldquant",
            Subsystem: "api",
            Name:      "errors_total",
            Help:      "Errors by forecast endpoint and status",
        },
        []string{"endpoint", "status"},
    )

    CacheLookups = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "goldquant",
            Subsystem: "api",
            Name:      "cache_lookups_total",
            Help:      "Forecast response cache lookups by result (hit, miss, error)",
        },
        []string{"result"},
    )

    RateLimited = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "goldquant",
            Subsystem: "api",
            Name:      "rate_limited_total",
            Help:      "Requests rejected by the rate limiter",
        },
        []string{"endpoint"},
    )
)

// Register adds the API collectors to the default registry once.
func Register() {
    once.Do(func() {
        prometheus.MustRegister(APILatency, APIErrors, CacheLookups, RateLimited)
    })
}
