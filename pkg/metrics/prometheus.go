package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecastsTotal *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	fitAttempts    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecastsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldquant_forecasts_total",
				Help: "Total number of forecasts produced",
			},
			[]string{"method", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldquant_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		fallbacksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldquant_fallbacks_total",
				Help: "Recovered failures that degraded a forecast",
			},
			[]string{"kind"},
		),
		fitAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldquant_model_fit_attempts_total",
				Help: "Mean model fit attempts during order selection",
			},
			[]string{"outcome"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "goldquant_last_price",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goldquant_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast records a completed forecast.
func (r *Recorder) RecordForecast(method, symbol string) {
	r.forecastsTotal.WithLabelValues(method, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordFallback records a recovered failure such as the constant variance
// fallback or the fixed z value.
func (r *Recorder) RecordFallback(kind string) {
	r.fallbacksTotal.WithLabelValues(kind).Inc()
}

// RecordFitAttempt records one order evaluation with outcome "ok" or "failed".
func (r *Recorder) RecordFitAttempt(outcome string) {
	r.fitAttempts.WithLabelValues(outcome).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
