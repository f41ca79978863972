package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecorderRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)
	r.RecordForecast("gbm", "XAUUSD")
	r.RecordFitAttempt("ok")
	r.RecordFitAttempt("failed")
	r.RecordFallback("constant_variance")
	r.RecordError("load")
	r.RecordLastPrice("XAUUSD", 2000)
	r.RecordLatency("forecast", 0.2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"goldquant_forecasts_total",
		"goldquant_model_fit_attempts_total",
		"goldquant_fallbacks_total",
		"goldquant_errors_total",
		"goldquant_last_price",
		"goldquant_operation_duration_seconds",
	} {
		if !names[want] {
			t.Fatalf("metric %s not registered", want)
		}
	}
}
