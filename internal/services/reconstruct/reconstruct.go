// Package reconstruct turns mean-return and variance forecasts into price
// space bands by compounding a single mean path.
package reconstruct

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

// ZFallback is the two-sided 95% normal quantile used when no quantile
// function is available. It is used for any confidence level in that case.
const ZFallback = 1.96

// QuantileFunc is an inverse standard normal CDF.
type QuantileFunc func(p float64) float64

type config struct {
	quantile QuantileFunc
}

type Option func(*config)

// WithQuantile replaces the quantile function. A nil fn forces ZFallback.
func WithQuantile(fn QuantileFunc) Option {
	return func(c *config) { c.quantile = fn }
}

// Z returns the two-sided quantile for conf and whether the fallback was used.
func Z(conf float64, fn QuantileFunc) (float64, bool) {
	if fn == nil {
		return ZFallback, true
	}
	z := fn(0.5 + conf/2)
	if math.IsNaN(z) || math.IsInf(z, 0) || z < 0 {
		return ZFallback, true
	}
	return z, false
}

// Reconstruct compounds the mean path from start and puts a symmetric log
// band of z standard deviations around each step. Bands do not compound.
func Reconstruct(mean []float64, variance models.VarianceForecast, start, conf float64, opts ...Option) (*models.ForecastPath, error) {
	cfg := config{quantile: distuv.UnitNormal.Quantile}
	for _, o := range opts {
		o(&cfg)
	}
	if len(mean) == 0 || len(mean) != len(variance.Values) {
		return nil, fmt.Errorf("%w: mean has %d steps, variance has %d", models.ErrInput, len(mean), len(variance.Values))
	}
	if !(conf > 0 && conf < 1) {
		return nil, fmt.Errorf("%w: confidence %v outside (0,1)", models.ErrInput, conf)
	}
	if !(start > 0) || math.IsInf(start, 0) {
		return nil, fmt.Errorf("%w: start price %v must be positive", models.ErrInput, start)
	}
	for i := range mean {
		if !finite(mean[i]) || !finite(variance.Values[i]) {
			return nil, fmt.Errorf("%w: non-finite mean %v or variance %v at step %d", models.ErrInput, mean[i], variance.Values[i], i+1)
		}
	}

	z, fallback := Z(conf, cfg.quantile)
	path := &models.ForecastPath{
		Steps: make([]models.ForecastStep, len(mean)),
		Meta: models.ForecastMeta{
			Confidence:     conf,
			Z:              z,
			ZFallback:      fallback,
			VarianceSource: variance.Source,
		},
	}
	if fallback {
		path.Meta.Warn("normal quantile unavailable, using z=%.2f", ZFallback)
	}

	prev := start
	for i, mu := range mean {
		v := variance.Values[i]
		sigma := math.Sqrt(math.Max(v, 0))
		mr, vr := mu, v
		step := models.ForecastStep{
			Step:       i + 1,
			MeanReturn: &mr,
			Variance:   &vr,
			MeanPrice:  prev * math.Exp(mu),
			UpperPrice: prev * math.Exp(mu+z*sigma),
			LowerPrice: prev * math.Exp(mu-z*sigma),
		}
		path.Steps[i] = step
		prev = step.MeanPrice
	}
	return path, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
