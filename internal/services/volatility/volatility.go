// Package volatility forecasts residual variance with a GARCH model and falls
// back to a constant sample variance when the model cannot be used.
package volatility

import (
	"errors"
	"fmt"
	"math"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	"github.com/vpnsgde/gold-quant/internal/services/features"
	"github.com/vpnsgde/gold-quant/internal/services/garch"
	"github.com/vpnsgde/gold-quant/pkg/logger"
)

// ErrVarianceExtraction marks a fitted model whose forecast is unusable.
var ErrVarianceExtraction = errors.New("variance extraction failed")

// VarianceModel is either Fitted or Constant.
type VarianceModel interface {
	Forecast(h int) (models.VarianceForecast, error)
	Source() models.VarianceSource
}

// Model is a fitted conditional-variance model.
type Model interface {
	Forecast(h int) ([]float64, error)
}

// Fitted wraps a conditional-variance model.
type Fitted struct {
	Model Model
}

func (f Fitted) Source() models.VarianceSource { return models.VarianceFitted }

// Forecast validates shape and sign of the model forecast.
func (f Fitted) Forecast(h int) (models.VarianceForecast, error) {
	vals, err := f.Model.Forecast(h)
	if err != nil {
		return models.VarianceForecast{}, fmt.Errorf("%w: %v", ErrVarianceExtraction, err)
	}
	if len(vals) != h {
		return models.VarianceForecast{}, fmt.Errorf("%w: got %d values for horizon %d", ErrVarianceExtraction, len(vals), h)
	}
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return models.VarianceForecast{}, fmt.Errorf("%w: invalid variance %v at step %d", ErrVarianceExtraction, v, i+1)
		}
	}
	return models.VarianceForecast{Values: append([]float64(nil), vals...), Source: models.VarianceFitted}, nil
}

// Constant repeats one variance for every step.
type Constant struct {
	Variance float64
}

func (c Constant) Source() models.VarianceSource { return models.VarianceConstant }

func (c Constant) Forecast(h int) (models.VarianceForecast, error) {
	if h <= 0 {
		return models.VarianceForecast{}, fmt.Errorf("forecast horizon must be positive, got %d", h)
	}
	vals := make([]float64, h)
	for i := range vals {
		vals[i] = c.Variance
	}
	return models.VarianceForecast{Values: vals, Source: models.VarianceConstant}, nil
}

// FitFunc fits a conditional-variance model to residuals.
type FitFunc func(residuals []float64, p, q int) (Model, error)

// GARCH is the default FitFunc.
func GARCH(residuals []float64, p, q int) (Model, error) {
	m, err := garch.Fit(residuals, p, q)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Forecaster applies the fallback policy around a FitFunc.
type Forecaster struct {
	P, Q int
	fit  FitFunc
	log  *logger.Logger
}

type Option func(*Forecaster)

func WithFitFunc(fn FitFunc) Option { return func(f *Forecaster) { f.fit = fn } }

func WithLogger(l *logger.Logger) Option { return func(f *Forecaster) { f.log = l } }

func NewForecaster(p, q int, opts ...Option) *Forecaster {
	f := &Forecaster{P: p, Q: q, fit: GARCH}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Forecast returns h variances. On fit failure or an unusable fitted
// forecast the result is the constant sample variance of residuals, its
// Source is VarianceConstant and reason holds the cause.
func (f *Forecaster) Forecast(residuals []float64, h int) (vf models.VarianceForecast, reason error, err error) {
	if h <= 0 {
		return models.VarianceForecast{}, nil, fmt.Errorf("%w: horizon must be positive", models.ErrInput)
	}
	model, fitErr := f.fit(residuals, f.P, f.Q)
	if fitErr == nil {
		vf, reason = Fitted{Model: model}.Forecast(h)
		if reason == nil {
			return vf, nil, nil
		}
	} else {
		reason = fitErr
	}
	f.log.Warn("volatility model unusable, using constant variance",
		logger.Int("p", f.P), logger.Int("q", f.Q), logger.Error(reason))
	vf, err = Constant{Variance: features.SampleVariance(residuals)}.Forecast(h)
	return vf, reason, err
}
