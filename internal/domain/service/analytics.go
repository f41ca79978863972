package service

import (
	"context"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

// Forecaster produces a forecast path for a price series.
type Forecaster interface {
	Method() models.Method
	Forecast(ctx context.Context, series *models.PriceSeries, p ForecastParams) (*models.ForecastPath, error)
}

// ForecastParams are the per-invocation knobs shared by all strategies.
type ForecastParams struct {
	Steps      int
	Confidence float64
	Paths      int
	// Subsample caps the history used for fitting; 0 uses everything.
	Subsample int
}

// Predictor is a trained sequence model with a stochastic inference mode:
// repeated calls on the same window may return different values.
type Predictor interface {
	PredictStochastic(ctx context.Context, window []float64) (float64, error)
	WindowLength() int
}

// Scaler maps prices into the predictor's input space and back.
type Scaler interface {
	Transform(x float64) float64
	Inverse(y float64) float64
}
