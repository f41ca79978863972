package strategy

import (
	"context"
	"fmt"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	domsvc "github.com/vpnsgde/gold-quant/internal/domain/service"
	"github.com/vpnsgde/gold-quant/internal/services/features"
	"github.com/vpnsgde/gold-quant/internal/services/montecarlo"
	"github.com/vpnsgde/gold-quant/internal/services/predictor"
)

// MCDropout rolls a stochastic predictor forward from the last Lookback
// scaled closes. Without a Predictor a DropoutAR is trained on the
// subsampled closes for every call.
type MCDropout struct {
	Predictor   domsvc.Predictor
	Lookback    int
	DropoutRate float64
	Seed        uint64
	Workers     int
}

func (m *MCDropout) Method() models.Method { return models.MethodMCDropout }

func (m *MCDropout) Forecast(ctx context.Context, series *models.PriceSeries, p domsvc.ForecastParams) (*models.ForecastPath, error) {
	closes := features.Subsample(series, p.Subsample).Closes()
	if len(closes) <= m.Lookback {
		return nil, fmt.Errorf("%w: %d prices, rolling window needs more than %d", models.ErrInput, len(closes), m.Lookback)
	}
	scaler, err := predictor.FitMinMax(closes)
	if err != nil {
		return nil, err
	}
	scaled := scaler.TransformAll(closes)

	pred := m.Predictor
	if pred == nil {
		opts := []predictor.TrainOption{}
		if m.Seed != 0 {
			opts = append(opts, predictor.WithSeed(m.Seed))
		}
		ar, err := predictor.TrainDropoutAR(scaled, m.Lookback, m.DropoutRate, opts...)
		if err != nil {
			return nil, fmt.Errorf("train predictor: %w", err)
		}
		pred = ar
	}

	sim := montecarlo.NewRollingSimulator(pred, scaler, montecarlo.WithWorkers(m.Workers))
	path, err := sim.Simulate(ctx, scaled[len(scaled)-m.Lookback:], p.Steps, p.Paths, p.Confidence)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	path.Meta.Method = models.MethodMCDropout
	return path, nil
}
