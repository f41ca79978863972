package strategy

import (
	"context"
	"fmt"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	domsvc "github.com/vpnsgde/gold-quant/internal/domain/service"
	"github.com/vpnsgde/gold-quant/internal/services/features"
	"github.com/vpnsgde/gold-quant/internal/services/montecarlo"
)

const minGBMReturns = 10

// GBM simulates a geometric random walk with drift and volatility estimated
// from the subsampled log returns.
type GBM struct {
	Seed    uint64
	Workers int
}

func (g *GBM) Method() models.Method { return models.MethodGBM }

func (g *GBM) Forecast(_ context.Context, series *models.PriceSeries, p domsvc.ForecastParams) (*models.ForecastPath, error) {
	returns, err := features.ComputeLogReturns(features.Subsample(series, p.Subsample))
	if err != nil {
		return nil, err
	}
	if len(returns) < minGBMReturns {
		return nil, fmt.Errorf("%w: %d returns, drift and volatility need at least %d", models.ErrInput, len(returns), minGBMReturns)
	}
	mu, sigma := features.DriftAndVolatility(returns)

	opts := []montecarlo.Option{montecarlo.WithWorkers(g.Workers)}
	if g.Seed != 0 {
		opts = append(opts, montecarlo.WithSeed(g.Seed))
	}
	pm, err := montecarlo.SimulateGBM(series.Last().Close, mu, sigma, p.Steps, p.Paths, opts...)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	path, err := montecarlo.Aggregate(pm, p.Confidence)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	path.Meta.Method = models.MethodGBM
	return path, nil
}
