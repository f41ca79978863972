package strategy

import (
	"github.com/vpnsgde/gold-quant/internal/domain/repository"
	domsvc "github.com/vpnsgde/gold-quant/internal/domain/service"
	"github.com/vpnsgde/gold-quant/internal/services/selector"
	"github.com/vpnsgde/gold-quant/internal/services/volatility"
	"github.com/vpnsgde/gold-quant/pkg/config"
	"github.com/vpnsgde/gold-quant/pkg/logger"
)

// GridFromConfig converts the configured order ranges to a search grid.
func GridFromConfig(r config.ModelOrderRanges) selector.Grid {
	return selector.Grid{
		P: selector.Range{Min: r.P[0], Max: r.P[1]},
		D: selector.Range{Min: r.D[0], Max: r.D[1]},
		Q: selector.Range{Min: r.Q[0], Max: r.Q[1]},
	}
}

// Build returns one forecaster per method. pred may be nil, in which case the
// Monte Carlo dropout strategy trains its own model per call.
func Build(cfg config.ForecastConfig, pred domsvc.Predictor, log *logger.Logger, metrics repository.Metrics) []domsvc.Forecaster {
	sel := selector.New(
		selector.WithWorkers(cfg.Workers),
		selector.WithLogger(log),
		selector.WithMetrics(metrics),
	)
	vol := volatility.NewForecaster(cfg.VolatilityOrder.P, cfg.VolatilityOrder.Q, volatility.WithLogger(log))
	return []domsvc.Forecaster{
		NewArimaGarch(sel, GridFromConfig(cfg.ModelOrderRanges), vol, cfg.RefitOnFull, log, metrics),
		&GBM{Seed: cfg.Seed, Workers: cfg.Workers},
		&MCDropout{
			Predictor:   pred,
			Lookback:    cfg.RollingWindowLength,
			DropoutRate: cfg.DropoutRate,
			Seed:        cfg.Seed,
			Workers:     cfg.Workers,
		},
	}
}
