// Package strategy adapts the numerical engine to the Forecaster interface,
// one type per forecasting method.
package strategy

import (
	"context"
	"fmt"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	"github.com/vpnsgde/gold-quant/internal/domain/repository"
	domsvc "github.com/vpnsgde/gold-quant/internal/domain/service"
	"github.com/vpnsgde/gold-quant/internal/services/arima"
	"github.com/vpnsgde/gold-quant/internal/services/features"
	"github.com/vpnsgde/gold-quant/internal/services/reconstruct"
	"github.com/vpnsgde/gold-quant/internal/services/selector"
	"github.com/vpnsgde/gold-quant/internal/services/volatility"
	"github.com/vpnsgde/gold-quant/pkg/logger"
)

// ArimaGarch selects an ARIMA order on the subsampled returns, forecasts
// residual variance and reconstructs analytic price bands.
type ArimaGarch struct {
	Selector    *selector.Selector
	Grid        selector.Grid
	Volatility  *volatility.Forecaster
	RefitOnFull bool
	Reconstruct []reconstruct.Option

	log     *logger.Logger
	metrics repository.Metrics
}

func NewArimaGarch(sel *selector.Selector, grid selector.Grid, vol *volatility.Forecaster, refitOnFull bool, log *logger.Logger, metrics repository.Metrics) *ArimaGarch {
	return &ArimaGarch{
		Selector:    sel,
		Grid:        grid,
		Volatility:  vol,
		RefitOnFull: refitOnFull,
		log:         log,
		metrics:     metrics,
	}
}

func (a *ArimaGarch) Method() models.Method { return models.MethodArimaGarch }

func (a *ArimaGarch) Forecast(ctx context.Context, series *models.PriceSeries, p domsvc.ForecastParams) (*models.ForecastPath, error) {
	full, err := features.ComputeLogReturns(series)
	if err != nil {
		return nil, err
	}
	sub, err := features.ComputeLogReturns(features.Subsample(series, p.Subsample))
	if err != nil {
		return nil, err
	}
	if need := a.minReturns(); len(sub) < need {
		return nil, fmt.Errorf("%w: %d returns, order grid needs at least %d", models.ErrInput, len(sub), need)
	}

	fit, err := a.Selector.Select(ctx, sub, a.Grid)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	model, residuals, pad := fit.Model, fit.Residuals, fit.Presample
	nobs := len(sub)

	var warnings []string
	if a.RefitOnFull && len(full) > len(sub) {
		m, err := arima.Fit(full, fit.Order)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("refit %s on full history failed, using subsample fit: %v", fit.Order, err))
			a.log.Warn("refit on full history failed",
				logger.String("order", fit.Order.String()), logger.Error(err))
		} else {
			model, residuals, pad = m, m.Residuals(), m.Presample()
			nobs = len(full)
		}
	}

	mean, err := model.Forecast(p.Steps)
	if err != nil {
		return nil, fmt.Errorf("mean forecast: %w", err)
	}
	// leading residuals are padding for the conditioning window
	if len(residuals) > pad {
		residuals = residuals[pad:]
	}

	vf, reason, err := a.Volatility.Forecast(residuals, p.Steps)
	if err != nil {
		return nil, fmt.Errorf("volatility: %w", err)
	}
	if reason != nil && a.metrics != nil {
		a.metrics.RecordFallback("constant_variance")
	}

	path, err := reconstruct.Reconstruct(mean, vf, series.Last().Close, p.Confidence, a.Reconstruct...)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	if path.Meta.ZFallback && a.metrics != nil {
		a.metrics.RecordFallback("z_constant")
	}

	order := fit.Order
	path.Meta.Method = models.MethodArimaGarch
	path.Meta.Order = &order
	path.Meta.AIC = fit.AIC
	path.Meta.Nobs = nobs
	path.Meta.Warnings = append(warnings, path.Meta.Warnings...)
	if reason != nil {
		path.Meta.Warn("volatility fallback to constant sample variance: %v", reason)
	}
	return path, nil
}

// minReturns is the shortest return series on which the largest order of
// the grid still has observations left after conditioning.
func (a *ArimaGarch) minReturns() int {
	g := a.Grid
	return g.P.Max + g.D.Max + g.Q.Max + 3
}
