package repository

import (
	"context"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

// PriceSource loads the most recent n closes of a symbol, or all of them
// when n is not positive.
type PriceSource interface {
	LatestSeries(ctx context.Context, symbol string, n int, tf Timeframe) (*models.PriceSeries, error)
}

// ForecastStore persists normalized forecast tables.
type ForecastStore interface {
	Save(ctx context.Context, t *models.ForecastTable) error
	Health(ctx context.Context) error
}

// Publisher emits forecast results to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, t *models.ForecastTable) error
	Close() error
}

type Metrics interface {
	RecordForecast(method, symbol string)
	RecordError(kind string)
	RecordFallback(kind string)
	RecordFitAttempt(outcome string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
