//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/vpnsgde/gold-quant/pkg/config"
	"github.com/vpnsgde/gold-quant/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvidePriceSource,
		ProvideForecastStore,
		ProvidePublisher,

		// Forecasting
		ProvidePredictor,
		ProvideStrategies,
		ProvideForecastUseCase,
		ProvideKafkaForecastHandler,

		// Transport
		ProvideRateLimiter,
		ProvideForecastHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
