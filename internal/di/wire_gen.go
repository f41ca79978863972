//go:build !wireinject
// +build !wireinject

// This injector is maintained by hand and mirrors the provider graph in
// wire.go. Keep both in sync when a provider changes.

package di

import (
	"github.com/vpnsgde/gold-quant/pkg/config"
	"github.com/vpnsgde/gold-quant/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	priceSource, err := ProvidePriceSource(cfg, client, logger)
	if err != nil {
		return nil, err
	}
	predictor := ProvidePredictor(cfg)
	metrics := ProvideMetrics()
	v := ProvideStrategies(cfg, predictor, logger, metrics)
	forecastStore := ProvideForecastStore(cfg, client)
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	publisher := ProvidePublisher(cfg, producer)
	bytesCache := ProvideCache(cfg)
	forecastUseCase := ProvideForecastUseCase(cfg, priceSource, v, forecastStore, publisher, bytesCache, metrics, logger)
	limiter := ProvideRateLimiter(cfg)
	forecastEchoHandler := ProvideForecastHandler(logger, forecastUseCase, limiter, forecastStore, predictor)
	httpServer := ProvideHTTPServer(cfg, logger, forecastEchoHandler)
	consumer, err := ProvideKafkaConsumer(cfg, logger)
	if err != nil {
		return nil, err
	}
	kafkaForecastHandler := ProvideKafkaForecastHandler(cfg, forecastUseCase, metrics, logger)
	app := ProvideApp(cfg, logger, httpServer, consumer, kafkaForecastHandler, client, producer, bytesCache)
	return app, nil
}
