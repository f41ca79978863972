package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vpnsgde/gold-quant/internal/domain/repository"
	domsvc "github.com/vpnsgde/gold-quant/internal/domain/service"
	"github.com/vpnsgde/gold-quant/internal/handler/api"
	internalrepo "github.com/vpnsgde/gold-quant/internal/repository"
	"github.com/vpnsgde/gold-quant/internal/service/cache"
	apimetrics "github.com/vpnsgde/gold-quant/internal/service/metrics"
	"github.com/vpnsgde/gold-quant/internal/service/ratelimit"
	"github.com/vpnsgde/gold-quant/internal/services/analytics"
	"github.com/vpnsgde/gold-quant/internal/services/strategy"
	"github.com/vpnsgde/gold-quant/internal/usecase"
	pkgch "github.com/vpnsgde/gold-quant/pkg/clickhouse"
	"github.com/vpnsgde/gold-quant/pkg/config"
	xhttp "github.com/vpnsgde/gold-quant/pkg/http"
	pkgkafka "github.com/vpnsgde/gold-quant/pkg/kafka"
	applogger "github.com/vpnsgde/gold-quant/pkg/logger"
	"github.com/vpnsgde/gold-quant/pkg/metrics"
	"github.com/vpnsgde/gold-quant/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	apimetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient connects and initializes the schema. It returns nil
// when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvidePriceSource prefers ClickHouse candles and falls back to the CSV file.
func ProvidePriceSource(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.PriceSource, error) {
	if ch != nil {
		return internalrepo.NewCHFeatureStore(ch, cfg.ClickHouse.Database, l), nil
	}
	if cfg.Forecast.InputCSV != "" {
		return internalrepo.NewCSVPriceSource(cfg.Forecast.InputCSV), nil
	}
	return nil, errors.New("no price source: enable clickhouse or set forecast.input_csv")
}

// ProvideForecastStore returns nil when ClickHouse is disabled.
func ProvideForecastStore(cfg *config.Config, ch *pkgch.Client) repository.ForecastStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHForecastStore(ch, cfg.ClickHouse.Database)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher publishes forecast results to the results topic.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Results)
}

// ProvideCache uses Redis when enabled and an in-process TTL cache otherwise.
func ProvideCache(cfg *config.Config) cache.BytesCache {
	if cfg.Redis.Enabled {
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "goldquant:forecast:",
		})
	}
	return cache.NewTTLCache()
}

// ProvidePredictor returns the remote model service client, or nil to let the
// dropout strategy train its local model.
func ProvidePredictor(cfg *config.Config) domsvc.Predictor {
	if cfg.Forecast.Predictor != config.PredictorRemote {
		return nil
	}
	return analytics.NewHTTPPredictor(cfg)
}

func ProvideStrategies(cfg *config.Config, pred domsvc.Predictor, l *applogger.Logger, m repository.Metrics) []domsvc.Forecaster {
	return strategy.Build(cfg.Forecast, pred, l, m)
}

func ProvideForecastUseCase(
	cfg *config.Config,
	source repository.PriceSource,
	strategies []domsvc.Forecaster,
	store repository.ForecastStore,
	pub repository.Publisher,
	c cache.BytesCache,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ForecastUseCase {
	opts := []usecase.Option{
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
		usecase.WithCache(c, cfg.Redis.TTL),
	}
	if store != nil {
		opts = append(opts, usecase.WithStore(store))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewForecastUseCase(source, cfg.Forecast, strategies, opts...)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideKafkaForecastHandler(cfg *config.Config, uc *usecase.ForecastUseCase, m repository.Metrics, l *applogger.Logger) *usecase.KafkaForecastHandler {
	return usecase.NewKafkaForecastHandler(cfg.Kafka.Topics.Requests, uc, m, l)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)
}

func ProvideForecastHandler(
	l *applogger.Logger,
	uc *usecase.ForecastUseCase,
	rl *ratelimit.Limiter,
	store repository.ForecastStore,
	pred domsvc.Predictor,
) *api.ForecastEchoHandler {
	h := api.NewForecastEchoHandler(l, uc, rl)
	if store != nil {
		h.AddHealthCheck("clickhouse", store)
	}
	if hc, ok := pred.(api.HealthChecker); ok {
		h.AddHealthCheck("model_service", hc)
	}
	return h
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.ForecastEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(metricsPath, nil),
	)
}

// ProvideApp assembles the application and registers every closable resource.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaForecastHandler,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	c cache.BytesCache,
) *server.App {
	app := server.New(cfg, l, srv)
	if consumer != nil {
		app.WithConsumer(consumer, kh)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	if producer != nil {
		app.AddCloser("kafka_producer", producer)
	}
	switch cc := c.(type) {
	case *cache.RedisCache:
		app.AddCloser("redis", cc)
	case *cache.TTLCache:
		ctx, cancel := context.WithCancel(context.Background())
		go cc.Run(ctx, time.Minute)
		app.AddCloser("cache_sweeper", closeFunc(cancel))
	}
	return app
}

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
