package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpnsgde/gold-quant/internal/repository"
	"github.com/vpnsgde/gold-quant/internal/service/cache"
	"github.com/vpnsgde/gold-quant/pkg/config"
	applogger "github.com/vpnsgde/gold-quant/pkg/logger"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg
}

func TestDisabledBackendsProvideNil(t *testing.T) {
	cfg := defaultConfig(t)

	ch, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	require.Nil(t, ch)
	require.Nil(t, ProvideForecastStore(cfg, ch))

	producer, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	require.Nil(t, producer)
	require.Nil(t, ProvidePublisher(cfg, producer))

	consumer, err := ProvideKafkaConsumer(cfg, applogger.Nop())
	require.NoError(t, err)
	require.Nil(t, consumer)

	require.Nil(t, ProvidePredictor(cfg))
	require.IsType(t, &cache.TTLCache{}, ProvideCache(cfg))
}

func TestProvidePriceSource(t *testing.T) {
	cfg := defaultConfig(t)
	_, err := ProvidePriceSource(cfg, nil, applogger.Nop())
	require.ErrorContains(t, err, "no price source")

	cfg.Forecast.InputCSV = "prices.csv"
	src, err := ProvidePriceSource(cfg, nil, applogger.Nop())
	require.NoError(t, err)
	require.IsType(t, &repository.CSVPriceSource{}, src)
}

func TestProvideRemotePredictor(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Forecast.Predictor = config.PredictorRemote
	cfg.ModelService.URL = "http://127.0.0.1:1"
	pred := ProvidePredictor(cfg)
	require.NotNil(t, pred)
	require.Equal(t, cfg.Forecast.RollingWindowLength, pred.WindowLength())
}

func TestProvideAppStopsCacheSweeper(t *testing.T) {
	cfg := defaultConfig(t)
	app := ProvideApp(cfg, applogger.Nop(), nil, nil, nil, nil, nil, cache.NewTTLCache())
	require.NoError(t, app.Start())
	require.NoError(t, app.Shutdown(context.Background()))
}

func TestInitializeAppWithCSVSource(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Forecast.InputCSV = filepath.Join(t.TempDir(), "prices.csv")

	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, app)
	require.NoError(t, app.Shutdown(context.Background()))
}

func TestInitializeAppWithoutSource(t *testing.T) {
	_, err := InitializeApp(defaultConfig(t))
	require.ErrorContains(t, err, "no price source")
}
