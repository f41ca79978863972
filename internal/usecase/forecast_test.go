package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	domrepo "github.com/vpnsgde/gold-quant/internal/domain/repository"
	domsvc "github.com/vpnsgde/gold-quant/internal/domain/service"
	"github.com/vpnsgde/gold-quant/internal/service/cache"
	"github.com/vpnsgde/gold-quant/internal/services/selector"
	"github.com/vpnsgde/gold-quant/internal/services/strategy"
	"github.com/vpnsgde/gold-quant/pkg/config"
	pkgkafka "github.com/vpnsgde/gold-quant/pkg/kafka"
)

type fakeSource struct {
	series *models.PriceSeries
	err    error
	calls  int
}

func (f *fakeSource) LatestSeries(_ context.Context, _ string, n int, _ domrepo.Timeframe) (*models.PriceSeries, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.series.Tail(n), nil
}

type fakeStrategy struct {
	method models.Method
	err    error

	seen   int
	params domsvc.ForecastParams
}

func (f *fakeStrategy) Method() models.Method { return f.method }

func (f *fakeStrategy) Forecast(_ context.Context, s *models.PriceSeries, p domsvc.ForecastParams) (*models.ForecastPath, error) {
	f.seen, f.params = s.Len(), p
	if f.err != nil {
		return nil, f.err
	}
	path := &models.ForecastPath{Meta: models.ForecastMeta{Method: f.method, Confidence: p.Confidence}}
	last := s.Last().Close
	for i := 1; i <= p.Steps; i++ {
		path.Steps = append(path.Steps, models.ForecastStep{
			Step: i, MeanPrice: last, LowerPrice: last - float64(i), UpperPrice: last + float64(i),
		})
	}
	return path, nil
}

type recordingSink struct {
	mu     sync.Mutex
	tables []*models.ForecastTable
	err    error
}

func (r *recordingSink) Save(_ context.Context, t *models.ForecastTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = append(r.tables, t)
	return r.err
}

func (r *recordingSink) Publish(ctx context.Context, t *models.ForecastTable) error {
	return r.Save(ctx, t)
}

func (r *recordingSink) Health(context.Context) error { return nil }
func (r *recordingSink) Close() error                 { return nil }

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	runs   int
}

func (m *countingMetrics) RecordForecast(string, string) {
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

func (m *countingMetrics) RecordFallback(string)            {}
func (m *countingMetrics) RecordFitAttempt(string)          {}
func (m *countingMetrics) RecordLastPrice(string, float64)  {}
func (m *countingMetrics) RecordLatency(string, float64)    {}

func fiveMinuteSeries(t *testing.T, n int) *models.PriceSeries {
	t.Helper()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	pts := make([]models.PricePoint, n)
	p := 2000.0
	for i := range pts {
		if i%2 == 0 {
			p *= 1.001
		} else {
			p *= 0.9995
		}
		pts[i] = models.PricePoint{Time: start.Add(time.Duration(i) * 5 * time.Minute), Close: p}
	}
	s, err := models.NewPriceSeries("XAUUSD", pts)
	require.NoError(t, err)
	return s
}

func testConfig() config.ForecastConfig {
	c, err := config.Default()
	if err != nil {
		panic(err)
	}
	return c.Forecast
}

func TestRunProducesIndexedTable(t *testing.T) {
	src := &fakeSource{series: fiveMinuteSeries(t, 300)}
	store, pub := &recordingSink{}, &recordingSink{}
	uc := NewForecastUseCase(src, testConfig(), []domsvc.Forecaster{&fakeStrategy{method: models.MethodGBM}},
		WithStore(store), WithPublisher(pub))

	req := RequestFromConfig(testConfig())
	req.Method, req.Steps, req.History = "gbm", 4, 10
	tbl, err := uc.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, tbl.Rows, 4)
	require.Equal(t, 5*time.Minute, tbl.Interval)
	require.Equal(t, src.series.Last().Time.Add(20*time.Minute), tbl.Rows[3].Time)
	require.Len(t, tbl.History, 10)
	require.Greater(t, tbl.Meta.RealizedVol, 0.0)
	require.Len(t, store.tables, 1)
	require.Len(t, pub.tables, 1)
}

func TestRunPresentationFailuresAreWarnings(t *testing.T) {
	src := &fakeSource{series: fiveMinuteSeries(t, 50)}
	failing := &recordingSink{err: errors.New("clickhouse down")}
	m := &countingMetrics{}
	cfg := testConfig()
	cfg.OutputCSV = filepath.Join(t.TempDir(), "missing-dir", "out.csv")

	uc := NewForecastUseCase(src, cfg, []domsvc.Forecaster{&fakeStrategy{method: models.MethodGBM}},
		WithStore(failing), WithPublisher(failing), WithMetrics(m))
	tbl, err := uc.Run(context.Background(), models.ForecastRequest{Method: "gbm", Steps: 3})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)
	require.Equal(t, 1, m.errors["presentation_store"])
	require.Equal(t, 1, m.errors["presentation_publish"])
	require.Equal(t, 1, m.errors["presentation_csv"])
	require.Equal(t, 1, m.runs)
}

func TestRunWritesCSV(t *testing.T) {
	src := &fakeSource{series: fiveMinuteSeries(t, 50)}
	cfg := testConfig()
	cfg.OutputCSV = filepath.Join(t.TempDir(), "forecast.csv")
	uc := NewForecastUseCase(src, cfg, []domsvc.Forecaster{&fakeStrategy{method: models.MethodGBM}})

	_, err := uc.Run(context.Background(), models.ForecastRequest{Method: "gbm", Steps: 2})
	require.NoError(t, err)
	b, err := os.ReadFile(cfg.OutputCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "datetime,"))
}

func TestRunErrorsCarryStage(t *testing.T) {
	cfg := testConfig()

	uc := NewForecastUseCase(&fakeSource{err: models.ErrInput}, cfg, []domsvc.Forecaster{&fakeStrategy{method: models.MethodGBM}})
	_, err := uc.Run(context.Background(), models.ForecastRequest{Method: "gbm"})
	require.ErrorIs(t, err, models.ErrInput)
	require.True(t, strings.HasPrefix(err.Error(), "load:"))

	noModel := &selector.NoViableModelError{Attempts: 3}
	uc = NewForecastUseCase(&fakeSource{series: fiveMinuteSeries(t, 50)}, cfg,
		[]domsvc.Forecaster{&fakeStrategy{method: models.MethodArimaGarch, err: noModel}})
	_, err = uc.Run(context.Background(), models.ForecastRequest{Method: "arima_garch"})
	require.ErrorIs(t, err, selector.ErrNoViableModel)
	require.True(t, strings.HasPrefix(err.Error(), "forecast:"))

	_, err = uc.Run(context.Background(), models.ForecastRequest{Method: "gbm"})
	require.ErrorIs(t, err, models.ErrInput, "gbm strategy not registered")
}

func TestRunRejectsOversizedMatrix(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMatrixCells = 100
	uc := NewForecastUseCase(&fakeSource{series: fiveMinuteSeries(t, 50)}, cfg, []domsvc.Forecaster{&fakeStrategy{method: models.MethodGBM}})
	_, err := uc.Run(context.Background(), models.ForecastRequest{Method: "gbm", Steps: 10, Paths: 11})
	require.ErrorIs(t, err, models.ErrInput)
}

func TestRunServesFromCache(t *testing.T) {
	src := &fakeSource{series: fiveMinuteSeries(t, 50)}
	uc := NewForecastUseCase(src, testConfig(), []domsvc.Forecaster{&fakeStrategy{method: models.MethodGBM}},
		WithCache(cache.NewTTLCache(), time.Minute))
	req := models.ForecastRequest{Method: "gbm", Steps: 3}

	first, err := uc.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := uc.Run(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, src.calls)
	require.Equal(t, len(first.Rows), len(second.Rows))
	require.InDelta(t, first.Rows[2].PriceUpper, second.Rows[2].PriceUpper, 1e-12)
	require.True(t, first.Rows[0].Time.Equal(second.Rows[0].Time))
}

func TestRunWithRealStrategies(t *testing.T) {
	cfg := testConfig()
	cfg.Seed = 7
	cfg.MonteCarloPaths = 200
	cfg.RollingWindowLength = 10
	src := &fakeSource{series: fiveMinuteSeries(t, 120)}
	uc := NewForecastUseCase(src, cfg, strategy.Build(cfg, nil, nil, nil))

	for _, m := range []string{"gbm", "mc_dropout"} {
		tbl, err := uc.Run(context.Background(), models.ForecastRequest{Method: m, Steps: 5, N: 120})
		require.NoError(t, err, m)
		require.Len(t, tbl.Rows, 5, m)
		for _, r := range tbl.Rows {
			require.LessOrEqual(t, r.PriceLower, r.PriceUpper, m)
		}
	}
}

func TestKafkaForecastHandler(t *testing.T) {
	src := &fakeSource{series: fiveMinuteSeries(t, 50)}
	pub := &recordingSink{}
	uc := NewForecastUseCase(src, testConfig(), []domsvc.Forecaster{&fakeStrategy{method: models.MethodGBM}}, WithPublisher(pub))
	h := NewKafkaForecastHandler("forecast.requests", uc, &countingMetrics{}, nil)
	ctx := context.Background()

	require.Equal(t, "forecast.requests", h.Topic())
	require.NoError(t, h.Handle(ctx, []byte(`{"symbol":"XAUUSD","method":"gbm","steps":3}`)))
	require.Len(t, pub.tables, 1)
	require.Len(t, pub.tables[0].Rows, 3)

	err := h.Handle(ctx, []byte(`{not json`))
	require.Error(t, err)
	require.False(t, pkgkafka.Retryable(err))

	err = h.Handle(ctx, []byte(`{"symbol":"XAUUSD","method":"ouija"}`))
	require.ErrorIs(t, err, models.ErrInput)
	require.False(t, pkgkafka.Retryable(err))
}

func TestKafkaForecastHandlerRetriesLoadFailures(t *testing.T) {
	uc := NewForecastUseCase(&fakeSource{err: errors.New("timeout")}, testConfig(),
		[]domsvc.Forecaster{&fakeStrategy{method: models.MethodGBM}})
	h := NewKafkaForecastHandler("forecast.requests", uc, nil, nil)
	err := h.Handle(context.Background(), []byte(`{"symbol":"XAUUSD","method":"gbm"}`))
	require.Error(t, err)
	require.True(t, pkgkafka.Retryable(err))
}

func noisySeries(t *testing.T, n int) *models.PriceSeries {
	t.Helper()
	rng := rand.New(rand.NewPCG(13, 4))
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	pts := make([]models.PricePoint, n)
	p := 2000.0
	for i := range pts {
		p *= math.Exp(0.001 * rng.NormFloat64())
		pts[i] = models.PricePoint{Time: start.Add(time.Duration(i) * 5 * time.Minute), Close: p}
	}
	s, err := models.NewPriceSeries("XAUUSD", pts)
	require.NoError(t, err)
	return s
}

func TestRunFromConfigLoadsFullHistory(t *testing.T) {
	cfg := testConfig()
	cfg.SubsampleSize = 100
	src := &fakeSource{series: fiveMinuteSeries(t, 400)}
	fs := &fakeStrategy{method: models.MethodGBM}
	cfg.Method = "gbm"
	uc := NewForecastUseCase(src, cfg, []domsvc.Forecaster{fs})

	_, err := uc.Run(context.Background(), RequestFromConfig(cfg))
	require.NoError(t, err)
	require.Equal(t, 400, fs.seen)
	require.Equal(t, 100, fs.params.Subsample)
}

func TestRunRefitsOnFullHistory(t *testing.T) {
	cfg := testConfig()
	cfg.SubsampleSize = 200
	cfg.Method = "arima_garch"
	cfg.ForecastSteps = 5
	cfg.ModelOrderRanges = config.ModelOrderRanges{P: []int{0, 1}, D: []int{0, 0}, Q: []int{0, 0}}
	src := &fakeSource{series: noisySeries(t, 600)}

	for _, refit := range []bool{true, false} {
		cfg.RefitOnFull = refit
		uc := NewForecastUseCase(src, cfg, strategy.Build(cfg, nil, nil, nil))
		tbl, err := uc.Run(context.Background(), RequestFromConfig(cfg))
		require.NoError(t, err)
		want := 199
		if refit {
			want = 599
		}
		require.Equal(t, want, tbl.Meta.Nobs, "refit_on_full=%v", refit)
	}
}
