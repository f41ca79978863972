package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	domrepo "github.com/vpnsgde/gold-quant/internal/domain/repository"
	domsvc "github.com/vpnsgde/gold-quant/internal/domain/service"
	"github.com/vpnsgde/gold-quant/internal/service/cache"
	apimetrics "github.com/vpnsgde/gold-quant/internal/service/metrics"
	"github.com/vpnsgde/gold-quant/internal/services/features"
	"github.com/vpnsgde/gold-quant/internal/services/output"
	"github.com/vpnsgde/gold-quant/pkg/config"
	"github.com/vpnsgde/gold-quant/pkg/logger"
)

// ForecastUseCase loads a price series, runs the requested strategy and
// normalizes the result. Persisting, publishing, caching and CSV output
// happen after the forecast is computed; their failures are logged and never
// change the returned table.
type ForecastUseCase struct {
	source     domrepo.PriceSource
	strategies map[models.Method]domsvc.Forecaster
	cfg        config.ForecastConfig

	store     domrepo.ForecastStore
	publisher domrepo.Publisher
	cache     cache.BytesCache
	cacheTTL  time.Duration
	metrics   domrepo.Metrics
	log       *logger.Logger
}

// realizedVolWindow is one day of 5-minute bars.
const realizedVolWindow = 288

type Option func(*ForecastUseCase)

func WithStore(s domrepo.ForecastStore) Option { return func(u *ForecastUseCase) { u.store = s } }

func WithPublisher(p domrepo.Publisher) Option { return func(u *ForecastUseCase) { u.publisher = p } }

// WithCache enables response caching. A non-positive ttl disables it.
func WithCache(c cache.BytesCache, ttl time.Duration) Option {
	return func(u *ForecastUseCase) {
		if ttl > 0 {
			u.cache, u.cacheTTL = c, ttl
		}
	}
}

func WithMetrics(m domrepo.Metrics) Option { return func(u *ForecastUseCase) { u.metrics = m } }

func WithLogger(l *logger.Logger) Option { return func(u *ForecastUseCase) { u.log = l } }

func NewForecastUseCase(source domrepo.PriceSource, cfg config.ForecastConfig, strategies []domsvc.Forecaster, opts ...Option) *ForecastUseCase {
	u := &ForecastUseCase{
		source:     source,
		strategies: make(map[models.Method]domsvc.Forecaster, len(strategies)),
		cfg:        cfg,
		log:        logger.Nop(),
	}
	for _, s := range strategies {
		u.strategies[s.Method()] = s
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.log == nil {
		u.log = logger.Nop()
	}
	return u
}

// RequestFromConfig builds a request carrying the configured defaults. It
// loads the whole available history; the subsample cut happens in the
// strategies so that refit_on_full sees the longer series.
func RequestFromConfig(cfg config.ForecastConfig) models.ForecastRequest {
	return models.ForecastRequest{
		Symbol:     cfg.Symbol,
		Method:     cfg.Method,
		Steps:      cfg.ForecastSteps,
		TF:         cfg.Timeframe,
		Confidence: cfg.ConfidenceLevel,
		Paths:      cfg.MonteCarloPaths,
		History:    cfg.HistoryWindow,
	}
}

// Run executes one forecast. Fatal errors are wrapped with the failing stage:
// load, forecast (whose strategies add select, volatility, reconstruct or
// simulate) and output.
func (u *ForecastUseCase) Run(ctx context.Context, req models.ForecastRequest) (*models.ForecastTable, error) {
	start := time.Now()
	req = u.withDefaults(req)
	method := models.Method(req.Method)
	strat, ok := u.strategies[method]
	if !ok {
		return nil, fmt.Errorf("%w: unknown method %q", models.ErrInput, req.Method)
	}
	if req.Paths*req.Steps > u.cfg.MaxMatrixCells && u.cfg.MaxMatrixCells > 0 {
		return nil, fmt.Errorf("%w: %d paths x %d steps exceeds %d cells", models.ErrInput, req.Paths, req.Steps, u.cfg.MaxMatrixCells)
	}

	key := cacheKey(req)
	if t, ok := u.cached(ctx, key); ok {
		return t, nil
	}

	series, err := u.source.LatestSeries(ctx, req.Symbol, req.N, domrepo.NormalizeTimeframe(req.TF))
	if err != nil {
		u.recordError("load")
		return nil, fmt.Errorf("load: %w", err)
	}
	if u.metrics != nil {
		u.metrics.RecordLastPrice(series.Symbol, series.Last().Close)
	}

	path, err := strat.Forecast(ctx, series, domsvc.ForecastParams{
		Steps:      req.Steps,
		Confidence: req.Confidence,
		Paths:      req.Paths,
		Subsample:  u.cfg.SubsampleSize,
	})
	if err != nil {
		u.recordError("forecast")
		return nil, fmt.Errorf("forecast: %w", err)
	}

	table, err := output.Normalize(path, series, u.cfg.SamplingInterval)
	if err != nil {
		u.recordError("output")
		return nil, fmt.Errorf("output: %w", err)
	}
	table.History = output.History(series, req.History)
	if rets, err := features.ComputeLogReturns(series); err == nil {
		table.Meta.RealizedVol = features.RealizedVolatility(rets, realizedVolWindow, features.BarsPerYearForInterval(table.Interval))
	}

	u.log.Info("forecast ready",
		logger.String("symbol", table.Symbol),
		logger.String("method", string(method)),
		logger.Int("steps", len(table.Rows)),
		logger.Any("first_mean_prices", firstMeans(table, 5)),
		logger.Float64("realized_vol", table.Meta.RealizedVol),
		logger.Int("warnings", len(table.Meta.Warnings)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	if u.metrics != nil {
		u.metrics.RecordForecast(string(method), table.Symbol)
		u.metrics.RecordLatency("forecast", time.Since(start).Seconds())
	}

	u.present(ctx, key, table)
	return table, nil
}

func (u *ForecastUseCase) withDefaults(req models.ForecastRequest) models.ForecastRequest {
	if req.Symbol == "" {
		req.Symbol = u.cfg.Symbol
	}
	if req.Method == "" {
		req.Method = u.cfg.Method
	}
	if req.Steps <= 0 {
		req.Steps = u.cfg.ForecastSteps
	}
	if req.Confidence <= 0 || req.Confidence >= 1 {
		req.Confidence = u.cfg.ConfidenceLevel
	}
	if req.Paths <= 0 {
		req.Paths = u.cfg.MonteCarloPaths
	}
	if req.TF == "" {
		req.TF = u.cfg.Timeframe
	}
	return req
}

func (u *ForecastUseCase) cached(ctx context.Context, key string) (*models.ForecastTable, bool) {
	if u.cache == nil {
		return nil, false
	}
	b, ok, err := u.cache.GetBytes(ctx, key)
	switch {
	case err != nil:
		apimetrics.CacheLookups.WithLabelValues("error").Inc()
		u.log.Warn("forecast cache get failed", logger.String("key", key), logger.Error(err))
		return nil, false
	case !ok:
		apimetrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	var t models.ForecastTable
	if err := json.Unmarshal(b, &t); err != nil {
		apimetrics.CacheLookups.WithLabelValues("error").Inc()
		u.log.Warn("forecast cache entry unreadable", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	apimetrics.CacheLookups.WithLabelValues("hit").Inc()
	return &t, true
}

// present runs the post-forecast sinks. Each failure is a warning only.
func (u *ForecastUseCase) present(ctx context.Context, key string, t *models.ForecastTable) {
	if u.cfg.OutputCSV != "" {
		if err := WriteCSVFile(u.cfg.OutputCSV, t); err != nil {
			u.presentationFailed("csv", err)
		}
	}
	if u.store != nil {
		if err := u.store.Save(ctx, t); err != nil {
			u.presentationFailed("store", err)
		}
	}
	if u.publisher != nil {
		if err := u.publisher.Publish(ctx, t); err != nil {
			u.presentationFailed("publish", err)
		}
	}
	if u.cache != nil {
		b, err := json.Marshal(t)
		if err == nil {
			err = u.cache.SetBytes(ctx, key, b, u.cacheTTL)
		}
		if err != nil {
			u.presentationFailed("cache", err)
		}
	}
}

func (u *ForecastUseCase) presentationFailed(sink string, err error) {
	u.recordError("presentation_" + sink)
	u.log.Warn("forecast presentation failed", logger.String("sink", sink), logger.Error(err))
}

func (u *ForecastUseCase) recordError(kind string) {
	if u.metrics != nil {
		u.metrics.RecordError(kind)
	}
}

// WriteCSVFile writes t to path, replacing any existing file.
func WriteCSVFile(path string, t *models.ForecastTable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := output.WriteCSV(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func cacheKey(r models.ForecastRequest) string {
	return strings.Join([]string{
		r.Symbol, r.Method, r.TF,
		fmt.Sprint(r.Steps), fmt.Sprint(r.N), fmt.Sprint(r.Confidence),
		fmt.Sprint(r.Paths), fmt.Sprint(r.History),
	}, "|")
}

func firstMeans(t *models.ForecastTable, n int) []float64 {
	n = min(n, len(t.Rows))
	out := make([]float64, n)
	for i := range out {
		out[i] = t.Rows[i].PriceMean
	}
	return out
}
