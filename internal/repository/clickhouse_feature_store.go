package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	domrepo "github.com/vpnsgde/gold-quant/internal/domain/repository"
	pkgch "github.com/vpnsgde/gold-quant/pkg/clickhouse"
	applogger "github.com/vpnsgde/gold-quant/pkg/logger"
)

// CHFeatureStore reads candles from ClickHouse and serves them as price
// series for forecasting.
type CHFeatureStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHFeatureStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHFeatureStore{db: ch.DB(), database: database, l: l}
}

func (s *CHFeatureStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT ts, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC`, table)
	out, err := s.query(ctx, "get_candles", table, q, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	return out, nil
}

func (s *CHFeatureStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT ts, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY ts DESC`, table)
	args := []any{symbol}
	// n <= 0 reads the full history.
	if n > 0 {
		q += "\n        LIMIT ?"
		args = append(args, n)
	}
	out, err := s.query(ctx, "latest_candles", table, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

var (
	_ domrepo.FeatureStore = (*CHFeatureStore)(nil)
	_ domrepo.PriceSource  = (*CHFeatureStore)(nil)
)

// LatestSeries returns the last n closes as a validated price series.
func (s *CHFeatureStore) LatestSeries(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) (*models.PriceSeries, error) {
	cs, err := s.GetLatestNCandles(ctx, symbol, n, tf)
	if err != nil {
		return nil, err
	}
	return models.SeriesFromCandles(symbol, cs)
}

func (s *CHFeatureStore) query(ctx context.Context, op, table, q string, args ...any) ([]models.Candle, error) {
	start := time.Now()
	fail := func(stage string, err error) error {
		s.l.Error("clickhouse "+op+" "+stage+" error",
			applogger.String("table", table),
			applogger.Error(err),
		)
		return err
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fail("query", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 512)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fail("scan", fmt.Errorf("scan candle: %w", err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("rows", err)
	}
	s.l.Debug("clickhouse "+op+" ok",
		applogger.String("table", table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func tableForTF(database string, tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1s, domrepo.TF1m, domrepo.TF5m:
		return fmt.Sprintf("%s.candles_%s", database, tf), nil
	default:
		return "", fmt.Errorf("%w: unsupported timeframe %q", models.ErrInput, tf)
	}
}
