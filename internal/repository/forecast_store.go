package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	pkgch "github.com/vpnsgde/gold-quant/pkg/clickhouse"
)

// CHForecastStore writes forecast runs and their steps to ClickHouse.
type CHForecastStore struct {
	client   *pkgch.Client
	db       *sql.DB
	database string
}

func NewCHForecastStore(ch *pkgch.Client, database string) *CHForecastStore {
	return &CHForecastStore{client: ch, db: ch.DB(), database: database}
}

// Save inserts one forecast_runs row and the step rows in chunks.
func (s *CHForecastStore) Save(ctx context.Context, t *models.ForecastTable) error {
	if t == nil || len(t.Rows) == 0 {
		return nil
	}
	runID := uuid.NewString()

	q, args := runInsert(s.database, runID, t)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert forecast run: %w", err)
	}

	const chunkSize = 2000
	for start := 0; start < len(t.Rows); start += chunkSize {
		end := min(start+chunkSize, len(t.Rows))
		q, args := stepsInsert(s.database, runID, t.Symbol, t.Rows[start:end])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert forecast steps: %w", err)
		}
	}
	return nil
}

func (s *CHForecastStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func runInsert(database, runID string, t *models.ForecastTable) (string, []any) {
	var order models.ModelOrder
	var aic *float64
	if t.Meta.Order != nil {
		order = *t.Meta.Order
		a := t.Meta.AIC
		aic = &a
	}
	warnings := t.Meta.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	q := fmt.Sprintf(`INSERT INTO %s.forecast_runs
        (run_id, symbol, method, generated_at, interval_ms, confidence, order_p, order_d, order_q, aic, z, z_fallback, variance_source, warnings)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, database)
	args := []any{
		runID, t.Symbol, string(t.Meta.Method), t.GeneratedAt, t.Interval.Milliseconds(),
		t.Meta.Confidence, uint8(order.P), uint8(order.D), uint8(order.Q), aic,
		t.Meta.Z, boolToUint8(t.Meta.ZFallback), string(t.Meta.VarianceSource), warnings,
	}
	return q, args
}

func stepsInsert(database, runID, symbol string, rows []models.ForecastRow) (string, []any) {
	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*9)
	for _, r := range rows {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, runID, symbol, uint32(r.Step), r.Time,
			r.MeanReturn, r.Variance, r.PriceMean, r.PriceLower, r.PriceUpper)
	}
	q := fmt.Sprintf(`INSERT INTO %s.forecast_steps
        (run_id, symbol, step, ts, mean_return, variance, price_mean, price_lower, price_upper)
        VALUES %s`, database, strings.Join(values, ","))
	return q, args
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
