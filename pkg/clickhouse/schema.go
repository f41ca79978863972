package clickhouse

import "fmt"

// Schema returns the DDL for the candle tables read by the price source and
// the forecast tables written by the forecast store.
func Schema(database string) []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)}
	for _, tf := range []string{"1s", "1m", "5m"} {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.candles_%s (
	symbol LowCardinality(String),
	ts DateTime64(3, 'UTC'),
	open Float64,
	high Float64,
	low Float64,
	close Float64,
	volume Float64
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (symbol, ts)`, database, tf))
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.forecast_runs (
	run_id String,
	symbol LowCardinality(String),
	method LowCardinality(String),
	generated_at DateTime64(3, 'UTC'),
	interval_ms Int64,
	confidence Float64,
	order_p UInt8,
	order_d UInt8,
	order_q UInt8,
	aic Nullable(Float64),
	z Float64,
	z_fallback UInt8,
	variance_source LowCardinality(String),
	warnings Array(String)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(generated_at)
ORDER BY (symbol, generated_at)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.forecast_steps (
	run_id String,
	symbol LowCardinality(String),
	step UInt32,
	ts DateTime64(3, 'UTC'),
	mean_return Nullable(Float64),
	variance Nullable(Float64),
	price_mean Float64,
	price_lower Float64,
	price_upper Float64
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (symbol, run_id, step)`, database),
	)
	return stmts
}
