// Package output normalizes forecast paths into the step-indexed table that
// is served, stored and written to CSV.
package output

import (
	"errors"
	"fmt"
	"time"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

// ErrMalformedPath is a caller contract violation: empty path or step numbers
// that are not 1..H in order.
var ErrMalformedPath = errors.New("malformed forecast path")

// ForecastIndex returns last + i*interval for i = 1..h.
func ForecastIndex(last time.Time, interval time.Duration, h int) []time.Time {
	out := make([]time.Time, h)
	for i := range out {
		out[i] = last.Add(time.Duration(i+1) * interval)
	}
	return out
}

// InferInterval returns the most frequent positive spacing of times. Ties go
// to the shorter spacing.
func InferInterval(times []time.Time) (time.Duration, error) {
	counts := make(map[time.Duration]int)
	for i := 1; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]); d > 0 {
			counts[d]++
		}
	}
	var best time.Duration
	for d, n := range counts {
		if best == 0 || n > counts[best] || (n == counts[best] && d < best) {
			best = d
		}
	}
	if best == 0 {
		return 0, fmt.Errorf("%w: cannot infer sampling interval from %d timestamps", models.ErrInput, len(times))
	}
	return best, nil
}

// Normalize attaches a timestamp index to path. A non-positive interval is
// inferred from series.
func Normalize(path *models.ForecastPath, series *models.PriceSeries, interval time.Duration) (*models.ForecastTable, error) {
	if path == nil || len(path.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrMalformedPath)
	}
	for i, s := range path.Steps {
		if s.Step != i+1 {
			return nil, fmt.Errorf("%w: step %d at position %d", ErrMalformedPath, s.Step, i)
		}
	}
	if series == nil || series.Len() == 0 {
		return nil, fmt.Errorf("%w: empty source series", models.ErrInput)
	}
	if interval <= 0 {
		var err error
		if interval, err = InferInterval(series.Times()); err != nil {
			return nil, err
		}
	}

	last := series.Last()
	index := ForecastIndex(last.Time, interval, len(path.Steps))
	rows := make([]models.ForecastRow, len(path.Steps))
	for i, s := range path.Steps {
		rows[i] = models.ForecastRow{
			Time:       index[i],
			Step:       s.Step,
			MeanReturn: s.MeanReturn,
			Variance:   s.Variance,
			PriceMean:  s.MeanPrice,
			PriceLower: s.LowerPrice,
			PriceUpper: s.UpperPrice,
		}
	}
	return &models.ForecastTable{
		Symbol:      series.Symbol,
		GeneratedAt: time.Now().UTC(),
		LastTime:    last.Time,
		LastPrice:   last.Close,
		Interval:    interval,
		Rows:        rows,
		Meta:        path.Meta,
	}, nil
}

// History returns up to n trailing observations for presentation.
func History(series *models.PriceSeries, n int) []models.PricePoint {
	if n <= 0 || series == nil {
		return nil
	}
	tail := series.Tail(n)
	out := make([]models.PricePoint, tail.Len())
	for i := range out {
		out[i] = tail.At(i)
	}
	return out
}
