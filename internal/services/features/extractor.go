package features

import (
    "fmt"
    "math"
    "time"

    "gonum.org/v1/gonum/stat"

    "github.com/vpnsgde/gold-quant/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length Len()-1, or an ErrInput error when the series
// has fewer than two points.
func ComputeLogReturns(series *models.PriceSeries) ([]float64, error) {
    if series == nil || series.Len() < 2 {
        return nil, fmt.Errorf("%w: need at least 2 prices for returns", models.ErrInput)
    }
    closes := series.Closes()
    out := make([]float64, 0, len(closes)-1)
    for i := 1; i < len(closes); i++ {
        out = append(out, math.Log(closes[i]/closes[i-1]))
    }
    return out, nil
}

// DriftAndVolatility returns the per-bar mean and sample standard deviation
// (n-1 denominator) of the log returns.
func DriftAndVolatility(returns []float64) (mu, sigma float64) {
    switch len(returns) {
    case 0:
        return 0, 0
    case 1:
        return returns[0], 0
    }
    mu, sigma = stat.MeanStdDev(returns, nil)
    if math.IsNaN(sigma) {
        sigma = 0
    }
    return mu, sigma
}

// SampleVariance is the population variance (n denominator) of xs.
// Empty input yields 0.
func SampleVariance(xs []float64) float64 {
    n := len(xs)
    if n == 0 {
        return 0
    }
    if n == 1 {
        return 0
    }
    _, v := stat.MeanVariance(xs, nil)
    v = v * float64(n-1) / float64(n)
    if v < 0 || math.IsNaN(v) {
        return 0
    }
    return v
}

// Subsample keeps the most recent n points. n <= 0 disables subsampling.
func Subsample(series *models.PriceSeries, n int) *models.PriceSeries {
    return series.Tail(n)
}

// RealizedVolatility computes annualized realized volatility over the trailing
// window using the provided number of bars per year. A window longer than the
// returns uses all of them.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
    window = min(window, len(logReturns))
    if window <= 1 || barsPerYear <= 0 {
        return 0
    }
    _, sigma := DriftAndVolatility(logReturns[len(logReturns)-window:])
    return sigma * math.Sqrt(barsPerYear)
}

// BarsPerYearForInterval returns the approximate number of bars per year for
// a sampling interval. Gold trades around the clock on weekdays.
func BarsPerYearForInterval(interval time.Duration) float64 {
    if interval <= 0 {
        return 0
    }
    const tradingYear = 52 * 5 * 24 * time.Hour
    return float64(tradingYear) / float64(interval)
}
