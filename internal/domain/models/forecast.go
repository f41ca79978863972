package models

import (
	"fmt"
	"time"
)

// Method identifies a forecasting strategy.
type Method string

const (
	MethodArimaGarch Method = "arima_garch"
	MethodGBM        Method = "gbm"
	MethodMCDropout  Method = "mc_dropout"
)

// ModelOrder is an ARIMA (p, d, q) specification.
type ModelOrder struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
}

func (o ModelOrder) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// MeanModel is a fitted mean model able to forecast returns.
type MeanModel interface {
	Forecast(steps int) ([]float64, error)
}

// ModelFit is produced only by a successful fit attempt.
type ModelFit struct {
	Order     ModelOrder
	Model     MeanModel
	AIC       float64
	Residuals []float64
	// Presample counts the leading Residuals the fit conditioned on.
	Presample int
}

// VarianceSource tells whether a variance forecast came from a fitted model.
type VarianceSource string

const (
	VarianceFitted   VarianceSource = "fitted"
	VarianceConstant VarianceSource = "constant_fallback"
)

// VarianceForecast holds one non-negative variance per horizon step.
type VarianceForecast struct {
	Values []float64
	Source VarianceSource
}

// ForecastStep is one horizon step of a forecast path. MeanReturn and Variance
// are nil for simulation-only methods.
type ForecastStep struct {
	Step       int      `json:"step"`
	MeanReturn *float64 `json:"mean_return"`
	Variance   *float64 `json:"variance"`
	MeanPrice  float64  `json:"price_mean"`
	LowerPrice float64  `json:"price_lower"`
	UpperPrice float64  `json:"price_upper"`
}

// ForecastMeta describes how a path was produced.
type ForecastMeta struct {
	Method         Method         `json:"method"`
	Confidence     float64        `json:"confidence_level"`
	Z              float64        `json:"z,omitempty"`
	ZFallback      bool           `json:"z_fallback,omitempty"`
	Order          *ModelOrder    `json:"order,omitempty"`
	AIC            float64        `json:"aic,omitempty"`
	VarianceSource VarianceSource `json:"variance_source,omitempty"`
	Paths          int            `json:"paths,omitempty"`
	// RealizedVol is the annualized realized volatility of the input tail.
	RealizedVol    float64        `json:"realized_vol,omitempty"`
	// Nobs counts the returns the mean model was finally fitted on.
	Nobs           int            `json:"nobs,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// Warn appends a recovered-failure note.
func (m *ForecastMeta) Warn(format string, args ...any) {
	m.Warnings = append(m.Warnings, fmt.Sprintf(format, args...))
}

// ForecastPath is the step-indexed result of either reconstruction method.
type ForecastPath struct {
	Steps []ForecastStep
	Meta  ForecastMeta
}

// PathMatrix is a row-major [steps x paths] matrix of simulated prices.
type PathMatrix struct {
	steps int
	paths int
	data  []float64
}

func NewPathMatrix(steps, paths int) *PathMatrix {
	return &PathMatrix{steps: steps, paths: paths, data: make([]float64, steps*paths)}
}

func (m *PathMatrix) Steps() int { return m.steps }
func (m *PathMatrix) Paths() int { return m.paths }

func (m *PathMatrix) At(step, path int) float64 { return m.data[step*m.paths+path] }

func (m *PathMatrix) Set(step, path int, v float64) { m.data[step*m.paths+path] = v }

// Row returns the cross-path values at a step. The slice aliases the matrix.
func (m *PathMatrix) Row(step int) []float64 {
	return m.data[step*m.paths : (step+1)*m.paths]
}

// ForecastRow is one output row, indexed by a synthetic timestamp.
type ForecastRow struct {
	Time       time.Time `json:"datetime"`
	Step       int       `json:"step"`
	MeanReturn *float64  `json:"mean_return"`
	Variance   *float64  `json:"variance"`
	PriceMean  float64   `json:"price_mean"`
	PriceLower float64   `json:"price_lower"`
	PriceUpper float64   `json:"price_upper"`
}

// ForecastTable is the normalized forecast output.
type ForecastTable struct {
	Symbol      string        `json:"symbol"`
	GeneratedAt time.Time     `json:"generated_at"`
	LastTime    time.Time     `json:"last_time"`
	LastPrice   float64       `json:"last_price"`
	Interval    time.Duration `json:"interval_ns"`
	Rows        []ForecastRow `json:"rows"`
	Meta        ForecastMeta  `json:"meta"`
	History     []PricePoint  `json:"history,omitempty"`
}
