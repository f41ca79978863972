package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	PredictorLocal  = "local"
	PredictorRemote = "remote"
)

// ForecastConfig is the recognized option surface of the forecasting engine.
type ForecastConfig struct {
	Symbol              string           `yaml:"symbol" default:"XAUUSD" validate:"required"`
	Timeframe           string           `yaml:"timeframe" default:"5m" validate:"oneof=1s 1m 5m"`
	Method              string           `yaml:"method" default:"arima_garch" validate:"oneof=arima_garch gbm mc_dropout"`
	ForecastSteps       int              `yaml:"forecast_steps" default:"50" validate:"gte=1"`
	SubsampleSize       int              `yaml:"subsample_size" default:"100000" validate:"gte=0"`
	ConfidenceLevel     float64          `yaml:"confidence_level" default:"0.95" validate:"gt=0,lt=1"`
	ModelOrderRanges    ModelOrderRanges `yaml:"model_order_ranges"`
	VolatilityOrder     VolatilityOrder  `yaml:"volatility_order"`
	MonteCarloPaths     int              `yaml:"monte_carlo_paths" default:"1000" validate:"gte=1"`
	RollingWindowLength int              `yaml:"rolling_window_length" default:"50" validate:"gte=1"`
	Predictor           string           `yaml:"predictor" default:"local" validate:"oneof=local remote"`
	DropoutRate         float64          `yaml:"dropout_rate" default:"0.2" validate:"gte=0,lt=1"`
	Seed                uint64           `yaml:"seed"`
	Workers             int              `yaml:"workers" default:"1" validate:"gte=1,lte=256"`
	RefitOnFull         bool             `yaml:"refit_on_full" default:"true"`
	SamplingInterval    time.Duration    `yaml:"sampling_interval" validate:"gte=0"`
	MaxMatrixCells      int              `yaml:"max_matrix_cells" default:"50000000" validate:"gte=1"`
	HistoryWindow       int              `yaml:"history_window" default:"200" validate:"gte=0"`
	InputCSV            string           `yaml:"input_csv"`
	OutputCSV           string           `yaml:"output_csv"`
}

// ModelOrderRanges are inclusive [min, max] ranges for p, d and q.
type ModelOrderRanges struct {
	P []int `yaml:"p" default:"[0,4]" validate:"len=2,dive,gte=0"`
	D []int `yaml:"d" default:"[0,1]" validate:"len=2,dive,gte=0"`
	Q []int `yaml:"q" default:"[0,4]" validate:"len=2,dive,gte=0"`
}

// VolatilityOrder is the GARCH (p, q) pair.
type VolatilityOrder struct {
	P int `yaml:"p" default:"1" validate:"gte=1"`
	Q int `yaml:"q" default:"1" validate:"gte=0"`
}

var validate = validator.New()

// Validate checks field constraints and the path matrix memory bound.
func (f *ForecastConfig) Validate() error {
	if err := validate.Struct(f); err != nil {
		return err
	}
	for name, r := range map[string][]int{"p": f.ModelOrderRanges.P, "d": f.ModelOrderRanges.D, "q": f.ModelOrderRanges.Q} {
		if r[0] > r[1] {
			return fmt.Errorf("model_order_ranges.%s: min %d greater than max %d", name, r[0], r[1])
		}
	}
	if f.MonteCarloPaths*f.ForecastSteps > f.MaxMatrixCells {
		return fmt.Errorf("monte_carlo_paths*forecast_steps = %d exceeds max_matrix_cells %d",
			f.MonteCarloPaths*f.ForecastSteps, f.MaxMatrixCells)
	}
	return nil
}
