package predictor

import (
	"fmt"
	"math"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

// MinMaxScaler maps values linearly onto [0, 1] using the fitted range.
type MinMaxScaler struct {
	Min  float64
	Span float64
}

// FitMinMax fits a scaler on xs. A flat series gets a unit span.
func FitMinMax(xs []float64) (*MinMaxScaler, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("%w: cannot fit scaler on empty series", models.ErrInput)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return &MinMaxScaler{Min: lo, Span: span}, nil
}

func (s *MinMaxScaler) Transform(x float64) float64 { return (x - s.Min) / s.Span }

func (s *MinMaxScaler) Inverse(y float64) float64 { return y*s.Span + s.Min }

// TransformAll scales a copy of xs.
func (s *MinMaxScaler) TransformAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = s.Transform(x)
	}
	return out
}
