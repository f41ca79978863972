// Package predictor provides in-process sequence predictors with a stochastic
// inference mode and the scaler they are trained with.
package predictor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

// DropoutAR is a linear autoregressor over a fixed lookback whose inputs go
// through inverted dropout at inference time. Repeated calls on the same
// window return different values when Rate > 0.
type DropoutAR struct {
	Intercept float64
	Weights   []float64 // Weights[i] applies to window[i], oldest first
	Rate      float64

	mu  sync.Mutex
	rng *rand.Rand
}

type trainConfig struct {
	ridge float64
	seed  uint64
}

type TrainOption func(*trainConfig)

// WithRidge sets the L2 penalty on the lag weights.
func WithRidge(lambda float64) TrainOption {
	return func(c *trainConfig) {
		if lambda >= 0 {
			c.ridge = lambda
		}
	}
}

func WithSeed(seed uint64) TrainOption {
	return func(c *trainConfig) { c.seed = seed }
}

// TrainDropoutAR fits the lag weights on a scaled series by ridge regression.
func TrainDropoutAR(series []float64, lookback int, rate float64, opts ...TrainOption) (*DropoutAR, error) {
	cfg := trainConfig{ridge: 1e-3, seed: rand.Uint64()}
	for _, o := range opts {
		o(&cfg)
	}
	if lookback <= 0 {
		return nil, fmt.Errorf("%w: lookback must be positive", models.ErrInput)
	}
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("%w: dropout rate %v outside [0,1)", models.ErrInput, rate)
	}
	rows := len(series) - lookback
	if rows <= lookback+1 {
		return nil, fmt.Errorf("%w: %d points too few for lookback %d", models.ErrInput, len(series), lookback)
	}

	k := lookback + 1
	x := mat.NewDense(rows, k, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		x.Set(r, 0, 1)
		for i := 0; i < lookback; i++ {
			x.Set(r, 1+i, series[r+i])
		}
		y.SetVec(r, series[r+lookback])
	}

	var a mat.Dense
	a.Mul(x.T(), x)
	for i := 1; i < k; i++ {
		a.Set(i, i, a.At(i, i)+cfg.ridge*float64(rows))
	}
	var b mat.VecDense
	b.MulVec(x.T(), y)
	var beta mat.VecDense
	if err := beta.SolveVec(&a, &b); err != nil {
		return nil, fmt.Errorf("train dropout AR: %w", err)
	}

	m := &DropoutAR{
		Intercept: beta.AtVec(0),
		Weights:   make([]float64, lookback),
		Rate:      rate,
		rng:       rand.New(rand.NewPCG(cfg.seed, 0x5eed)),
	}
	for i := range m.Weights {
		m.Weights[i] = beta.AtVec(1 + i)
	}
	return m, nil
}

func (m *DropoutAR) WindowLength() int { return len(m.Weights) }

// Predict is the deterministic forward pass with dropout disabled.
func (m *DropoutAR) Predict(window []float64) (float64, error) {
	if len(window) != len(m.Weights) {
		return 0, fmt.Errorf("%w: window length %d, expected %d", models.ErrInput, len(window), len(m.Weights))
	}
	v := m.Intercept
	for i, w := range m.Weights {
		v += w * window[i]
	}
	return v, nil
}

// PredictStochastic is safe for concurrent use.
func (m *DropoutAR) PredictStochastic(ctx context.Context, window []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(window) != len(m.Weights) {
		return 0, fmt.Errorf("%w: window length %d, expected %d", models.ErrInput, len(window), len(m.Weights))
	}
	if m.Rate == 0 {
		return m.Predict(window)
	}
	keep := 1 - m.Rate
	v := m.Intercept
	m.mu.Lock()
	for i, w := range m.Weights {
		if m.rng.Float64() < keep {
			v += w * window[i] / keep
		}
	}
	m.mu.Unlock()
	return v, nil
}
