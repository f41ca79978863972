package montecarlo

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	"github.com/vpnsgde/gold-quant/internal/domain/service"
)

// RollingSimulator runs independent autoregressive rollouts of a stochastic
// predictor and reduces them to bands in price units.
type RollingSimulator struct {
	Predictor service.Predictor
	Scaler    service.Scaler
	workers   int
}

func NewRollingSimulator(p service.Predictor, s service.Scaler, opts ...Option) *RollingSimulator {
	cfg := newConfig(opts)
	return &RollingSimulator{Predictor: p, Scaler: s, workers: cfg.workers}
}

// Run produces a [steps x runs] matrix in the predictor's scaled space. Each
// run starts from window, appends every prediction and drops the oldest
// value before the next call.
func (r *RollingSimulator) Run(ctx context.Context, window []float64, steps, runs int) (*models.PathMatrix, error) {
	if len(window) == 0 || steps <= 0 || runs <= 0 {
		return nil, fmt.Errorf("%w: window=%d steps=%d runs=%d", models.ErrInput, len(window), steps, runs)
	}
	if l := r.Predictor.WindowLength(); l > 0 && l != len(window) {
		return nil, fmt.Errorf("%w: window length %d, predictor expects %d", models.ErrInput, len(window), l)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pm := models.NewPathMatrix(steps, runs)
	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	rollout := func(run int) {
		w := NewWindow(window)
		buf := make([]float64, len(window))
		for t := 0; t < steps; t++ {
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			buf = w.Values(buf)
			v, err := r.Predictor.PredictStochastic(ctx, buf)
			if err != nil {
				fail(fmt.Errorf("run %d step %d: %w", run, t+1, err))
				return
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				fail(fmt.Errorf("run %d step %d: non-finite prediction", run, t+1))
				return
			}
			pm.Set(t, run, v)
			w.Push(v)
		}
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < max(r.workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for run := range jobs {
				rollout(run)
			}
		}()
	}
feed:
	for run := 0; run < runs; run++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- run:
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pm, nil
}

// Simulate runs the rollouts, takes cross-run mean and the
// [(1-conf)/2, (1+conf)/2] percentiles per step, then maps them back to
// price units with the scaler's inverse.
func (r *RollingSimulator) Simulate(ctx context.Context, window []float64, steps, runs int, conf float64) (*models.ForecastPath, error) {
	if !(conf > 0 && conf < 1) {
		return nil, fmt.Errorf("%w: confidence %v outside (0,1)", models.ErrInput, conf)
	}
	pm, err := r.Run(ctx, window, steps, runs)
	if err != nil {
		return nil, err
	}
	b, err := Reduce(pm, conf)
	if err != nil {
		return nil, err
	}
	if r.Scaler != nil {
		for i := range b.Mean {
			b.Mean[i] = r.Scaler.Inverse(b.Mean[i])
			b.Lower[i] = r.Scaler.Inverse(b.Lower[i])
			b.Upper[i] = r.Scaler.Inverse(b.Upper[i])
		}
	}
	path := b.path()
	path.Meta = models.ForecastMeta{Confidence: conf, Paths: runs}
	return path, nil
}
