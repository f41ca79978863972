package montecarlo

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

func TestGBMZeroVolatility(t *testing.T) {
	pm, err := SimulateGBM(2000, 0, 0, 20, 50, WithSeed(1))
	require.NoError(t, err)
	for s := 0; s < pm.Steps(); s++ {
		for p := 0; p < pm.Paths(); p++ {
			require.Equal(t, 2000.0, pm.At(s, p))
		}
	}
	path, err := Aggregate(pm, 0.95)
	require.NoError(t, err)
	require.Len(t, path.Steps, 20)
	for _, st := range path.Steps {
		require.InDelta(t, 2000.0, st.MeanPrice, 1e-9)
		require.InDelta(t, 2000.0, st.LowerPrice, 1e-9)
		require.InDelta(t, 2000.0, st.UpperPrice, 1e-9)
		require.Nil(t, st.MeanReturn)
		require.Nil(t, st.Variance)
	}
	require.Equal(t, 50, path.Meta.Paths)
}

func TestGBMRowZeroIsStart(t *testing.T) {
	pm, err := SimulateGBM(100, 0.001, 0.02, 5, 10, WithSeed(3))
	require.NoError(t, err)
	for p := 0; p < pm.Paths(); p++ {
		require.Equal(t, 100.0, pm.At(0, p))
	}
}

func TestGBMReproducibleAcrossWorkers(t *testing.T) {
	a, err := SimulateGBM(100, 0.0001, 0.01, 30, 257, WithSeed(42))
	require.NoError(t, err)
	b, err := SimulateGBM(100, 0.0001, 0.01, 30, 257, WithSeed(42), WithWorkers(7))
	require.NoError(t, err)
	for s := 0; s < a.Steps(); s++ {
		require.Equal(t, a.Row(s), b.Row(s))
	}
}

func TestGBMLogDrift(t *testing.T) {
	mu, sigma := 0.001, 0.01
	pm, err := SimulateGBM(1, mu, sigma, 11, 20000, WithSeed(5), WithWorkers(4))
	require.NoError(t, err)
	sum := 0.0
	for p := 0; p < pm.Paths(); p++ {
		sum += math.Log(pm.At(10, p))
	}
	// 10 simulated increments
	require.InDelta(t, 10*(mu-0.5*sigma*sigma), sum/float64(pm.Paths()), 0.001)
}

func TestGBMInvalidInput(t *testing.T) {
	_, err := SimulateGBM(0, 0, 0.1, 5, 5)
	require.ErrorIs(t, err, models.ErrInput)
	_, err = SimulateGBM(1, 0, -0.1, 5, 5)
	require.ErrorIs(t, err, models.ErrInput)
	_, err = SimulateGBM(1, 0, 0.1, 0, 5)
	require.ErrorIs(t, err, models.ErrInput)
}

func TestAggregatePermutationInvariant(t *testing.T) {
	pm, err := SimulateGBM(500, 0, 0.03, 15, 101, WithSeed(8))
	require.NoError(t, err)
	perm := rand.New(rand.NewPCG(1, 2)).Perm(pm.Paths())
	shuffled := models.NewPathMatrix(pm.Steps(), pm.Paths())
	for s := 0; s < pm.Steps(); s++ {
		for p, q := range perm {
			shuffled.Set(s, p, pm.At(s, q))
		}
	}
	a, err := Aggregate(pm, 0.9)
	require.NoError(t, err)
	b, err := Aggregate(shuffled, 0.9)
	require.NoError(t, err)
	for i := range a.Steps {
		require.InDelta(t, a.Steps[i].MeanPrice, b.Steps[i].MeanPrice, 1e-9)
		require.Equal(t, a.Steps[i].LowerPrice, b.Steps[i].LowerPrice)
		require.Equal(t, a.Steps[i].UpperPrice, b.Steps[i].UpperPrice)
	}
}

func TestAggregateDoesNotMutateMatrix(t *testing.T) {
	pm := models.NewPathMatrix(1, 3)
	pm.Set(0, 0, 3)
	pm.Set(0, 1, 1)
	pm.Set(0, 2, 2)
	_, err := Aggregate(pm, 0.5)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 1, 2}, pm.Row(0))
}

func TestPercentiles(t *testing.T) {
	lo, hi := Percentiles(0.95)
	require.InDelta(t, 0.025, lo, 1e-12)
	require.InDelta(t, 0.975, hi, 1e-12)
}

func TestWindowEviction(t *testing.T) {
	w := NewWindow([]float64{1, 2, 3})
	require.Equal(t, 3, w.Len())
	w.Push(4)
	require.Equal(t, []float64{2, 3, 4}, w.Values(nil))
	w.Push(5)
	w.Push(6)
	w.Push(7)
	require.Equal(t, []float64{5, 6, 7}, w.Values(nil))
	require.Equal(t, 3, w.Cap())

	e := NewEmptyWindow(2)
	e.Push(1)
	require.Equal(t, []float64{1}, e.Values(nil))
	e.Push(2)
	e.Push(3)
	require.Equal(t, []float64{2, 3}, e.Values(nil))
}

// lastPlusOne is deterministic and records every window it sees.
type lastPlusOne struct {
	mu   sync.Mutex
	seen [][]float64
}

func (p *lastPlusOne) PredictStochastic(_ context.Context, w []float64) (float64, error) {
	p.mu.Lock()
	p.seen = append(p.seen, append([]float64(nil), w...))
	p.mu.Unlock()
	return w[len(w)-1] + 1, nil
}

func (p *lastPlusOne) WindowLength() int { return 3 }

type noisy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (p *noisy) PredictStochastic(_ context.Context, w []float64) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return w[len(w)-1] + 0.01*p.rng.NormFloat64(), nil
}

func (p *noisy) WindowLength() int { return 0 }

type affine struct{ lo, span float64 }

func (a affine) Transform(x float64) float64 { return (x - a.lo) / a.span }
func (a affine) Inverse(y float64) float64   { return y*a.span + a.lo }

func TestRollingSlidesWindow(t *testing.T) {
	p := &lastPlusOne{}
	sim := NewRollingSimulator(p, affine{lo: 1000, span: 10})
	path, err := sim.Simulate(context.Background(), []float64{0.1, 0.2, 0.3}, 3, 1, 0.9)
	require.NoError(t, err)
	require.Len(t, p.seen, 3)
	require.Equal(t, []float64{0.1, 0.2, 0.3}, p.seen[0])
	require.InDeltaSlice(t, []float64{0.2, 0.3, 1.3}, p.seen[1], 1e-12)
	require.InDeltaSlice(t, []float64{0.3, 1.3, 2.3}, p.seen[2], 1e-12)
	// inverse scaling of 1.3, 2.3, 3.3
	require.InDelta(t, 1013, path.Steps[0].MeanPrice, 1e-9)
	require.InDelta(t, 1033, path.Steps[2].MeanPrice, 1e-9)
	require.InDelta(t, path.Steps[2].MeanPrice, path.Steps[2].LowerPrice, 1e-9)
}

func TestRollingBands(t *testing.T) {
	p := &noisy{rng: rand.New(rand.NewPCG(4, 4))}
	sim := NewRollingSimulator(p, affine{lo: 1800, span: 400}, WithWorkers(4))
	path, err := sim.Simulate(context.Background(), []float64{0.5, 0.5, 0.5, 0.5}, 10, 200, 0.9)
	require.NoError(t, err)
	require.Len(t, path.Steps, 10)
	require.Equal(t, 200, path.Meta.Paths)
	for _, s := range path.Steps {
		require.LessOrEqual(t, s.LowerPrice, s.UpperPrice)
		require.Greater(t, s.UpperPrice, s.LowerPrice)
	}
	last := path.Steps[9]
	require.Greater(t, last.UpperPrice-last.LowerPrice, path.Steps[0].UpperPrice-path.Steps[0].LowerPrice)
}

type failing struct{}

func (failing) PredictStochastic(context.Context, []float64) (float64, error) {
	return 0, errors.New("model offline")
}
func (failing) WindowLength() int { return 0 }

func TestRollingPropagatesPredictorError(t *testing.T) {
	sim := NewRollingSimulator(failing{}, nil, WithWorkers(3))
	_, err := sim.Simulate(context.Background(), []float64{1, 2}, 5, 10, 0.9)
	require.ErrorContains(t, err, "model offline")
}

func TestRollingCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim := NewRollingSimulator(&noisy{rng: rand.New(rand.NewPCG(1, 1))}, nil)
	_, err := sim.Simulate(ctx, []float64{1}, 5, 10, 0.9)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRollingWindowLengthMismatch(t *testing.T) {
	sim := NewRollingSimulator(&lastPlusOne{}, nil)
	_, err := sim.Simulate(context.Background(), []float64{1, 2}, 5, 1, 0.9)
	require.ErrorIs(t, err, models.ErrInput)
}
