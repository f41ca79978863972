package predictor

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

func ar1(n int) []float64 {
	rng := rand.New(rand.NewPCG(2, 2))
	out := make([]float64, n)
	out[0] = 0.5
	for i := 1; i < n; i++ {
		out[i] = 0.2 + 0.6*out[i-1] + 0.01*rng.NormFloat64()
	}
	return out
}

func TestMinMaxScalerRoundTrip(t *testing.T) {
	s, err := FitMinMax([]float64{1900, 2100, 2000})
	require.NoError(t, err)
	require.Equal(t, 0.0, s.Transform(1900))
	require.Equal(t, 1.0, s.Transform(2100))
	for _, x := range []float64{1850, 1999.5, 2250} {
		require.InDelta(t, x, s.Inverse(s.Transform(x)), 1e-9)
	}
	require.Equal(t, []float64{0, 1, 0.5}, s.TransformAll([]float64{1900, 2100, 2000}))
}

func TestMinMaxScalerFlatSeries(t *testing.T) {
	s, err := FitMinMax([]float64{5, 5})
	require.NoError(t, err)
	require.Equal(t, 0.0, s.Transform(5))
	_, err = FitMinMax(nil)
	require.ErrorIs(t, err, models.ErrInput)
}

func TestTrainDropoutARRecoversAR1(t *testing.T) {
	m, err := TrainDropoutAR(ar1(3000), 1, 0.1, WithRidge(0), WithSeed(1))
	require.NoError(t, err)
	require.InDelta(t, 0.6, m.Weights[0], 0.05)
	require.InDelta(t, 0.2, m.Intercept, 0.03)
	require.Equal(t, 1, m.WindowLength())
}

func TestPredictStochasticVaries(t *testing.T) {
	m, err := TrainDropoutAR(ar1(2000), 5, 0.5, WithSeed(3))
	require.NoError(t, err)
	w := []float64{0.5, 0.5, 0.5, 0.5, 0.5}
	seen := map[float64]bool{}
	for i := 0; i < 50; i++ {
		v, err := m.PredictStochastic(context.Background(), w)
		require.NoError(t, err)
		seen[v] = true
	}
	require.Greater(t, len(seen), 1)
}

func TestPredictStochasticZeroRateIsDeterministic(t *testing.T) {
	m, err := TrainDropoutAR(ar1(2000), 3, 0, WithSeed(3))
	require.NoError(t, err)
	w := []float64{0.4, 0.5, 0.6}
	want, err := m.Predict(w)
	require.NoError(t, err)
	got, err := m.PredictStochastic(context.Background(), w)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestPredictWindowMismatch(t *testing.T) {
	m, err := TrainDropoutAR(ar1(500), 4, 0.2)
	require.NoError(t, err)
	_, err = m.PredictStochastic(context.Background(), []float64{1, 2})
	require.ErrorIs(t, err, models.ErrInput)
}

func TestTrainRejectsBadInput(t *testing.T) {
	_, err := TrainDropoutAR(ar1(10), 8, 0.2)
	require.ErrorIs(t, err, models.ErrInput)
	_, err = TrainDropoutAR(ar1(100), 3, 1)
	require.ErrorIs(t, err, models.ErrInput)
}
