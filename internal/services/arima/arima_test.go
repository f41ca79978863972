package arima

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

func simulateARMA(n int, c, phi, theta, sigma float64, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 7))
	out := make([]float64, n)
	prevY, prevE := 0.0, 0.0
	for t := 0; t < n; t++ {
		e := sigma * rng.NormFloat64()
		y := c + phi*prevY + theta*prevE + e
		out[t] = y
		prevY, prevE = y, e
	}
	return out
}

func TestFitRecoversAR1(t *testing.T) {
	y := simulateARMA(3000, 0.0002, 0.6, 0, 0.01, 1)
	m, err := Fit(y, models.ModelOrder{P: 1})
	require.NoError(t, err)
	_, ar, ma := m.Params()
	require.Len(t, ar, 1)
	require.Empty(t, ma)
	require.InDelta(t, 0.6, ar[0], 0.05)
	require.InDelta(t, 0.0001, m.Sigma2(), 0.00001)
	require.False(t, math.IsNaN(m.AIC()))
}

func TestFitRecoversMA1(t *testing.T) {
	y := simulateARMA(3000, 0, 0, 0.4, 0.01, 2)
	m, err := Fit(y, models.ModelOrder{Q: 1})
	require.NoError(t, err)
	_, _, ma := m.Params()
	require.InDelta(t, 0.4, ma[0], 0.07)
}

func TestAICPrefersTrueOrder(t *testing.T) {
	y := simulateARMA(3000, 0, 0.6, 0, 0.01, 3)
	white, err := Fit(y, models.ModelOrder{})
	require.NoError(t, err)
	ar1, err := Fit(y, models.ModelOrder{P: 1})
	require.NoError(t, err)
	if ar1.AIC() >= white.AIC() {
		t.Fatalf("expected AR(1) AIC %.3f below white noise AIC %.3f", ar1.AIC(), white.AIC())
	}
}

func TestFitInsufficientData(t *testing.T) {
	_, err := Fit([]float64{0.1, 0.2, 0.3, 0.1}, models.ModelOrder{P: 2, Q: 2})
	require.ErrorIs(t, err, ErrFitFailed)
}

func TestFitDegenerateSeries(t *testing.T) {
	y := make([]float64, 100)
	_, err := Fit(y, models.ModelOrder{})
	require.ErrorIs(t, err, ErrFitFailed)
}

func TestResidualsMatchInputLength(t *testing.T) {
	y := simulateARMA(500, 0, 0.3, 0.2, 0.01, 4)
	m, err := Fit(y, models.ModelOrder{P: 2, D: 1, Q: 1})
	require.NoError(t, err)
	r := m.Residuals()
	require.Len(t, r, len(y))
	for i := 0; i < 3; i++ {
		require.Zero(t, r[i])
	}
}

func TestForecastAR1(t *testing.T) {
	y := simulateARMA(1000, 0, 0.5, 0, 0.01, 5)
	m, err := Fit(y, models.ModelOrder{P: 1})
	require.NoError(t, err)
	c, ar, _ := m.Params()
	f, err := m.Forecast(3)
	require.NoError(t, err)
	require.Len(t, f, 3)
	want := c + ar[0]*y[len(y)-1]
	require.InDelta(t, want, f[0], 1e-12)
	require.InDelta(t, c+ar[0]*want, f[1], 1e-12)
}

func TestForecastIntegratesDifferences(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 7))
	x := make([]float64, 400)
	for i := 1; i < len(x); i++ {
		x[i] = x[i-1] + 0.01 + 0.001*rng.NormFloat64()
	}
	m, err := Fit(x, models.ModelOrder{D: 1})
	require.NoError(t, err)
	c, _, _ := m.Params()
	f, err := m.Forecast(4)
	require.NoError(t, err)
	require.InDelta(t, x[len(x)-1]+c, f[0], 1e-12)
	for i := 1; i < len(f); i++ {
		require.InDelta(t, c, f[i]-f[i-1], 1e-12)
	}
}

func TestForecastRejectsBadHorizon(t *testing.T) {
	y := simulateARMA(200, 0, 0.2, 0, 0.01, 8)
	m, err := Fit(y, models.ModelOrder{P: 1})
	require.NoError(t, err)
	_, err = m.Forecast(0)
	require.Error(t, err)
}

func TestRootsInside(t *testing.T) {
	require.True(t, rootsInside(nil))
	require.True(t, rootsInside([]float64{0.5, 0.2}))
	require.False(t, rootsInside([]float64{1.2}))
	require.False(t, rootsInside([]float64{0.6, 0.5}))
	require.True(t, invertible([]float64{-0.5}))
	require.False(t, invertible([]float64{1.5}))
}

func TestFitWithPresampleUsesCommonSample(t *testing.T) {
	y := simulateARMA(400, 0, 0.3, 0, 0.01, 6)
	for _, o := range []models.ModelOrder{{}, {P: 2}, {P: 3, D: 1}} {
		m, err := Fit(y, o, WithPresample(4))
		require.NoError(t, err)
		require.Equal(t, len(y)-4, m.Nobs(), o.String())
		require.Equal(t, 4, m.Presample())
	}
	m, err := Fit(y, models.ModelOrder{P: 2, D: 1})
	require.NoError(t, err)
	require.Equal(t, 3, m.Presample())
	require.Equal(t, len(y)-3, m.Nobs())
}
