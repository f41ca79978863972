package reconstruct

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

func variance(vs ...float64) models.VarianceForecast {
	return models.VarianceForecast{Values: vs, Source: models.VarianceFitted}
}

func TestReconstructScenario(t *testing.T) {
	mean := []float64{0.001, -0.002, 0.0005}
	path, err := Reconstruct(mean, variance(0.0001, 0.0001, 0.0001), 2000.0, 0.95, WithQuantile(nil))
	require.NoError(t, err)
	require.True(t, path.Meta.ZFallback)
	require.Equal(t, ZFallback, path.Meta.Z)
	require.NotEmpty(t, path.Meta.Warnings)

	want := []float64{2002.0, 1998.0, 1999.0}
	for i, s := range path.Steps {
		require.Equal(t, i+1, s.Step)
		require.InDelta(t, want[i], s.MeanPrice, 0.1)
		// symmetric on the log scale
		up := math.Log(s.UpperPrice / s.MeanPrice)
		down := math.Log(s.MeanPrice / s.LowerPrice)
		require.InDelta(t, up, down, 1e-12)
		require.InDelta(t, 1.96*0.01, up, 1e-12)
	}
}

func TestReconstructExactQuantile(t *testing.T) {
	path, err := Reconstruct([]float64{0}, variance(1e-4), 100, 0.95)
	require.NoError(t, err)
	require.False(t, path.Meta.ZFallback)
	require.InDelta(t, 1.959964, path.Meta.Z, 1e-6)
	require.Empty(t, path.Meta.Warnings)
}

func TestReconstructCompounding(t *testing.T) {
	mean := []float64{0.01, -0.03, 0.02, 0.0, 0.005}
	path, err := Reconstruct(mean, variance(1e-4, 0, 3e-4, 1e-5, 2e-4), 1500, 0.9)
	require.NoError(t, err)
	require.InDelta(t, 1500*math.Exp(mean[0]), path.Steps[0].MeanPrice, 1e-9)
	for i := 1; i < len(mean); i++ {
		require.InDelta(t, path.Steps[i-1].MeanPrice*math.Exp(*path.Steps[i].MeanReturn), path.Steps[i].MeanPrice, 1e-9)
	}
}

func TestReconstructBandOrdering(t *testing.T) {
	mean := []float64{0.2, -0.5, 0, 1e-6, -1e-6}
	path, err := Reconstruct(mean, variance(0, 1, 1e-8, 4, 0.5), 10, 0.99)
	require.NoError(t, err)
	for _, s := range path.Steps {
		if !(s.LowerPrice <= s.MeanPrice && s.MeanPrice <= s.UpperPrice) {
			t.Fatalf("band ordering violated at step %d: %v %v %v", s.Step, s.LowerPrice, s.MeanPrice, s.UpperPrice)
		}
	}
	// zero variance collapses the band
	require.Equal(t, path.Steps[0].LowerPrice, path.Steps[0].UpperPrice)
}

func TestReconstructNegativeVarianceClamped(t *testing.T) {
	path, err := Reconstruct([]float64{0.01}, variance(-1), 100, 0.95)
	require.NoError(t, err)
	require.Equal(t, path.Steps[0].MeanPrice, path.Steps[0].UpperPrice)
}

func TestReconstructNonFiniteQuantileFallsBack(t *testing.T) {
	path, err := Reconstruct([]float64{0}, variance(1e-4), 100, 0.95, WithQuantile(func(float64) float64 { return math.NaN() }))
	require.NoError(t, err)
	require.True(t, path.Meta.ZFallback)
}

func TestReconstructInvalidInput(t *testing.T) {
	_, err := Reconstruct([]float64{0, 0}, variance(1), 100, 0.95)
	require.ErrorIs(t, err, models.ErrInput)
	_, err = Reconstruct([]float64{0}, variance(1), 100, 1)
	require.ErrorIs(t, err, models.ErrInput)
	_, err = Reconstruct([]float64{0}, variance(1), 0, 0.95)
	require.ErrorIs(t, err, models.ErrInput)
}

func TestReconstructRejectsNonFinite(t *testing.T) {
	cases := []struct {
		name     string
		mean     []float64
		variance []float64
	}{
		{"nan mean", []float64{0, math.NaN()}, []float64{1e-6, 1e-6}},
		{"inf mean", []float64{math.Inf(1)}, []float64{1e-6}},
		{"nan variance", []float64{0, 0}, []float64{1e-6, math.NaN()}},
		{"inf variance", []float64{0}, []float64{math.Inf(1)}},
	}
	for _, c := range cases {
		_, err := Reconstruct(c.mean, variance(c.variance...), 100, 0.95)
		require.ErrorIs(t, err, models.ErrInput, c.name)
	}
}
