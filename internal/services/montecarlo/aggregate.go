package montecarlo

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

// Bands are per-step cross-path statistics.
type Bands struct {
	Mean  []float64
	Lower []float64
	Upper []float64
}

// Percentiles returns the lower and upper quantile levels for a two-sided
// band, e.g. 0.025 and 0.975 for conf 0.95.
func Percentiles(conf float64) (lo, hi float64) {
	return 0.5 - conf/2, 0.5 + conf/2
}

// Reduce computes the mean and the conf band of every row of pm. The row is
// sorted before taking quantiles, so column order does not matter.
func Reduce(pm *models.PathMatrix, conf float64) (Bands, error) {
	if pm == nil || pm.Steps() == 0 || pm.Paths() == 0 {
		return Bands{}, fmt.Errorf("%w: empty path matrix", models.ErrInput)
	}
	if !(conf > 0 && conf < 1) {
		return Bands{}, fmt.Errorf("%w: confidence %v outside (0,1)", models.ErrInput, conf)
	}
	lo, hi := Percentiles(conf)
	b := Bands{
		Mean:  make([]float64, pm.Steps()),
		Lower: make([]float64, pm.Steps()),
		Upper: make([]float64, pm.Steps()),
	}
	row := make([]float64, pm.Paths())
	for t := 0; t < pm.Steps(); t++ {
		copy(row, pm.Row(t))
		slices.Sort(row)
		b.Mean[t] = stat.Mean(row, nil)
		b.Lower[t] = stat.Quantile(lo, stat.LinInterp, row, nil)
		b.Upper[t] = stat.Quantile(hi, stat.LinInterp, row, nil)
	}
	return b, nil
}

// Aggregate reduces a price path matrix into a ForecastPath. Row t becomes
// step t+1; mean return and variance are left empty.
func Aggregate(pm *models.PathMatrix, conf float64) (*models.ForecastPath, error) {
	b, err := Reduce(pm, conf)
	if err != nil {
		return nil, err
	}
	path := b.path()
	path.Meta = models.ForecastMeta{Confidence: conf, Paths: pm.Paths()}
	return path, nil
}

func (b Bands) path() *models.ForecastPath {
	steps := make([]models.ForecastStep, len(b.Mean))
	for i := range steps {
		steps[i] = models.ForecastStep{
			Step:       i + 1,
			MeanPrice:  b.Mean[i],
			LowerPrice: b.Lower[i],
			UpperPrice: b.Upper[i],
		}
	}
	return &models.ForecastPath{Steps: steps}
}
