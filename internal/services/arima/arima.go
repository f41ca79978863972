// Package arima fits ARIMA(p,d,q) mean models to return series by conditional
// Gaussian maximum likelihood.
package arima

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

// ErrFitFailed is returned for every recoverable fit failure: short data,
// optimizer failure, non-stationary or non-invertible estimates.
var ErrFitFailed = errors.New("arima fit failed")

const (
	defaultMaxEvaluations = 4000
	infeasible            = 1e100
)

// Model is a fitted ARIMA model. It is immutable after Fit returns.
type Model struct {
	order    models.ModelOrder
	constant float64
	ar       []float64
	ma       []float64
	sigma2   float64
	logLik   float64
	nobs     int
	start    int // first modeled index of the differenced series

	levels [][]float64 // levels[k] is the series differenced k times
	resid  []float64   // residuals on the differenced index, zero before start
}

type fitConfig struct {
	maxEvaluations int
	presample      int
}

// Option configures Fit.
type Option func(*fitConfig)

// WithMaxEvaluations caps likelihood evaluations of the optimizer.
func WithMaxEvaluations(n int) Option {
	return func(c *fitConfig) {
		if n > 0 {
			c.maxEvaluations = n
		}
	}
}

// WithPresample conditions the likelihood on the first m input observations.
// Fits of different orders sharing the same m are scored on the same sample,
// so their AIC values are comparable. The default conditions on d+p.
func WithPresample(m int) Option {
	return func(c *fitConfig) {
		if m > 0 {
			c.presample = m
		}
	}
}

// Fit estimates a constant, p AR and q MA coefficients on the series
// differenced d times. Pure AR orders are solved by least squares; orders
// with an MA part are refined with Nelder-Mead on the concentrated
// conditional sum of squares.
func Fit(series []float64, order models.ModelOrder, opts ...Option) (*Model, error) {
	cfg := fitConfig{maxEvaluations: defaultMaxEvaluations}
	for _, o := range opts {
		o(&cfg)
	}
	p, d, q := order.P, order.D, order.Q
	if p < 0 || d < 0 || q < 0 {
		return nil, fmt.Errorf("%w: negative order %s", ErrFitFailed, order)
	}
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite observation", ErrFitFailed)
		}
	}

	levels := make([][]float64, d+1)
	levels[0] = append([]float64(nil), series...)
	for k := 1; k <= d; k++ {
		levels[k] = difference(levels[k-1])
	}
	y := levels[d]
	start := max(p, cfg.presample-d)
	nEff := len(y) - start
	if nEff <= p+q+2 {
		return nil, fmt.Errorf("%w: %d observations too few for %s", ErrFitFailed, len(series), order)
	}

	x0, err := startValues(y, p, start)
	if err != nil {
		return nil, err
	}
	x0 = append(x0, make([]float64, q)...)

	css := func(x []float64) float64 {
		ar, ma := x[1:1+p], x[1+p:]
		if !rootsInside(ar) || !invertible(ma) {
			return infeasible
		}
		s := sumSquares(y, start, x[0], ar, ma, nil)
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return infeasible
		}
		return s
	}

	x := x0
	if q > 0 {
		for i := 0; i < 20 && css(x) >= infeasible; i++ {
			for j := 1; j <= p; j++ {
				x[j] *= 0.5
			}
		}
		res, err := optimize.Minimize(optimize.Problem{Func: css}, x, &optimize.Settings{
			FuncEvaluations: cfg.maxEvaluations,
			Converger:       &optimize.FunctionConverge{Absolute: 1e-12, Relative: 1e-10, Iterations: 200},
		}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("%w: optimizer: %v", ErrFitFailed, err)
		}
		if res == nil || math.IsNaN(res.F) || res.F >= infeasible {
			return nil, fmt.Errorf("%w: optimizer did not reach a feasible point", ErrFitFailed)
		}
		x = res.X
	}

	m := &Model{
		order:    order,
		constant: x[0],
		ar:       append([]float64(nil), x[1:1+p]...),
		ma:       append([]float64(nil), x[1+p:]...),
		nobs:     nEff,
		start:    start,
		levels:   levels,
		resid:    make([]float64, len(y)),
	}
	if !rootsInside(m.ar) {
		return nil, fmt.Errorf("%w: non-stationary AR part", ErrFitFailed)
	}
	if !invertible(m.ma) {
		return nil, fmt.Errorf("%w: non-invertible MA part", ErrFitFailed)
	}
	s := sumSquares(y, start, m.constant, m.ar, m.ma, m.resid)
	m.sigma2 = s / float64(nEff)
	if !(m.sigma2 > 0) || math.IsInf(m.sigma2, 0) {
		return nil, fmt.Errorf("%w: degenerate residual variance", ErrFitFailed)
	}
	m.logLik = -0.5 * float64(nEff) * (math.Log(2*math.Pi*m.sigma2) + 1)
	return m, nil
}

func (m *Model) Order() models.ModelOrder { return m.order }

// AIC is 2k - 2 logL with k counting the constant, the ARMA coefficients and
// the innovation variance.
func (m *Model) AIC() float64 {
	k := float64(m.order.P + m.order.Q + 2)
	return 2*k - 2*m.logLik
}

func (m *Model) LogLikelihood() float64 { return m.logLik }

// Sigma2 is the innovation variance estimate.
func (m *Model) Sigma2() float64 { return m.sigma2 }

// Params returns copies of the constant, AR and MA coefficients.
func (m *Model) Params() (constant float64, ar, ma []float64) {
	return m.constant, append([]float64(nil), m.ar...), append([]float64(nil), m.ma...)
}

// Nobs is the number of observations the likelihood was evaluated on.
func (m *Model) Nobs() int { return m.nobs }

// Presample is the number of leading input observations the likelihood is
// conditioned on. Their residuals are zero.
func (m *Model) Presample() int { return m.order.D + m.start }

// Residuals returns one residual per input observation. The first
// Presample entries, which the conditional likelihood does not model, are
// zero.
func (m *Model) Residuals() []float64 {
	out := make([]float64, len(m.levels[0]))
	copy(out[m.order.D:], m.resid)
	return out
}

// Forecast returns the h-step mean forecast on the scale of the input series.
// Future shocks are set to their expectation, zero.
func (m *Model) Forecast(h int) ([]float64, error) {
	if h <= 0 {
		return nil, fmt.Errorf("forecast horizon must be positive, got %d", h)
	}
	y := m.levels[m.order.D]
	n := len(y)
	w := make([]float64, n+h)
	copy(w, y)
	e := make([]float64, n+h)
	copy(e, m.resid)
	for t := n; t < n+h; t++ {
		v := m.constant
		for i, phi := range m.ar {
			if t-1-i >= 0 {
				v += phi * w[t-1-i]
			}
		}
		for j, theta := range m.ma {
			if t-1-j >= 0 {
				v += theta * e[t-1-j]
			}
		}
		w[t] = v
	}
	out := append([]float64(nil), w[n:]...)
	for k := m.order.D - 1; k >= 0; k-- {
		prev := m.levels[k][len(m.levels[k])-1]
		for i := range out {
			prev += out[i]
			out[i] = prev
		}
	}
	return out, nil
}

func difference(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = xs[i] - xs[i-1]
	}
	return out
}

// sumSquares runs the ARMA recursion conditioned on y[:start] and returns
// the sum of squared innovations. start is at least len(ar). When resid is
// non-nil the innovations are written into it.
func sumSquares(y []float64, start int, c float64, ar, ma, resid []float64) float64 {
	e := resid
	if e == nil {
		e = make([]float64, len(y))
	}
	s := 0.0
	for t := start; t < len(y); t++ {
		v := y[t] - c
		for i, phi := range ar {
			v -= phi * y[t-1-i]
		}
		for j, theta := range ma {
			if t-1-j >= start {
				v -= theta * e[t-1-j]
			}
		}
		e[t] = v
		s += v * v
	}
	return s
}

// startValues returns [c, phi_1..phi_p] from an OLS regression of y_t on its
// p lags for t >= start, or the sample mean of y[start:] when p is zero.
func startValues(y []float64, p, start int) ([]float64, error) {
	if p == 0 {
		return []float64{stat.Mean(y[start:], nil)}, nil
	}
	rows := len(y) - start
	x := mat.NewDense(rows, p+1, nil)
	target := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := r + start
		x.Set(r, 0, 1)
		for i := 1; i <= p; i++ {
			x.Set(r, i, y[t-i])
		}
		target.SetVec(r, y[t])
	}
	var beta mat.VecDense
	if err := beta.SolveVec(x, target); err != nil {
		return nil, fmt.Errorf("%w: least squares start: %v", ErrFitFailed, err)
	}
	out := make([]float64, p+1)
	for i := range out {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}

// rootsInside reports whether z^k - c_1 z^(k-1) - ... - c_k has all roots
// strictly inside the unit circle, via companion matrix eigenvalues.
func rootsInside(coef []float64) bool {
	k := len(coef)
	switch k {
	case 0:
		return true
	case 1:
		return math.Abs(coef[0]) < 1
	}
	comp := mat.NewDense(k, k, nil)
	for j := 0; j < k; j++ {
		comp.Set(0, j, coef[j])
	}
	for i := 1; i < k; i++ {
		comp.Set(i, i-1, 1)
	}
	var eig mat.Eigen
	if ok := eig.Factorize(comp, mat.EigenNone); !ok {
		return false
	}
	for _, v := range eig.Values(nil) {
		if cmplxAbs(v) >= 1 {
			return false
		}
	}
	return true
}

// invertible checks the MA polynomial 1 + theta_1 B + ... + theta_q B^q.
func invertible(ma []float64) bool {
	neg := make([]float64, len(ma))
	for i, v := range ma {
		neg[i] = -v
	}
	return rootsInside(neg)
}

func cmplxAbs(v complex128) float64 {
	return math.Hypot(real(v), imag(v))
}
