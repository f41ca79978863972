// Package garch fits zero-mean GARCH(p,q) models by Gaussian maximum likelihood.
package garch

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// ErrFitFailed covers short input, degenerate variance and optimizer failure.
var ErrFitFailed = errors.New("garch fit failed")

const minObservations = 30

// Model holds the fitted recursion
//
//	sigma2_t = omega + sum alpha_i eps2_{t-i} + sum beta_j sigma2_{t-j}
//
// with p ARCH terms (alpha) and q GARCH terms (beta).
type Model struct {
	Omega  float64
	Alpha  []float64
	Beta   []float64
	LogLik float64

	eps2 []float64 // last p squared residuals, oldest first
	sig2 []float64 // last q conditional variances, oldest first
}

// Fit estimates the model on residuals. The residuals are standardized for
// the optimizer and omega is mapped back to the input scale.
func Fit(residuals []float64, p, q int) (*Model, error) {
	if p < 1 || q < 0 {
		return nil, fmt.Errorf("%w: invalid order (%d,%d)", ErrFitFailed, p, q)
	}
	n := len(residuals)
	if n < minObservations+p+q {
		return nil, fmt.Errorf("%w: %d residuals too few", ErrFitFailed, n)
	}
	var ss float64
	for _, e := range residuals {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return nil, fmt.Errorf("%w: non-finite residual", ErrFitFailed)
		}
		ss += e * e
	}
	scale := ss / float64(n)
	if !(scale > 0) {
		return nil, fmt.Errorf("%w: zero residual variance", ErrFitFailed)
	}
	z2 := make([]float64, n)
	for i, e := range residuals {
		z2[i] = e * e / scale
	}

	nll := func(x []float64) float64 {
		omega, alpha, beta := unpack(x, p, q)
		v := -logLikelihood(z2, omega, alpha, beta, nil)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.MaxFloat64 / 4
		}
		return v
	}
	res, err := optimize.Minimize(optimize.Problem{Func: nll}, initial(p, q), &optimize.Settings{
		FuncEvaluations: 5000,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-10, Relative: 1e-10, Iterations: 200},
	}, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: optimizer: %v", ErrFitFailed, err)
	}
	if res == nil || math.IsNaN(res.F) || res.F >= math.MaxFloat64/4 {
		return nil, fmt.Errorf("%w: no finite likelihood", ErrFitFailed)
	}

	omega, alpha, beta := unpack(res.X, p, q)
	sig := make([]float64, n)
	ll := logLikelihood(z2, omega, alpha, beta, sig)

	m := &Model{
		Omega:  omega * scale,
		Alpha:  alpha,
		Beta:   beta,
		LogLik: ll - 0.5*float64(n)*math.Log(scale),
		eps2:   make([]float64, p),
		sig2:   make([]float64, q),
	}
	for i := 0; i < p; i++ {
		m.eps2[i] = residuals[n-p+i] * residuals[n-p+i]
	}
	for j := 0; j < q; j++ {
		m.sig2[j] = sig[n-q+j] * scale
	}
	if !(m.Omega > 0) || math.IsInf(m.Omega, 0) {
		return nil, fmt.Errorf("%w: degenerate omega", ErrFitFailed)
	}
	return m, nil
}

// Persistence is sum(alpha) + sum(beta).
func (m *Model) Persistence() float64 {
	s := 0.0
	for _, a := range m.Alpha {
		s += a
	}
	for _, b := range m.Beta {
		s += b
	}
	return s
}

// Unconditional is the long-run variance omega / (1 - persistence).
func (m *Model) Unconditional() float64 {
	return m.Omega / (1 - m.Persistence())
}

// Forecast returns h conditional variance forecasts. Future squared shocks
// are replaced by their expectation, the forecast variance.
func (m *Model) Forecast(h int) ([]float64, error) {
	if h <= 0 {
		return nil, fmt.Errorf("forecast horizon must be positive, got %d", h)
	}
	p, q := len(m.Alpha), len(m.Beta)
	eps2 := append([]float64(nil), m.eps2...)
	sig2 := append([]float64(nil), m.sig2...)
	out := make([]float64, h)
	for k := 0; k < h; k++ {
		v := m.Omega
		for i := 0; i < p; i++ {
			v += m.Alpha[i] * eps2[p-1-i]
		}
		for j := 0; j < q; j++ {
			v += m.Beta[j] * sig2[q-1-j]
		}
		out[k] = v
		if p > 0 {
			eps2 = append(eps2[1:], v)
		}
		if q > 0 {
			sig2 = append(sig2[1:], v)
		}
	}
	return out, nil
}

// unpack maps unconstrained x to omega > 0 and non-negative ARCH/GARCH
// weights summing to less than one.
func unpack(x []float64, p, q int) (float64, []float64, []float64) {
	omega := math.Exp(x[0])
	w := make([]float64, p+q)
	total := 1.0
	for k := range w {
		w[k] = math.Exp(x[1+k])
		total += w[k]
	}
	for k := range w {
		w[k] /= total
	}
	return omega, w[:p], w[p:]
}

func initial(p, q int) []float64 {
	alphaTotal, betaTotal := 0.1, 0.8
	if q == 0 {
		alphaTotal, betaTotal = 0.5, 0
	}
	slack := 1 - alphaTotal - betaTotal
	x := make([]float64, 1+p+q)
	x[0] = math.Log(slack)
	for i := 0; i < p; i++ {
		x[1+i] = math.Log(alphaTotal / float64(p) / slack)
	}
	for j := 0; j < q; j++ {
		x[1+p+j] = math.Log(betaTotal / float64(q) / slack)
	}
	return x
}

// logLikelihood runs the variance recursion over squared standardized
// residuals, backcasting pre-sample terms with their mean. When sig is
// non-nil the conditional variances are stored in it.
func logLikelihood(z2 []float64, omega float64, alpha, beta, sig []float64) float64 {
	backcast := stat.Mean(z2, nil)
	if sig == nil {
		sig = make([]float64, len(z2))
	}
	ll := 0.0
	for t := range z2 {
		v := omega
		for i, a := range alpha {
			if t-1-i >= 0 {
				v += a * z2[t-1-i]
			} else {
				v += a * backcast
			}
		}
		for j, b := range beta {
			if t-1-j >= 0 {
				v += b * sig[t-1-j]
			} else {
				v += b * backcast
			}
		}
		sig[t] = v
		ll += -0.5 * (math.Log(2*math.Pi) + math.Log(v) + z2[t]/v)
	}
	return ll
}
