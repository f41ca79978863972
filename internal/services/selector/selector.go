// Package selector picks the ARIMA order with the lowest AIC over a bounded
// grid. Failed fits are skipped; only an all-failed grid is an error.
package selector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	"github.com/vpnsgde/gold-quant/internal/domain/repository"
	"github.com/vpnsgde/gold-quant/internal/services/arima"
	"github.com/vpnsgde/gold-quant/pkg/logger"
)

// ErrNoViableModel is matched by every *NoViableModelError.
var ErrNoViableModel = errors.New("no viable model")

// NoViableModelError reports that every candidate order failed to fit.
type NoViableModelError struct {
	Attempts int
	LastErr  error
}

func (e *NoViableModelError) Error() string {
	if e.LastErr == nil {
		return fmt.Sprintf("no viable model after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("no viable model after %d attempts: last error: %v", e.Attempts, e.LastErr)
}

func (e *NoViableModelError) Is(target error) bool { return target == ErrNoViableModel }

// Range is an inclusive integer range.
type Range struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Grid bounds the (p, d, q) search space.
type Grid struct {
	P Range `yaml:"p" json:"p"`
	D Range `yaml:"d" json:"d"`
	Q Range `yaml:"q" json:"q"`
}

// DefaultGrid is p in 0..4, d in 0..1, q in 0..4.
func DefaultGrid() Grid {
	return Grid{P: Range{0, 4}, D: Range{0, 1}, Q: Range{0, 4}}
}

// Candidates enumerates the grid with p outermost and q innermost, each
// ascending. The order is the tie-break order of Select.
func Candidates(g Grid) []models.ModelOrder {
	var out []models.ModelOrder
	for p := g.P.Min; p <= g.P.Max; p++ {
		for d := g.D.Min; d <= g.D.Max; d++ {
			for q := g.Q.Min; q <= g.Q.Max; q++ {
				out = append(out, models.ModelOrder{P: p, D: d, Q: q})
			}
		}
	}
	return out
}

// Evaluator fits one order. A non-nil error skips the order.
type Evaluator func(series []float64, order models.ModelOrder) (models.ModelFit, error)

// Evaluate fits an ARIMA model conditioned on its own d+p leading values and
// rejects non-finite AIC values.
func Evaluate(series []float64, order models.ModelOrder) (models.ModelFit, error) {
	return EvaluateOn(0)(series, order)
}

// EvaluateOn returns an Evaluator that conditions every fit on the first
// presample observations, so AIC values of different orders are computed on
// the same sample.
func EvaluateOn(presample int) Evaluator {
	return func(series []float64, order models.ModelOrder) (models.ModelFit, error) {
		m, err := arima.Fit(series, order, arima.WithPresample(presample))
		if err != nil {
			return models.ModelFit{}, err
		}
		aic := m.AIC()
		if math.IsNaN(aic) || math.IsInf(aic, 0) {
			return models.ModelFit{}, fmt.Errorf("%w: non-finite AIC", arima.ErrFitFailed)
		}
		return models.ModelFit{
			Order:     order,
			Model:     m,
			AIC:       aic,
			Residuals: m.Residuals(),
			Presample: m.Presample(),
		}, nil
	}
}

// Presample is the common conditioning window of g: the largest number of
// leading values any order of the grid needs.
func Presample(g Grid) int { return max(g.P.Max+g.D.Max, 0) }

// Attempt is the trace record of one evaluation.
type Attempt struct {
	Order    models.ModelOrder
	AIC      float64
	Err      error
	Duration time.Duration
}

// TraceFunc receives one Attempt per evaluated order, in enumeration order.
type TraceFunc func(Attempt)

// Selector runs the grid search. Without WithEvaluator every order is
// scored on the sample left after the grid's Presample.
type Selector struct {
	evaluate Evaluator
	workers  int
	trace    TraceFunc
	log      *logger.Logger
	metrics  repository.Metrics
}

// Option configures a Selector.
type Option func(*Selector)

func WithEvaluator(e Evaluator) Option { return func(s *Selector) { s.evaluate = e } }

// WithWorkers evaluates up to n orders concurrently. The result is the same
// as with one worker.
func WithWorkers(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithTrace(fn TraceFunc) Option { return func(s *Selector) { s.trace = fn } }

func WithLogger(l *logger.Logger) Option { return func(s *Selector) { s.log = l } }

func WithMetrics(m repository.Metrics) Option { return func(s *Selector) { s.metrics = m } }

func New(opts ...Option) *Selector {
	s := &Selector{workers: 1}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Select evaluates every order of g against series and returns the fit with
// the strictly lowest AIC. Equal AIC keeps the earlier order.
func Select(ctx context.Context, series []float64, g Grid) (models.ModelFit, error) {
	return New().Select(ctx, series, g)
}

func (s *Selector) Select(ctx context.Context, series []float64, g Grid) (models.ModelFit, error) {
	orders := Candidates(g)
	if len(orders) == 0 {
		return models.ModelFit{}, &NoViableModelError{}
	}
	eval := s.evaluate
	if eval == nil {
		eval = EvaluateOn(Presample(g))
	}

	var (
		best    models.ModelFit
		found   bool
		lastErr error
	)
	reduce := func(fit models.ModelFit, a Attempt) {
		s.record(a)
		if a.Err != nil {
			lastErr = a.Err
			return
		}
		if !found || fit.AIC < best.AIC {
			best, found = fit, true
		}
	}

	if s.workers <= 1 {
		for _, o := range orders {
			if err := ctx.Err(); err != nil {
				return models.ModelFit{}, err
			}
			fit, a := s.attempt(eval, series, o)
			reduce(fit, a)
		}
	} else {
		fits, attempts, err := s.parallel(ctx, eval, series, orders)
		if err != nil {
			return models.ModelFit{}, err
		}
		for i := range orders {
			reduce(fits[i], attempts[i])
		}
	}

	if !found {
		return models.ModelFit{}, &NoViableModelError{Attempts: len(orders), LastErr: lastErr}
	}
	s.log.Info("model selected",
		logger.String("order", best.Order.String()),
		logger.Float64("aic", best.AIC),
		logger.Int("candidates", len(orders)))
	return best, nil
}

func (s *Selector) attempt(eval Evaluator, series []float64, o models.ModelOrder) (models.ModelFit, Attempt) {
	start := time.Now()
	fit, err := eval(series, o)
	a := Attempt{Order: o, Err: err, Duration: time.Since(start)}
	if err == nil {
		a.AIC = fit.AIC
	}
	return fit, a
}

// parallel fills indexed result slots so that the reduction order does not
// depend on scheduling.
func (s *Selector) parallel(ctx context.Context, eval Evaluator, series []float64, orders []models.ModelOrder) ([]models.ModelFit, []Attempt, error) {
	fits := make([]models.ModelFit, len(orders))
	attempts := make([]Attempt, len(orders))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fits[i], attempts[i] = s.attempt(eval, series, orders[i])
			}
		}()
	}
	var err error
feed:
	for i := range orders {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return fits, attempts, err
}

func (s *Selector) record(a Attempt) {
	if a.Err != nil {
		s.log.Debug("model fit failed",
			logger.String("order", a.Order.String()),
			logger.Error(a.Err))
		if s.metrics != nil {
			s.metrics.RecordFitAttempt("failed")
		}
	} else {
		s.log.Debug("model fit",
			logger.String("order", a.Order.String()),
			logger.Float64("aic", a.AIC),
			logger.Duration("duration_ms", a.Duration))
		if s.metrics != nil {
			s.metrics.RecordFitAttempt("ok")
		}
	}
	if s.trace != nil {
		s.trace(a)
	}
}
