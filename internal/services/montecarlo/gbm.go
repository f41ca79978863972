// Package montecarlo simulates price paths and reduces them to percentile
// bands.
package montecarlo

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

type simConfig struct {
	seed    uint64
	seeded  bool
	workers int
}

// Option configures SimulateGBM and RollingSimulator.
type Option func(*simConfig)

// WithSeed makes simulations reproducible. Every path draws from its own
// stream derived from the seed, so results do not depend on worker count.
func WithSeed(seed uint64) Option {
	return func(c *simConfig) { c.seed, c.seeded = seed, true }
}

// WithWorkers spreads paths over n goroutines.
func WithWorkers(n int) Option {
	return func(c *simConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

func newConfig(opts []Option) simConfig {
	c := simConfig{workers: 1}
	for _, o := range opts {
		o(&c)
	}
	if !c.seeded {
		c.seed = rand.Uint64()
	}
	return c
}

func pathRNG(seed uint64, path int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(path)))
}

// SimulateGBM generates a [steps x paths] matrix of the multiplicative
// random walk price[t] = price[t-1] * exp((mu - sigma^2/2) + sigma*Z) with
// dt = 1. Row 0 holds the starting price; rows 1..steps-1 are simulated.
func SimulateGBM(start, mu, sigma float64, steps, paths int, opts ...Option) (*models.PathMatrix, error) {
	if !(start > 0) || math.IsInf(start, 0) {
		return nil, fmt.Errorf("%w: start price %v must be positive", models.ErrInput, start)
	}
	if steps <= 0 || paths <= 0 {
		return nil, fmt.Errorf("%w: steps=%d paths=%d must be positive", models.ErrInput, steps, paths)
	}
	if sigma < 0 || math.IsNaN(sigma) || math.IsNaN(mu) {
		return nil, fmt.Errorf("%w: invalid drift %v or volatility %v", models.ErrInput, mu, sigma)
	}
	cfg := newConfig(opts)
	pm := models.NewPathMatrix(steps, paths)
	drift := mu - 0.5*sigma*sigma

	simulate := func(j int) {
		rng := pathRNG(cfg.seed, j)
		price := start
		pm.Set(0, j, price)
		for t := 1; t < steps; t++ {
			price *= math.Exp(drift + sigma*rng.NormFloat64())
			pm.Set(t, j, price)
		}
	}
	forEachPath(paths, cfg.workers, simulate)
	return pm, nil
}

// forEachPath runs fn for 0..n-1 on up to workers goroutines in contiguous
// chunks.
func forEachPath(n, workers int, fn func(j int)) {
	if workers <= 1 || n < 2 {
		for j := 0; j < n; j++ {
			fn(j)
		}
		return
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for j := lo; j < hi; j++ {
				fn(j)
			}
		}(lo, hi)
	}
	wg.Wait()
}
