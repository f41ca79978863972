package models

import (
	"fmt"
	"time"
)

// Candle represents an OHLCV record as stored in the feature store.
type Candle struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PricePoint is a single close observation.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`
}

// PriceSeries is an immutable, strictly time-ordered series of positive closes.
type PriceSeries struct {
	Symbol string
	points []PricePoint
}

// NewPriceSeries validates and copies points into a PriceSeries.
func NewPriceSeries(symbol string, points []PricePoint) (*PriceSeries, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: empty price series", ErrInput)
	}
	cp := make([]PricePoint, len(points))
	for i, p := range points {
		if !(p.Close > 0) {
			return nil, fmt.Errorf("%w: non-positive close %v at index %d", ErrInput, p.Close, i)
		}
		if i > 0 && !p.Time.After(points[i-1].Time) {
			return nil, fmt.Errorf("%w: timestamps not strictly increasing at index %d", ErrInput, i)
		}
		cp[i] = p
	}
	return &PriceSeries{Symbol: symbol, points: cp}, nil
}

// SeriesFromCandles builds a PriceSeries from feature store candles.
func SeriesFromCandles(symbol string, cs []Candle) (*PriceSeries, error) {
	pts := make([]PricePoint, len(cs))
	for i, c := range cs {
		pts[i] = PricePoint{Time: c.Bucket, Close: c.Close}
	}
	return NewPriceSeries(symbol, pts)
}

func (s *PriceSeries) Len() int { return len(s.points) }

func (s *PriceSeries) At(i int) PricePoint { return s.points[i] }

func (s *PriceSeries) Last() PricePoint { return s.points[len(s.points)-1] }

// Closes returns a copy of the close prices.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Close
	}
	return out
}

// Times returns a copy of the timestamps.
func (s *PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Time
	}
	return out
}

// Tail returns the last n points as a new series sharing no state with s.
// n <= 0 or n >= Len returns s itself.
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if n <= 0 || n >= len(s.points) {
		return s
	}
	cp := make([]PricePoint, n)
	copy(cp, s.points[len(s.points)-n:])
	return &PriceSeries{Symbol: s.Symbol, points: cp}
}
