package main

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Forecast is the per-day reduction of an ensemble.
type Forecast struct {
	// Mean price per day, Horizon+1 long. Mean[0] is the starting price.
	Mean []float64
	// Fraction of paths in crisis per simulated day, Horizon long.
	CrisisFrequency []float64
}

// Aggregate averages the ensemble day by day.
func Aggregate(e *Ensemble) *Forecast {
	n := e.Paths()
	f := &Forecast{
		Mean:            make([]float64, e.Horizon+1),
		CrisisFrequency: make([]float64, e.Horizon),
	}

	col := make([]float64, n)
	f.Mean[0] = e.Start
	for k := 1; k <= e.Horizon; k++ {
		mat.Col(col, k, e.Prices)
		f.Mean[k] = stat.Mean(col, nil)
	}

	counts := make([]int, e.Horizon)
	for i := 0; i < n; i++ {
		for j, c := range e.CrisisFlags(i) {
			if c {
				counts[j]++
			}
		}
	}
	for j := range counts {
		f.CrisisFrequency[j] = float64(counts[j]) / float64(n)
	}
	return f
}

// Final returns the mean price on the last simulated day.
func (f *Forecast) Final() float64 {
	return f.Mean[len(f.Mean)-1]
}

// Percentiles returns the nearest-rank q-th percentile (0 <= q <= 100) of
// each day's prices across the ensemble. Any ensemble size is accepted.
func Percentiles(e *Ensemble, q float64) ([]float64, error) {
	out := make([]float64, e.Horizon+1)
	col := make([]float64, e.Paths())
	for k := range out {
		mat.Col(col, k, e.Prices)
		v, err := stats.PercentileNearestRank(col, q)
		if err != nil {
			return nil, fmt.Errorf("percentile %v of day %d: %w", q, k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Medians returns each day's median price across the ensemble.
func Medians(e *Ensemble) ([]float64, error) {
	out := make([]float64, e.Horizon+1)
	col := make([]float64, e.Paths())
	for k := range out {
		mat.Col(col, k, e.Prices)
		v, err := stats.Median(col)
		if err != nil {
			return nil, fmt.Errorf("median of day %d: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// CrisisDays counts crisis days over the whole ensemble.
func CrisisDays(e *Ensemble) int {
	n := 0
	for _, c := range e.crisis {
		if c {
			n++
		}
	}
	return n
}
