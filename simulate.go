package main

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Parameters configures one simulation run.
type Parameters struct {
	DegreesOfFreedom  float64
	VolatilityScale   float64
	CrisisMultiplier  float64
	CrisisProbability float64
	LowerBound        float64
	UpperBound        float64
	Horizon           int
	Simulations       int

	// Workers is the number of goroutines generating paths, 0 means GOMAXPROCS.
	Workers int
	Seed    uint64
}

// Validate reports the first configuration problem found.
func (p Parameters) Validate() error {
	switch {
	case p.Simulations <= 0:
		return fmt.Errorf("%w: number of simulations must be positive, got %d", ErrInvalidConfiguration, p.Simulations)
	case p.Horizon <= 0:
		return fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidConfiguration, p.Horizon)
	case !(p.DegreesOfFreedom > 2) || math.IsInf(p.DegreesOfFreedom, 0):
		return fmt.Errorf("%w: degrees of freedom must be finite and above 2, got %v", ErrInvalidConfiguration, p.DegreesOfFreedom)
	case !(p.VolatilityScale >= 0) || math.IsInf(p.VolatilityScale, 0):
		return fmt.Errorf("%w: volatility scale must be finite and non-negative, got %v", ErrInvalidConfiguration, p.VolatilityScale)
	case !(p.CrisisMultiplier >= 0) || math.IsInf(p.CrisisMultiplier, 0):
		return fmt.Errorf("%w: crisis multiplier must be finite and non-negative, got %v", ErrInvalidConfiguration, p.CrisisMultiplier)
	case !(p.CrisisProbability >= 0 && p.CrisisProbability <= 1):
		return fmt.Errorf("%w: crisis probability must lie in [0,1], got %v", ErrInvalidConfiguration, p.CrisisProbability)
	case math.IsNaN(p.LowerBound) || math.IsNaN(p.UpperBound):
		return fmt.Errorf("%w: price bounds must be numbers", ErrInvalidConfiguration)
	case p.LowerBound > p.UpperBound:
		return fmt.Errorf("%w: lower price bound %v exceeds upper bound %v", ErrInvalidConfiguration, p.LowerBound, p.UpperBound)
	case p.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfiguration, p.Workers)
	}
	return nil
}

// Draws is the random stream a single path consumes. Each day draws the
// crisis decision first, then the Student-t sample.
type Draws interface {
	Crisis(p float64) bool
	StudentT() float64
}

// DrawSource hands out the stream for a path. Streams must not be shared
// between paths.
type DrawSource func(path int) Draws

type tDraws struct {
	rnd *rand.Rand
	t   distuv.StudentsT
}

func (d *tDraws) Crisis(p float64) bool { return d.rnd.Float64() < p }

func (d *tDraws) StudentT() float64 { return d.t.Rand() }

// studentTSource derives an independent PCG stream for every path from seed,
// so results do not depend on how paths are spread over workers.
func studentTSource(seed uint64, nu float64) DrawSource {
	return func(path int) Draws {
		src := rand.NewSource(pathSeed(seed, path))
		return &tDraws{
			rnd: rand.New(src),
			t:   distuv.StudentsT{Mu: 0, Sigma: 1, Nu: nu, Src: src},
		}
	}
}

// splitmix64 finaliser over the seed and path index
func pathSeed(seed uint64, path int) uint64 {
	z := seed + uint64(path+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Ensemble is the full set of simulated paths of a run. Row i of Prices is
// path i, Horizon+1 prices long; each path also carries Horizon crisis flags.
type Ensemble struct {
	Start   float64
	Horizon int
	Prices  *mat.Dense

	crisis []bool
}

// Paths returns the number of simulated paths.
func (e *Ensemble) Paths() int {
	r, _ := e.Prices.Dims()
	return r
}

// Path returns the prices of path i. The slice aliases the ensemble.
func (e *Ensemble) Path(i int) []float64 {
	return e.Prices.RawRowView(i)
}

// CrisisFlags returns the crisis flags of path i. The slice aliases the ensemble.
func (e *Ensemble) CrisisFlags(i int) []bool {
	return e.crisis[i*e.Horizon : (i+1)*e.Horizon : (i+1)*e.Horizon]
}

// Option customises a Simulator.
type Option func(*Simulator)

// WithDraws replaces the default Student-t draw source.
func WithDraws(src DrawSource) Option {
	return func(s *Simulator) { s.draws = src }
}

// Simulator generates price paths with Student-t returns, a day-indexed
// volatility schedule and random crisis days.
type Simulator struct {
	params Parameters
	draws  DrawSource
}

// NewSimulator validates p and returns a Simulator for it.
func NewSimulator(p Parameters, opts ...Option) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Workers == 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}
	if p.Workers > p.Simulations {
		p.Workers = p.Simulations
	}

	s := &Simulator{params: p}
	for _, opt := range opts {
		opt(s)
	}
	if s.draws == nil {
		s.draws = studentTSource(p.Seed, p.DegreesOfFreedom)
	}
	return s, nil
}

// Params returns the parameters the simulator runs with, worker count resolved.
func (s *Simulator) Params() Parameters { return s.params }

// Run simulates every path from start. A cancelled ctx stops workers
// between paths and the error is returned.
func (s *Simulator) Run(ctx context.Context, start float64, schedule Schedule, meanReturn float64) (*Ensemble, error) {
	if !(start > 0) || math.IsInf(start, 0) {
		return nil, fmt.Errorf("%w: starting price must be finite and positive, got %v", ErrInvalidInput, start)
	}
	if math.IsNaN(meanReturn) || math.IsInf(meanReturn, 0) {
		return nil, fmt.Errorf("%w: mean return is not finite", ErrInvalidInput)
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	p := s.params
	e := &Ensemble{
		Start:   start,
		Horizon: p.Horizon,
		Prices:  mat.NewDense(p.Simulations, p.Horizon+1, nil),
		crisis:  make([]bool, p.Simulations*p.Horizon),
	}

	// Each worker owns a contiguous block of rows.
	g, gctx := errgroup.WithContext(ctx)
	chunk := (p.Simulations + p.Workers - 1) / p.Workers
	for lo := 0; lo < p.Simulations; lo += chunk {
		lo, hi := lo, min(lo+chunk, p.Simulations)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				s.path(e.Path(i), e.CrisisFlags(i), start, schedule, meanReturn, s.draws(i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return e, nil
}

// path fills prices (Horizon+1 long) and flags (Horizon long) for one path.
func (s *Simulator) path(prices []float64, flags []bool, start float64, schedule Schedule, mu float64, d Draws) {
	p := s.params
	// unit-variance scaling of the t draw
	norm := math.Sqrt((p.DegreesOfFreedom - 2) / p.DegreesOfFreedom)

	prices[0] = start

	for j := 0; j < p.Horizon; j++ {
		v := schedule.At(j) * p.VolatilityScale
		if d.Crisis(p.CrisisProbability) {
			v *= p.CrisisMultiplier
			flags[j] = true
		}
		r := mu + v*d.StudentT()*norm
		prices[j+1] = clamp(prices[j]*(1+r), p.LowerBound, p.UpperBound)
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
