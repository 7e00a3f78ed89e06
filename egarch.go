package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// E|z| for a standard normal z
var absNormalMean = math.Sqrt(2 / math.Pi)

// Log-variance is kept inside this band while the optimiser explores.
const maxLogVariance = 50.0

// EGARCH(1,1) with a constant mean and normal innovations:
//
//	ln s2_t = omega + alpha*(|e_{t-1}| - E|e|) + beta*ln s2_{t-1},  e = (x - mu)/s
type egarchModel struct{}

func (m *egarchModel) Name() string { return "egarch" }

type egarchParams struct {
	mu, omega, alpha, beta float64
}

// Map unconstrained optimiser coordinates onto the parameter domain.
func egarchTransform(par []float64) egarchParams {
	return egarchParams{mu: par[0], omega: par[1], alpha: par[2], beta: math.Tanh(par[3])}
}

// Recursion for the log-variance. lv has len(x)+1 entries: lv[len(x)] is
// the one-step-ahead value.
func egarchFilter(p egarchParams, x []float64, backcast float64, lv []float64) {
	lv[0] = backcast
	for t := range x {
		e := (x[t] - p.mu) / math.Exp(0.5*lv[t])
		next := p.omega + p.alpha*(math.Abs(e)-absNormalMean) + p.beta*lv[t]
		lv[t+1] = math.Max(-maxLogVariance, math.Min(maxLogVariance, next))
	}
}

// Compute negative log likelihood of the EGARCH model
func egarchNegLogLik(par []float64, x []float64, backcast float64, lv []float64) float64 {
	p := egarchTransform(par)
	egarchFilter(p, x, backcast, lv)
	ll := 0.0
	for t := range x {
		r := x[t] - p.mu
		ll += math.Log(2*math.Pi) + lv[t] + r*r/math.Exp(lv[t])
	}
	return 0.5 * ll
}

// Fit an EGARCH(1,1) model to daily returns by maximum likelihood.
func (m *egarchModel) Fit(returns []float64) (*VolatilityFit, error) {
	if err := checkReturns(returns); err != nil {
		return nil, err
	}
	x := scaleReturns(returns, 0)

	mu, sd := stat.MeanStdDev(x, nil)
	if !(sd > 0) {
		return nil, fmt.Errorf("%w: returns have no variance", ErrInvalidInput)
	}
	backcast := math.Log(sd * sd)

	// Start from a persistent process whose long-run variance is the sample variance.
	beta0 := 0.9
	par := []float64{mu, (1 - beta0) * backcast, 0.1, math.Atanh(beta0)}

	lv := make([]float64, len(x)+1)
	problem := optimize.Problem{
		Func: func(par []float64) float64 {
			return egarchNegLogLik(par, x, backcast, lv)
		},
	}
	result, err := optimize.Minimize(problem, par, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("minimize egarch likelihood: %w", err)
	}

	p := egarchTransform(result.X)
	egarchFilter(p, x, backcast, lv)
	cond := make([]float64, len(x))
	for t := range cond {
		cond[t] = math.Exp(0.5*lv[t]) / returnScale
	}
	next := lv[len(x)]

	return &VolatilityFit{
		Model: m.Name(),
		Params: []Param{
			{"mu", p.mu / returnScale},
			{"omega", p.omega},
			{"alpha", p.alpha},
			{"beta", p.beta},
		},
		LogLik:      -result.F,
		Evals:       result.Stats.FuncEvaluations,
		Conditional: cond,
		forecast: func(h int) []float64 {
			return egarchForecast(p, next, h)
		},
	}, nil
}

// egarchForecast iterates the log-variance from the one-step-ahead value.
// Past the first step the shock term has zero expectation.
func egarchForecast(p egarchParams, next float64, h int) []float64 {
	if h <= 0 {
		return nil
	}
	out := make([]float64, h)
	lv := next
	for i := range out {
		out[i] = math.Exp(0.5*lv) / returnScale
		lv = p.omega + p.beta*lv
	}
	return out
}
