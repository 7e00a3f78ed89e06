/*
Markov Switching Multi-fractal (MSM) model as a conditional volatility provider.
This is a BT variant, where the transition probabilities of the Markov chains driving the volatility process are modelled directly.
*/

package main

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strconv"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"

	"gonum.org/v1/gonum/stat"

	"gonum.org/v1/gonum/stat/distuv"

	"gonum.org/v1/gonum/optimize"
)

// 1/sqrt(2*pi)
const invSqrt2Pi = 1.0 / math.Sqrt2 / math.SqrtPi

type msmModel struct {
	k    int
	seed uint64
}

func (m *msmModel) Name() string { return "msm" }

// Compute transition probability matrix
func probMat(p []float64) *mat.Dense {
	x := 1
	a := mat.NewDense(2, 2, nil)
	c := mat.NewDense(1, 1, []float64{1.0})
	var tmp mat.Dense
	for i := range p {
		gi := p[i] * 0.5
		a.Set(0, 0, 1.0-gi)
		a.Set(0, 1, gi)
		a.Set(1, 0, gi)
		a.Set(1, 1, 1.0-gi)
		tmp.Kronecker(c, a)
		x = x * 2
		c.Grow(x, x)
		c.CloneFrom(&tmp)
		tmp.Reset()
	}
	return c
}

// Compute volatilities corresponding to states
func sigma(m0 float64, s0 float64, k int, M []int) []float64 {
	s := make([]float64, len(M))
	m1 := 2.0 - m0
	for i := range s {
		s[i] = s0 * math.Sqrt(math.Pow(m1, float64(M[i]))*math.Pow(m0, float64(k-M[i])))
	}
	return s
}

/* States expressed as number of "ON" states in total as that is what matters in computing volatility
 */
func states(k int) []int {
	st := make([]int, 1<<k)
	for i := range st {
		st[i] = bits.OnesCount(uint(i))
	}
	return st
}

func transformParams(par []float64) []float64 {
	m := len(par)
	p := make([]float64, m)
	// Transform (-inf, inf) domain to (1,2) and (0,inf)
	p[0], p[1] = 1.0+sigmoid(par[0]), math.Exp(par[1])

	// Transform (-inf, inf) domain to probabilities
	for i := 2; i < m; i++ {
		p[i] = sigmoid(par[i])
	}
	return p
}

// msmFilter runs the state filter over x. If cond is not nil it receives the
// predicted volatility of each observation. Returns the negative log
// likelihood and the filtered state distribution after the last observation.
func msmFilter(A *mat.Dense, s []float64, x []float64, cond []float64) (float64, *mat.VecDense) {
	n := len(s)

	// Initialise unconditional probability distribution of states
	B := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		B.SetVec(i, 1.0/float64(n))
	}

	wx := make([]float64, n)
	var q mat.VecDense
	ll := 0.0
	for t := range x {
		q.MulVec(A, B)
		if cond != nil {
			v := 0.0
			for j := range s {
				v += q.AtVec(j) * s[j] * s[j]
			}
			cond[t] = math.Sqrt(v)
		}
		sw := 0.0
		for j := range wx {
			wx[j] = invSqrt2Pi * math.Exp(-0.5*x[t]*x[t]/s[j]/s[j]) / s[j]
			sw += wx[j] * q.AtVec(j)
		}
		if !(sw > 0) {
			return math.Inf(1), B
		}
		ll += math.Log(sw)
		for j := range wx {
			B.SetVec(j, wx[j]*q.AtVec(j)/sw)
		}
	}
	return -ll, B
}

// msmForecast propagates the state distribution h days ahead.
func msmForecast(A *mat.Dense, s []float64, last *mat.VecDense, h int) []float64 {
	if h <= 0 {
		return nil
	}
	out := make([]float64, h)
	p := mat.VecDenseCopyOf(last)
	var next mat.VecDense
	for i := range out {
		next.MulVec(A, p)
		p.CopyVec(&next)
		v := 0.0
		for j := range s {
			v += p.AtVec(j) * s[j] * s[j]
		}
		out[i] = math.Sqrt(v) / returnScale
	}
	return out
}

// Fit an MSM-BT model of dimension k to returns
func (m *msmModel) Fit(returns []float64) (*VolatilityFit, error) {
	if err := checkReturns(returns); err != nil {
		return nil, err
	}
	// demeaned, in percent
	x := scaleReturns(returns, stat.Mean(returns, nil))

	// initialise parameters for the likelihood
	par := make([]float64, m.k+2)
	dist := distuv.Normal{Mu: 0.0, Sigma: 1.0, Src: rand.NewSource(m.seed)}
	for i := range par {
		par[i] = dist.Rand()
	}
	// Use sample standard deviation for s0 param of model
	sd := stat.StdDev(x, nil)
	if !(sd > 0) {
		return nil, fmt.Errorf("%w: returns have no variance", ErrInvalidInput)
	}
	par[1] = math.Log(sd)

	// calculate Markov chain states
	M := states(m.k)

	problem := optimize.Problem{
		Func: func(par []float64) float64 {
			p := transformParams(par)
			nll, _ := msmFilter(probMat(p[2:]), sigma(p[0], p[1], m.k, M), x, nil)
			return nll
		},
	}
	result, err := optimize.Minimize(problem, par, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("minimize msm likelihood: %w", err)
	}

	p := transformParams(result.X)
	A := probMat(p[2:])
	s := sigma(p[0], p[1], m.k, M)
	cond := make([]float64, len(x))
	_, last := msmFilter(A, s, x, cond)
	for t := range cond {
		cond[t] /= returnScale
	}

	params := []Param{{"m0", p[0]}, {"s0", p[1] / returnScale}}
	ps := append([]float64(nil), p[2:]...)
	sort.Float64s(ps)
	for i := range ps {
		params = append(params, Param{"p" + strconv.Itoa(i+1), ps[i]})
	}

	return &VolatilityFit{
		Model:       m.Name(),
		Params:      params,
		LogLik:      -result.F,
		Evals:       result.Stats.FuncEvaluations,
		Conditional: cond,
		forecast: func(h int) []float64 {
			return msmForecast(A, s, last, h)
		},
	}, nil
}
