package main

import (
	"fmt"
	"math"
)

// Returns are fitted in percent, as is usual for GARCH-type likelihoods.
const returnScale = 100.0

// Minimum number of returns a volatility model is fitted on.
const minObservations = 30

// Schedule modes
const (
	ScheduleForecast = "forecast"
	ScheduleTail     = "tail"
	ScheduleHistory  = "history"
)

// Schedule holds one expected return standard deviation per simulated day.
type Schedule []float64

// At returns the volatility for a day. Days past the end of the schedule
// reuse its final value.
func (s Schedule) At(day int) float64 {
	if day >= len(s) {
		day = len(s) - 1
	}
	return s[day]
}

// Validate checks the schedule can seed a simulation.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: volatility schedule is empty", ErrInvalidInput)
	}
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: volatility schedule[%d] is not finite", ErrInvalidInput, i)
		}
		if v < 0 {
			return fmt.Errorf("%w: volatility schedule[%d] is negative (%v)", ErrInvalidInput, i, v)
		}
	}
	return nil
}

// Param is a named model parameter, kept in fit order for reporting.
type Param struct {
	Name  string
	Value float64
}

// VolatilityFit is the outcome of fitting a conditional volatility model.
type VolatilityFit struct {
	Model  string
	Params []Param
	LogLik float64
	Evals  int
	// Conditional volatility per historical return, in return units.
	Conditional []float64

	forecast func(h int) []float64
}

// Forecast returns h forward-looking volatilities. Without a model
// forecast the last conditional value is held forward.
func (f *VolatilityFit) Forecast(h int) []float64 {
	if f.forecast != nil {
		return f.forecast(h)
	}
	if len(f.Conditional) == 0 || h <= 0 {
		return nil
	}
	out := make([]float64, h)
	last := f.Conditional[len(f.Conditional)-1]
	for i := range out {
		out[i] = last
	}
	return out
}

// VolatilityModel fits a conditional volatility process to daily returns.
type VolatilityModel interface {
	Name() string
	Fit(returns []float64) (*VolatilityFit, error)
}

// newVolatilityModel returns the model registered under name.
func newVolatilityModel(name string, msmDim int, seed uint64) (VolatilityModel, error) {
	switch name {
	case "", "egarch":
		return &egarchModel{}, nil
	case "msm":
		if msmDim < 1 {
			return nil, fmt.Errorf("%w: msm dimension must be positive, got %d", ErrInvalidConfiguration, msmDim)
		}
		return &msmModel{k: msmDim, seed: seed}, nil
	}
	return nil, fmt.Errorf("%w: unknown volatility model %q", ErrInvalidConfiguration, name)
}

// BuildSchedule turns a fitted model into the volatility schedule for a
// horizon. The result may be shorter than horizon; Schedule.At holds its
// last value.
func BuildSchedule(fit *VolatilityFit, horizon int, mode string) (Schedule, error) {
	if fit == nil || len(fit.Conditional) == 0 {
		return nil, fmt.Errorf("%w: no conditional volatility to build a schedule from", ErrInvalidInput)
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidConfiguration, horizon)
	}

	var s Schedule
	switch mode {
	case "", ScheduleForecast:
		s = Schedule(fit.Forecast(horizon))
	case ScheduleTail:
		from := len(fit.Conditional) - horizon
		if from < 0 {
			from = 0
		}
		s = append(Schedule(nil), fit.Conditional[from:]...)
	case ScheduleHistory:
		n := horizon
		if n > len(fit.Conditional) {
			n = len(fit.Conditional)
		}
		s = append(Schedule(nil), fit.Conditional[:n]...)
	default:
		return nil, fmt.Errorf("%w: unknown schedule mode %q", ErrInvalidConfiguration, mode)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Sigmoid function
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-1.0*x))
}

// scaleReturns copies x into percent units, optionally demeaned.
func scaleReturns(x []float64, mu float64) []float64 {
	y := make([]float64, len(x))
	for i := range x {
		y[i] = (x[i] - mu) * returnScale
	}
	return y
}
