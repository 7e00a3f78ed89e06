package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// syntheticReturns draws n daily returns with a calm and a turbulent regime.
func syntheticReturns(n int, seed uint64) []float64 {
	rnd := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	for i := range x {
		sd := 0.008
		if (i/50)%2 == 1 {
			sd = 0.02
		}
		x[i] = 0.0004 + sd*rnd.NormFloat64()
	}
	return x
}

func TestScheduleAt(t *testing.T) {
	s := Schedule{0.1, 0.2, 0.3}
	assert.Equal(t, 0.1, s.At(0))
	assert.Equal(t, 0.3, s.At(2))
	assert.Equal(t, 0.3, s.At(3))
	assert.Equal(t, 0.3, s.At(1000))

	assert.Equal(t, 0.7, Schedule{0.7}.At(99))
}

func TestScheduleValidate(t *testing.T) {
	assert.NoError(t, Schedule{0, 0.1}.Validate())
	assert.ErrorIs(t, Schedule{}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Schedule{0.1, math.NaN()}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Schedule{math.Inf(1)}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Schedule{-0.1}.Validate(), ErrInvalidInput)
}

func TestBuildSchedule(t *testing.T) {
	fit := &VolatilityFit{
		Model:       "test",
		Conditional: []float64{0.01, 0.02, 0.03, 0.04, 0.05},
		forecast: func(h int) []float64 {
			out := make([]float64, h)
			for i := range out {
				out[i] = 0.5
			}
			return out
		},
	}

	for _, tc := range []struct {
		mode    string
		horizon int
		want    Schedule
	}{
		{ScheduleForecast, 3, Schedule{0.5, 0.5, 0.5}},
		{"", 2, Schedule{0.5, 0.5}},
		{ScheduleTail, 2, Schedule{0.04, 0.05}},
		{ScheduleTail, 10, Schedule{0.01, 0.02, 0.03, 0.04, 0.05}},
		{ScheduleHistory, 3, Schedule{0.01, 0.02, 0.03}},
		{ScheduleHistory, 8, Schedule{0.01, 0.02, 0.03, 0.04, 0.05}},
	} {
		t.Run(tc.mode, func(t *testing.T) {
			s, err := BuildSchedule(fit, tc.horizon, tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, s)
		})
	}

	t.Run("history does not alias the fit", func(t *testing.T) {
		s, err := BuildSchedule(fit, 2, ScheduleHistory)
		require.NoError(t, err)
		s[0] = 9
		assert.Equal(t, 0.01, fit.Conditional[0])
	})

	_, err := BuildSchedule(fit, 3, "bogus")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = BuildSchedule(fit, 0, ScheduleForecast)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = BuildSchedule(&VolatilityFit{}, 3, ScheduleForecast)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVolatilityFitForecastHoldsLast(t *testing.T) {
	fit := &VolatilityFit{Conditional: []float64{0.01, 0.03}}
	assert.Equal(t, []float64{0.03, 0.03, 0.03}, fit.Forecast(3))
	assert.Nil(t, fit.Forecast(0))
}

func TestNewVolatilityModel(t *testing.T) {
	m, err := newVolatilityModel("egarch", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "egarch", m.Name())

	m, err = newVolatilityModel("msm", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "msm", m.Name())

	_, err = newVolatilityModel("msm", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = newVolatilityModel("garch-x", 1, 1)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
