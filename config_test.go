package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	c, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "forecast.csv", c.Output)
	assert.Equal(t, "egarch", c.Model.Name)
	assert.Equal(t, ScheduleForecast, c.Model.Schedule)
	assert.Equal(t, 100, c.Simulation.HorizonDays)
	assert.Equal(t, 4.0, c.Simulation.DegreesOfFreedom)
	assert.Equal(t, 0.75, c.Simulation.VolatilityScale)
	assert.Equal(t, 3.0, c.Simulation.CrisisMultiplier)
	assert.Equal(t, 0.05, c.Simulation.CrisisProbability)
	assert.Equal(t, 0, c.Simulation.Simulations)
	assert.Equal(t, "info", c.Log.Level)
	assert.True(t, c.Log.Pretty)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
input: sp500.csv
model:
  name: msm
  msm_dim: 4
  schedule: tail
simulation:
  simulations: 250
  horizon_days: 30
  crisis_probability: 0
  volatility_scale: 1
  seed: 9
log:
  pretty: false
`)
	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sp500.csv", c.Input)
	assert.Equal(t, "msm", c.Model.Name)
	assert.Equal(t, 4, c.Model.MSMDim)
	assert.Equal(t, ScheduleTail, c.Model.Schedule)
	assert.Equal(t, 250, c.Simulation.Simulations)
	assert.Equal(t, 30, c.Simulation.HorizonDays)
	assert.Equal(t, 0.0, c.Simulation.CrisisProbability, "explicit zero must survive defaults")
	assert.Equal(t, 1.0, c.Simulation.VolatilityScale)
	assert.Equal(t, 4.0, c.Simulation.DegreesOfFreedom)
	assert.Equal(t, uint64(9), c.Simulation.Seed)
	assert.False(t, c.Log.Pretty)
}

func TestLoadConfigInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{"unknown model", "model:\n  name: garch\n"},
		{"low degrees of freedom", "simulation:\n  degrees_of_freedom: 2\n"},
		{"probability above one", "simulation:\n  crisis_probability: 1.2\n"},
		{"inverted bounds", "simulation:\n  lower_bound_fraction: 2\n  upper_bound_fraction: 1\n"},
		{"zero horizon", "simulation:\n  horizon_days: 0\n"},
		{"bad log level", "log:\n  level: loud\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}

	_, err := LoadConfig(writeConfig(t, "simulation: [1, 2"))
	assert.Error(t, err)
	_, err = LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigParameters(t *testing.T) {
	c := DefaultConfig()
	c.Simulation.Simulations = 10
	c.Simulation.Workers = 2
	c.Simulation.Seed = 5

	p := c.Parameters(4000)
	assert.Equal(t, 1200.0, p.LowerBound)
	assert.Equal(t, 12000.0, p.UpperBound)
	assert.Equal(t, 100, p.Horizon)
	assert.Equal(t, 10, p.Simulations)
	assert.Equal(t, 2, p.Workers)
	assert.Equal(t, uint64(5), p.Seed)
	assert.NoError(t, p.Validate())
}
