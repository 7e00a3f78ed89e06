package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport(t *testing.T) *Report {
	t.Helper()
	e := ensembleOf(100, [][]float64{
		{100, 110, 120},
		{100, 90, 60},
		{100, 100, 90},
	}, [][]bool{
		{true, false},
		{false, false},
		{false, true},
	})
	fit := &VolatilityFit{
		Model:  "egarch",
		Params: []Param{{"mu", 0.0004}, {"beta", 0.97}},
		LogLik: -1234.5,
		Evals:  321,
	}
	r, err := NewReport(fit, 0.0004, time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC), e)
	require.NoError(t, err)
	return r
}

func TestNewReportSmallEnsembles(t *testing.T) {
	for _, n := range []int{2, 5, 19} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			p := testParams(4000, n, 5)
			sim, err := NewSimulator(p)
			require.NoError(t, err)
			e, err := sim.Run(context.Background(), 4000, Schedule{0.01}, 0.0005)
			require.NoError(t, err)

			r, err := NewReport(nil, 0, time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC), e)
			require.NoError(t, err)
			assert.Equal(t, n, r.Paths)
			require.Len(t, r.P05, 6)
			require.Len(t, r.P95, 6)
			for k := range r.P05 {
				assert.LessOrEqual(t, r.P05[k], r.Median[k])
				assert.LessOrEqual(t, r.Median[k], r.P95[k])
			}
			assert.Equal(t, 4000.0, r.Forecast.Mean[0])
		})
	}
}

func TestReportRows(t *testing.T) {
	r := testReport(t)
	rows := r.rows()
	require.Len(t, rows, 3)

	assert.Equal(t, "2024-03-29", rows[0].Date)
	assert.Equal(t, "2024-03-31", rows[2].Date)
	assert.Equal(t, 100.0, rows[0].Mean)
	assert.Equal(t, 0.0, rows[0].CrisisFrequency)
	assert.InDelta(t, 1.0/3, rows[1].CrisisFrequency, 1e-12)
	assert.InDelta(t, 90.0, rows[2].Mean, 1e-12)
	assert.Equal(t, 90.0, rows[2].Median)
	assert.Equal(t, 2, r.CrisisDays)
}

func TestWriteResults(t *testing.T) {
	r := testReport(t)
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, writeResults(r, path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	header := strings.SplitN(string(b), "\n", 2)[0]
	assert.Equal(t, "day,date,mean,p05,median,p95,crisis_frequency", header)

	var rows []forecastRow
	require.NoError(t, gocsv.UnmarshalBytes(b, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, 2, rows[2].Day)
	assert.InDelta(t, 90.0, rows[2].Mean, 1e-9)

	assert.Error(t, writeResults(r, filepath.Join(t.TempDir(), "missing", "out.csv")))
}

func TestPrintReport(t *testing.T) {
	r := testReport(t)

	var fitOut bytes.Buffer
	printFit(&fitOut, r.Fit, r.MeanReturn)
	assert.Contains(t, fitOut.String(), "egarch Model Fit Results")
	assert.Contains(t, fitOut.String(), "0.970000")
	assert.Contains(t, fitOut.String(), "321")

	var out bytes.Buffer
	printForecast(&out, r)
	s := out.String()
	assert.Contains(t, s, "3 paths, 2 days")
	assert.Contains(t, s, "Crisis days simulated: 2")
	assert.Contains(t, s, "Predicted mean price for the last day (2024-03-31): $90.00")
}
