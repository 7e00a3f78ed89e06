package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
)

const dateLayout = "2006-01-02"

type forecastRow struct {
	Day             int     `csv:"day"`
	Date            string  `csv:"date"`
	Mean            float64 `csv:"mean"`
	P05             float64 `csv:"p05"`
	Median          float64 `csv:"median"`
	P95             float64 `csv:"p95"`
	CrisisFrequency float64 `csv:"crisis_frequency"`
}

// Report is everything the reporter shows for a run.
type Report struct {
	Fit        *VolatilityFit
	MeanReturn float64
	LastDate   time.Time
	Forecast   *Forecast
	P05        []float64
	Median     []float64
	P95        []float64
	Paths      int
	CrisisDays int
}

// NewReport aggregates the ensemble into a Report.
func NewReport(fit *VolatilityFit, meanReturn float64, lastDate time.Time, e *Ensemble) (*Report, error) {
	lo, err := Percentiles(e, 5)
	if err != nil {
		return nil, err
	}
	hi, err := Percentiles(e, 95)
	if err != nil {
		return nil, err
	}
	med, err := Medians(e)
	if err != nil {
		return nil, err
	}
	return &Report{
		Fit:        fit,
		MeanReturn: meanReturn,
		LastDate:   lastDate,
		Forecast:   Aggregate(e),
		P05:        lo,
		Median:     med,
		P95:        hi,
		Paths:      e.Paths(),
		CrisisDays: CrisisDays(e),
	}, nil
}

// Date of forecast day k: day 0 is the last historical date.
func (r *Report) Date(k int) time.Time {
	return r.LastDate.AddDate(0, 0, k)
}

func (r *Report) rows() []*forecastRow {
	rows := make([]*forecastRow, len(r.Forecast.Mean))
	for k := range rows {
		freq := 0.0
		if k > 0 {
			freq = r.Forecast.CrisisFrequency[k-1]
		}
		rows[k] = &forecastRow{
			Day:             k,
			Date:            r.Date(k).Format(dateLayout),
			Mean:            r.Forecast.Mean[k],
			P05:             r.P05[k],
			Median:          r.Median[k],
			P95:             r.P95[k],
			CrisisFrequency: freq,
		}
	}
	return rows
}

// Write the forecast to a csv file
func writeResults(r *Report, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(r.rows(), f); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// printFit renders the fitted model parameters.
func printFit(w io.Writer, fit *VolatilityFit, meanReturn float64) {
	fmt.Fprintf(w, "---------- %s Model Fit Results ----------\n", fit.Model)
	fmt.Fprintf(w, "Number of func evals: %d\n", fit.Evals)
	fmt.Fprintf(w, "Loglik:\t%0.2f\n", fit.LogLik)
	fmt.Fprintf(w, "Mean daily return:\t%0.5f\n", meanReturn)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Parameter", "Value"})
	for _, p := range fit.Params {
		table.Append([]string{p.Name, strconv.FormatFloat(p.Value, 'f', 6, 64)})
	}
	table.Render()
}

// printForecast renders every tenth day and the last one.
func printForecast(w io.Writer, r *Report) {
	h := len(r.Forecast.Mean) - 1
	fmt.Fprintf(w, "-------------- Forecast (%d paths, %d days) ---------------\n", r.Paths, h)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Day", "Date", "Mean", "P05", "Median", "P95", "Crisis"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, row := range r.rows() {
		if row.Day%10 != 0 && row.Day != h {
			continue
		}
		table.Append([]string{
			strconv.Itoa(row.Day),
			row.Date,
			fmt.Sprintf("%.2f", row.Mean),
			fmt.Sprintf("%.2f", row.P05),
			fmt.Sprintf("%.2f", row.Median),
			fmt.Sprintf("%.2f", row.P95),
			fmt.Sprintf("%.1f%%", row.CrisisFrequency*100),
		})
	}
	table.Render()

	fmt.Fprintf(w, "Crisis days simulated: %d\n", r.CrisisDays)
	fmt.Fprintf(w, "Predicted mean price for the last day (%s): $%.2f\n", r.Date(h).Format(dateLayout), r.Forecast.Final())
}
