package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"
)

func init() {
	// Date, Close and Adj Close must all be present in the header.
	gocsv.FailIfUnmatchedStructTags = true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

type priceRecord struct {
	Date     string `csv:"Date"`
	Close    string `csv:"Close"`
	AdjClose string `csv:"Adj Close"`
}

// PriceHistory is a date-ordered adjusted close series.
type PriceHistory struct {
	Dates  []time.Time
	Prices []float64
}

// LoadPrices reads a price history CSV file.
func LoadPrices(filename string) (*PriceHistory, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open prices: %w", err)
	}
	defer f.Close()
	return ReadPrices(f)
}

// ReadPrices parses a CSV with Date, Close and Adj Close columns. Rows
// without an adjusted close are dropped and the rest sorted by date.
func ReadPrices(r io.Reader) (*PriceHistory, error) {
	var records []priceRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("%w: read prices (required columns Date, Close, Adj Close): %v", ErrInvalidInput, err)
	}

	type obs struct {
		date  time.Time
		price float64
	}
	rows := make([]obs, 0, len(records))
	for i, rec := range records {
		price, ok := parsePrice(rec.AdjClose)
		if !ok {
			continue
		}
		date, err := parseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidInput, i+1, err)
		}
		if !(price > 0) {
			return nil, fmt.Errorf("%w: row %d: adjusted close must be positive, got %v", ErrInvalidInput, i+1, price)
		}
		rows = append(rows, obs{date, price})
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 prices, got %d", ErrInvalidInput, len(rows))
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	h := &PriceHistory{
		Dates:  make([]time.Time, len(rows)),
		Prices: make([]float64, len(rows)),
	}
	for i, o := range rows {
		h.Dates[i], h.Prices[i] = o.date, o.price
	}
	return h, nil
}

// empty, "null" and NaN cells count as missing
func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// Len returns the number of observations.
func (h *PriceHistory) Len() int { return len(h.Prices) }

// Last returns the most recent date and price.
func (h *PriceHistory) Last() (time.Time, float64) {
	n := len(h.Prices) - 1
	return h.Dates[n], h.Prices[n]
}

// Returns computes simple daily returns; the first observation has none.
func (h *PriceHistory) Returns() []float64 {
	r := make([]float64, len(h.Prices)-1)
	for i := 1; i < len(h.Prices); i++ {
		r[i-1] = h.Prices[i]/h.Prices[i-1] - 1
	}
	return r
}

// MeanReturn is the arithmetic mean of the returns.
func MeanReturn(returns []float64) (float64, error) {
	if len(returns) == 0 {
		return 0, fmt.Errorf("%w: no returns", ErrInvalidInput)
	}
	mu := stat.Mean(returns, nil)
	if math.IsNaN(mu) || math.IsInf(mu, 0) {
		return 0, fmt.Errorf("%w: mean return is not finite", ErrInvalidInput)
	}
	return mu, nil
}

func checkReturns(x []float64) error {
	if len(x) < minObservations {
		return fmt.Errorf("%w: need at least %d returns, got %d", ErrInvalidInput, minObservations, len(x))
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: return %d is not finite", ErrInvalidInput, i)
		}
	}
	return nil
}
