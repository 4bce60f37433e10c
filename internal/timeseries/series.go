// Package timeseries provides the canonical monthly series and the
// preprocessor that produces it from raw e-Stat rows.
package timeseries

import (
	"math"
	"time"

	"github.com/soomorita/macro-micro-linkage/internal/dates"
)

// Monthly is a strictly regular monthly series: one value per consecutive
// calendar month starting at Start. After preprocessing it contains no
// missing values.
type Monthly struct {
	Start  dates.Month
	Values []float64
}

// NewMonthly builds a series from a month-start timestamp and values.
func NewMonthly(start dates.Month, values []float64) *Monthly {
	return &Monthly{Start: start, Values: values}
}

// Len returns the number of observations.
func (s *Monthly) Len() int {
	return len(s.Values)
}

// MonthAt returns the calendar month of observation i.
func (s *Monthly) MonthAt(i int) time.Time {
	return dates.AddMonths(s.Start, i)
}

// End returns the month of the last observation.
func (s *Monthly) End() time.Time {
	if len(s.Values) == 0 {
		return s.Start
	}
	return s.MonthAt(len(s.Values) - 1)
}

// Mean returns the arithmetic mean of the series.
func (s *Monthly) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	return sum / float64(len(s.Values))
}

// Variance returns the sample variance of the series.
func (s *Monthly) Variance() float64 {
	if len(s.Values) < 2 {
		return 0
	}
	mean := s.Mean()
	sumSq := 0.0
	for _, v := range s.Values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(s.Values)-1)
}

// IsConstant reports whether every value equals the first, within floating
// point noise.
func (s *Monthly) IsConstant() bool {
	if len(s.Values) < 2 {
		return true
	}
	first := s.Values[0]
	for _, v := range s.Values[1:] {
		if math.Abs(v-first) > 1e-12*math.Max(1, math.Abs(first)) {
			return false
		}
	}
	return true
}

// Diff returns the first-differenced series; the result starts one month
// later and is one observation shorter.
func (s *Monthly) Diff() *Monthly {
	return s.lagDiff(1)
}

// SeasonalDiff returns the seasonally differenced series with period m.
func (s *Monthly) SeasonalDiff(m int) *Monthly {
	return s.lagDiff(m)
}

func (s *Monthly) lagDiff(lag int) *Monthly {
	if lag <= 0 || len(s.Values) <= lag {
		return &Monthly{Start: s.Start, Values: []float64{}}
	}
	out := make([]float64, len(s.Values)-lag)
	for i := lag; i < len(s.Values); i++ {
		out[i-lag] = s.Values[i] - s.Values[i-lag]
	}
	return &Monthly{Start: dates.AddMonths(s.Start, lag), Values: out}
}

// Copy returns a deep copy; forecasting invocations own independent copies of
// their input so concurrent requests never share state.
func (s *Monthly) Copy() *Monthly {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	return &Monthly{Start: s.Start, Values: values}
}
