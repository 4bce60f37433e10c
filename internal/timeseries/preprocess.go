package timeseries

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/soomorita/macro-micro-linkage/internal/dates"
)

// ErrTooFewPoints signals that a series has fewer than two known months and
// cannot be placed on an interpolated grid.
var ErrTooFewPoints = errors.New("timeseries: fewer than two known months")

// Raw is one input row as delivered by the data source: an uninterpreted
// time-axis token and a possibly missing value.
type Raw struct {
	Token   string
	Value   float64
	Missing bool
}

// Build normalizes raw rows onto the monthly grid.
//
// Rows whose token cannot be normalized, or whose value is missing, are
// dropped and counted; remaining rows landing in the same calendar month are
// aggregated by arithmetic mean. The grid spans the earliest to the latest
// observed month and interior gaps are filled by linear interpolation over
// the month offset. There is no extrapolation: the first and last grid months
// are always observed.
func Build(rows []Raw) (*Monthly, int, error) {
	type bucket struct {
		sum   float64
		count int
	}

	buckets := make(map[time.Time]*bucket)
	dropped := 0

	for _, row := range rows {
		if row.Missing {
			dropped++
			continue
		}
		month, ok := dates.NormalizeMonth(row.Token)
		if !ok {
			dropped++
			continue
		}
		b := buckets[month]
		if b == nil {
			b = &bucket{}
			buckets[month] = b
		}
		b.sum += row.Value
		b.count++
	}

	if len(buckets) < 2 {
		return nil, dropped, fmt.Errorf("%w (known=%d, dropped=%d)", ErrTooFewPoints, len(buckets), dropped)
	}

	months := make([]time.Time, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	start := months[0]
	length := dates.MonthsBetween(start, months[len(months)-1]) + 1

	values := make([]float64, length)
	known := make([]bool, length)
	for _, m := range months {
		idx := dates.MonthsBetween(start, m)
		b := buckets[m]
		values[idx] = b.sum / float64(b.count)
		known[idx] = true
	}

	fillGaps(values, known)

	return &Monthly{Start: start, Values: values}, dropped, nil
}

// fillGaps linearly interpolates runs of unknown months between known
// neighbours. The first and last entries are known by construction.
func fillGaps(values []float64, known []bool) {
	prev := 0
	for i := 1; i < len(values); i++ {
		if !known[i] {
			continue
		}
		if i-prev > 1 {
			step := (values[i] - values[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				values[j] = values[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
}
